// Package logger builds the structured loggers used across ignitedb's
// subsystems. Every internal package takes a *zap.SugaredLogger through its
// Config rather than reaching for a package-level logger, so tests can pass
// zap's no-op logger and production callers can wire their own zap core.
package logger

import "go.uber.org/zap"

// New builds a production zap logger tagged with the given service name.
// It never returns nil: if the production config fails to build (which only
// happens on a misconfigured encoder), it falls back to a no-op logger
// rather than letting a logging failure take down the database.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.InitialFields = map[string]any{"service": service}

	l, err := cfg.Build()
	if err != nil {
		return Nop()
	}
	return l.Sugar()
}

// Nop returns a logger that discards everything, used in tests and by
// ignitedb.Destroy, which opens the directory only to check its lock.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
