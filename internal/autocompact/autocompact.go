// Package autocompact provides an optional background ticker that invokes
// Compact on a fixed interval. The storage engine itself never triggers
// compaction on its own; this is a policy layer above it, wired in only
// when a caller opts in via options.WithCompactInterval.
package autocompact

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ignitedb/ignitedb/pkg/errors"
)

// Compactor is the subset of the engine façade this package needs: just
// enough to trigger a compaction pass and log what happened.
type Compactor interface {
	Compact() error
}

// Ticker runs Compact on a fixed interval until stopped.
type Ticker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches a background goroutine that calls target.Compact() every
// interval, logging failures rather than propagating them: a failed
// opportunistic compaction should never take down the writer that spawned
// it. Call Stop to end the loop and wait for it to exit.
func Start(target Compactor, interval time.Duration, log *zap.SugaredLogger) *Ticker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Ticker{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := target.Compact(); err != nil {
					if se, ok := errors.AsStorageError(err); ok {
						log.Warnw("background compaction failed",
							"code", se.Code(),
							"segmentId", se.SegmentId(),
							"path", se.Path(),
							"error", se,
						)
					} else {
						log.Warnw("background compaction failed", "code", errors.GetErrorCode(err), "error", err)
					}
				} else {
					log.Infow("background compaction completed")
				}
			}
		}
	}()

	return t
}

// Stop cancels the background loop and blocks until it has exited.
func (t *Ticker) Stop() {
	t.cancel()
	<-t.done
}
