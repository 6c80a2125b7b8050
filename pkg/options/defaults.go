package options

import "time"

const (
	// DefaultDataDir is the directory ignitedb.Open uses when no WithDataDir
	// option is given. The cmd/ignitedb CLI wrapper never falls back to it:
	// it always passes the directory from IGNITEDB_DATA_DIR.
	DefaultDataDir = "./ignitedb-data"

	// DefaultSegmentSize is the active-segment rotation threshold mandated
	// by the on-disk format: 4 MiB. Overriding it via WithSegmentSize is
	// supported for testing (e.g. shrinking it to force rotation quickly)
	// but production deployments should leave it at the default.
	DefaultSegmentSize uint64 = 4 * 1024 * 1024

	// MinSegmentSize guards against a rotation threshold too small to hold
	// even a single maximally-sized record header.
	MinSegmentSize uint64 = 1024

	// MaxSegmentSize caps the rotation threshold at something the reader
	// cache and compactor can comfortably hold in memory at once.
	MaxSegmentSize uint64 = 1 * 1024 * 1024 * 1024

	// DefaultCompactInterval is zero, meaning the optional background
	// auto-compaction ticker is disabled by default. Compaction stays an
	// explicit, caller-invoked operation unless WithCompactInterval is set.
	DefaultCompactInterval time.Duration = 0
)

var defaultOptions = Options{
	DataDir:         DefaultDataDir,
	CompactInterval: DefaultCompactInterval,
	Sync:            false,
	SegmentOptions:  &segmentOptions{Size: DefaultSegmentSize},
}

// NewDefaultOptions returns a fresh copy of the default configuration.
func NewDefaultOptions() Options {
	opts := defaultOptions
	segOpts := *defaultOptions.SegmentOptions
	opts.SegmentOptions = &segOpts
	return opts
}
