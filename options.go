package bufftree

import "bufftree/internal/config"

// Options configures Open. The zero Options is usable: Open substitutes
// config.PoolSize for a non-positive PoolSize and DiscardLogger for a
// nil Logger, the same values DefaultOptions sets.
type Options struct {
	// PoolSize is the number of frames the buffer pool holds resident.
	PoolSize int
	// Logger receives structural and diagnostic log lines. Defaults to
	// DiscardLogger if nil.
	Logger Logger
	// WALPath, if non-empty, enables the write-ahead hook: every dirty
	// write is appended to this file. Leaving it empty disables the
	// hook entirely, matching a build with no log manager configured.
	WALPath string
}

// DefaultOptions returns the options Open uses when none are supplied:
// config.PoolSize frames, a discarding logger, and no WAL hook.
func DefaultOptions() Options {
	return Options{
		PoolSize: config.PoolSize,
		Logger:   DiscardLogger{},
	}
}
