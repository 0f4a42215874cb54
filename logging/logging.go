// Package logging provides adapters for popular logging libraries to
// work with bufftree.Logger.
//
// The standard library's slog.Logger already implements bufftree.Logger
// directly; this package covers the two other loggers common in the
// ecosystem.
//
// Example with zap:
//
//	zapLogger, _ := zap.NewProduction()
//	tree, err := bufftree.Open("data.db", "primary", keys.Int64Traits, bufftree.Options{
//	    Logger: logging.NewZap(zapLogger),
//	})
package logging
