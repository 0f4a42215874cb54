package bufftree

import "bufftree/internal/telemetry"

// Logger is the structured-logging surface the engine calls into: the
// buffer pool logs pool exhaustion, flush failures and checksum
// mismatches, the B+tree logs structural events (split, coalesce,
// redistribute, root changes). slog.Logger satisfies it directly; zap
// and logrus loggers satisfy it through the adapters in the
// bufftree/logging submodule.
type Logger = telemetry.Logger

// DiscardLogger is the default Logger: every call compiles away to
// nothing.
type DiscardLogger = telemetry.Discard
