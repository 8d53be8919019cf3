package blkio

import "log/slog"

// Global logger. Only the zeroing strategies, block size probing and
// Sparsify log; the primitives never do.
var log = slog.Default()

// SetLogger configures the global logger
func SetLogger(l *slog.Logger) {
	log = l
}
