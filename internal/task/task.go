// Package task provides fire-and-forget goroutine spawning. A task's
// terminal error is logged and never propagated, so a failing connection
// task cannot take the caller down with it.
package task

import "log/slog"

// Go runs fn in a new goroutine and logs its terminal error, if any.
func Go(logger *slog.Logger, name string, fn func() error) {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		if err := fn(); err != nil {
			logger.Error("task failed", "task", name, "error", err)
		}
	}()
}
