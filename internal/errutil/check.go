// Package errutil funnels errors that are handled by logging them.
package errutil

import (
	"log/slog"
)

// LogMsg logs err as a warning with msg if it is not nil.
func LogMsg(err error, msg string, args ...any) {
	if err != nil {
		slog.Warn(msg, withError(err, args)...)
	}
}

// ReportError logs an unexpected error. Failures that callers recover from
// but operators should see go through here.
func ReportError(err error, msg string, args ...any) {
	if err != nil {
		slog.Error(msg, withError(err, args)...)
	}
}

func withError(err error, args []any) []any {
	return append([]any{"error", err}, args...)
}
