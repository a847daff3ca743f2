package protocol

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// SetLog sets the package-level logger. The event trace is emitted at
// trace level, so callers that enable it must set the logger to
// slog.LevelTrace.
func SetLog(v slog.Logger) {
	log = v
}
