package application

import "log/slog"

// ModuleName is the "module" attribute carried by every log line of this
// context.
const ModuleName = "governance/assembly-voting"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
