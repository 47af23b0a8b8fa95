package log

import "go.uber.org/zap"

var (
	// Internal mark the error severe, due to issues in code.
	Internal = zap.String("severe_error", "internal")

	// Fatal marks an error that terminates the daemon under the exit-on-error policy.
	Fatal = zap.Bool("fatal", true)
)
