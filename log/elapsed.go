package log

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// elapsed is evaluated when the entry is encoded, not when the field is built.
type elapsed struct {
	start time.Time
	key   string
}

func (v *elapsed) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddDuration(v.key, time.Since(v.start).Round(time.Millisecond))
	return nil
}

// Elapsed starts a clock now and reports the time passed under key whenever the
// returned field is logged.
func Elapsed(key string) zap.Field {
	return Since(key, time.Now())
}

func Since(key string, start time.Time) zap.Field {
	return zap.Inline(&elapsed{start: start, key: key})
}
