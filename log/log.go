// Package log carries a zap logger inside context.Context so that every stage of a
// reconciliation can add its own tags without threading a logger argument around.
package log

import (
	"context"
	"net/netip"

	"go.uber.org/zap"
)

type loggerKey struct{}

// loggers keeps both flavours so that neither S nor L has to convert on every call.
type loggers struct {
	plain   *zap.Logger
	sugared *zap.SugaredLogger
}

func attach(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, &loggers{plain: logger, sugared: logger.Sugar()})
}

func from(ctx context.Context) *loggers {
	l, _ := ctx.Value(loggerKey{}).(*loggers)
	return l
}

func WithLogger(parent context.Context, logger *zap.Logger) context.Context {
	return attach(parent, logger)
}

// L returns logger in context, or the global zap logger if no logger is present.
func L(ctx context.Context) *zap.Logger {
	if l := from(ctx); l != nil {
		return l.plain
	}
	return zap.L()
}

// S returns sugared version of L.
func S(ctx context.Context) *zap.SugaredLogger {
	if l := from(ctx); l != nil {
		return l.sugared
	}
	return zap.S()
}

func With(ctx context.Context, tags ...zap.Field) context.Context {
	return attach(ctx, L(ctx).With(tags...))
}

func SWith(ctx context.Context, tags ...any) context.Context {
	return attach(ctx, S(ctx).With(tags...).Desugar())
}

// WithRecord tags every later entry with the DNS record being reconciled.
func WithRecord(ctx context.Context, recordType, name string) context.Context {
	return SWith(ctx, Record(recordType, name)...)
}

// WithAddress tags every later entry with the address being handled.
func WithAddress(ctx context.Context, ip netip.Addr) context.Context {
	return With(ctx, IP(ip))
}
