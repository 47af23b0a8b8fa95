package log

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"dynosaur/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	ctx = SWith(ctx, Stage("update"))
	ctx = With(ctx, IP(netip.MustParseAddr("192.0.2.1")))
	S(ctx).Infow("record updated", Record("A", "home.example.com")...)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	want := map[string]string{
		"stage":   "update",
		"ip":      "192.0.2.1",
		"ns_type": "A",
		"domain":  "home.example.com",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %v, want %s", k, fields[k], v)
		}
	}
}

func TestLoggerSurvivesDerivedContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	L(ctx).Info("hello")
	if logs.Len() != 1 {
		t.Fatalf("expected logger to be found through derived context")
	}
}

func TestBuild(t *testing.T) {
	level := zapcore.WarnLevel
	encoding := "console"
	paths := []string{"stderr"}

	logger, err := Build(false, config.Log{Level: &level, Encoding: &encoding, InfoPath: &paths}, "node-a")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level should be disabled")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn level should be enabled")
	}

	bad := "nope"
	if _, err := Build(false, config.Log{Encoding: &bad}, ""); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestSince(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	logger.Info("done", Since("took", time.Now().Add(-2*time.Second)))

	took, ok := logs.All()[0].ContextMap()["took"].(time.Duration)
	if !ok || took < 2*time.Second {
		t.Errorf("took = %v, want at least 2s", took)
	}
}

func TestWithRecordAndAddress(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	ctx = WithRecord(ctx, "AAAA", "v6.example.com")
	ctx = WithAddress(ctx, netip.MustParseAddr("2001:db8::1"))
	S(ctx).Info("applied")
	L(ctx).Info("applied again")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	for _, entry := range logs.All() {
		fields := entry.ContextMap()
		if fields["ns_type"] != "AAAA" || fields["domain"] != "v6.example.com" || fields["ip"] != "2001:db8::1" {
			t.Errorf("unexpected fields %v", fields)
		}
	}
}

func TestFallsBackToGlobalLogger(t *testing.T) {
	if L(context.Background()) != zap.L() {
		t.Error("expected global logger without one in context")
	}
}
