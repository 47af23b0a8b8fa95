package transformers

import (
	"context"
	"net/netip"
	"testing"

	"dynosaur/config"
)

func TestMaskRewrite(t *testing.T) {
	cases := []struct {
		name      string
		mask      string
		overwrite string
		in        string
		want      string
	}{
		{"prefix length v6", "64", "::1", "2001:db8:1:2:aaaa:bbbb:cccc:dddd", "2001:db8:1:2::1"},
		{"dotted mask v4", "255.255.255.0", "0.0.0.7", "203.0.113.9", "203.0.113.7"},
		{"full mask", "32", "0.0.0.0", "198.51.100.1", "198.51.100.1"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, err := newMaskRewrite(context.Background(), config.IPTransformer{
				Type:   "mask_rewrite",
				Config: map[string]any{"mask": c.mask, "overwrite": c.overwrite},
			})
			if err != nil {
				t.Fatalf("new: %v", err)
			}

			got, err := tr.Transform(context.Background(), netip.MustParseAddr(c.in))
			if err != nil {
				t.Fatalf("transform: %v", err)
			}
			if got != netip.MustParseAddr(c.want) {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestMaskRewriteFamilyMismatch(t *testing.T) {
	tr, err := newMaskRewrite(context.Background(), config.IPTransformer{
		Config: map[string]any{"mask": "64", "overwrite": "::1"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := tr.Transform(context.Background(), netip.MustParseAddr("192.0.2.1")); err == nil {
		t.Error("expected family mismatch error")
	}
}

func TestMaskRewriteBadConfig(t *testing.T) {
	bad := []map[string]any{
		{"mask": "129", "overwrite": "::1"},
		{"mask": "255.255.0.0", "overwrite": "::1"},
		{"mask": "nonsense", "overwrite": "::1"},
		{"mask": "24"},
	}

	for _, c := range bad {
		if _, err := newMaskRewrite(context.Background(), config.IPTransformer{Config: c}); err == nil {
			t.Errorf("expected error for %v", c)
		}
	}
}
