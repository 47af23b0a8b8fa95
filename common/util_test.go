package common

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"
)

func TestSameAddress(t *testing.T) {
	cases := []struct {
		content string
		ip      string
		want    bool
	}{
		{"1.2.3.4", "1.2.3.4", true},
		{"1.2.3.4", "5.6.7.8", false},
		{"::1", "::1", true},
		{"0:0:0:0:0:0:0:1", "::1", true},
		{"2001:DB8::1", "2001:db8::1", true},
		{"::ffff:1.2.3.4", "1.2.3.4", true},
		{"not-an-ip", "1.2.3.4", false},
	}

	for _, c := range cases {
		if got := SameAddress(c.content, netip.MustParseAddr(c.ip)); got != c.want {
			t.Errorf("SameAddress(%q, %s) = %v, want %v", c.content, c.ip, got, c.want)
		}
	}
}

func TestFamilyMatch(t *testing.T) {
	v4, v6 := IPv4, IPv6

	if !v4.Match(netip.MustParseAddr("10.0.0.1")) {
		t.Error("IPv4 should match 10.0.0.1")
	}
	if v4.Match(netip.MustParseAddr("2001:db8::1")) {
		t.Error("IPv4 should not match 2001:db8::1")
	}
	if !v6.Match(netip.MustParseAddr("2001:db8::1")) {
		t.Error("IPv6 should match 2001:db8::1")
	}
	var wildcard *Family
	if !wildcard.Match(netip.MustParseAddr("2001:db8::1")) {
		t.Error("nil family should match everything")
	}
}

func TestWeakDecodeMap(t *testing.T) {
	var out struct {
		Type    *Family  `mapstructure:"type"`
		Timeout Duration `mapstructure:"timeout"`
		Mask    CIDR     `mapstructure:"mask"`
	}

	err := WeakDecodeMap(map[string]any{
		"type":    "ipv6",
		"timeout": "3s",
		"mask":    "2001:db8::1/64",
	}, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.Type == nil || *out.Type != IPv6 {
		t.Errorf("type = %v, want IPv6", out.Type)
	}
	if time.Duration(out.Timeout) != 3*time.Second {
		t.Errorf("timeout = %s, want 3s", out.Timeout)
	}
	if out.Mask.String() != "2001:db8::/64" {
		t.Errorf("mask = %s, want 2001:db8::/64", out.Mask)
	}

	if err := WeakDecodeMap(map[string]any{"bogus": 1}, &out); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestNewHTTPClientUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(time.Second, "").Get(srv.URL)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()

	if got != DefaultUserAgent {
		t.Errorf("user agent = %q, want %q", got, DefaultUserAgent)
	}

	if _, ok := Transport(NewHTTPClient(0, "x")); !ok {
		t.Error("expected transport to be unwrapped")
	}
}

func TestFamilyOf(t *testing.T) {
	cases := map[string]Family{
		"192.0.2.1":        IPv4,
		"::ffff:192.0.2.1": IPv4,
		"2001:db8::1":      IPv6,
	}
	for ip, want := range cases {
		if got := FamilyOf(netip.MustParseAddr(ip)); got != want {
			t.Errorf("FamilyOf(%s) = %v, want %v", ip, &got, &want)
		}
	}
}
