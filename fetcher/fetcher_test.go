package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dynosaur/common"
	"dynosaur/config"
)

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChain(t *testing.T, c config.Fetcher) *Chain {
	t.Helper()
	chain, err := NewChain(context.Background(), c)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}

func TestSimple(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		family  string
		strict  bool
		want    string
		wantErr bool
	}{
		{name: "plain v4", body: "203.0.113.10\n", want: "203.0.113.10"},
		{name: "plain v6", body: "2001:db8::10\n", want: "2001:db8::10"},
		{name: "embedded text", body: "Current IP Address: 198.51.100.7", want: "198.51.100.7"},
		{name: "family filter", body: "2001:db8::1 203.0.113.1", family: "ipv4", want: "203.0.113.1"},
		{name: "garbage", body: "invalid ip", wantErr: true},
		{name: "empty", body: "", wantErr: true},
		{name: "repeated address", body: "ip 203.0.113.1, seen 203.0.113.1", want: "203.0.113.1"},
		{name: "portal page", body: "<p>login at 192.168.1.1</p><p>you are 10.0.0.23</p>", wantErr: true},
		{name: "strict bare", body: "  198.51.100.7\r\n", strict: true, want: "198.51.100.7"},
		{name: "strict html", body: "<html>198.51.100.7</html>", strict: true, wantErr: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := serve(t, c.body)
			source := config.IPSource{Type: "simple", Source: srv.URL}
			source.Config = map[string]any{"strict": c.strict}
			if c.family != "" {
				source.Config["type"] = c.family
			}

			ip, err := newChain(t, config.Fetcher{Sources: []config.IPSource{source}}).Fetch(context.Background())
			if c.wantErr {
				var fe *FetchError
				if !errors.As(err, &fe) {
					t.Fatalf("expected *FetchError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if want := netip.MustParseAddr(c.want); ip != want {
				t.Errorf("got %s, want %s", ip, want)
			}
		})
	}
}

func TestSimpleStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "203.0.113.1", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newChain(t, config.Fetcher{Sources: []config.IPSource{{Type: "simple", Source: srv.URL}}}).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unexpected status") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestJSON(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		field   string
		want    string
		wantErr string
	}{
		{name: "httpbin", body: `{"origin": "203.0.113.5"}`, want: "203.0.113.5"},
		{name: "custom field", body: `{"ip": "2001:db8::5"}`, field: "ip", want: "2001:db8::5"},
		{name: "missing field", body: `{"address": "203.0.113.5"}`, wantErr: "missing"},
		{name: "malformed", body: `{"origin": "203.0.113.5, 198.51.100.1"}`, wantErr: "malformed"},
		{name: "not a string", body: `{"origin": 42}`, wantErr: "not a string"},
		{name: "not json", body: `203.0.113.5`, wantErr: "decoding"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := serve(t, c.body)
			source := config.IPSource{Type: "json", Source: srv.URL}
			if c.field != "" {
				source.Config = map[string]any{"field": c.field}
			}

			ip, err := newChain(t, config.Fetcher{Sources: []config.IPSource{source}}).Fetch(context.Background())
			if c.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), c.wantErr) {
					t.Fatalf("expected error containing %q, got %v", c.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if want := netip.MustParseAddr(c.want); ip != want {
				t.Errorf("got %s, want %s", ip, want)
			}
		})
	}
}

func TestCloudflareTrace(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		io.WriteString(w, "fl=1\nh=www.cloudflare.com\nip=198.51.100.20\nts=1\n")
	}))
	defer srv.Close()

	source := config.IPSource{Type: "cf_trace", Source: srv.URL}
	ip, err := newChain(t, config.Fetcher{Sources: []config.IPSource{source}}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if ip != netip.MustParseAddr("198.51.100.20") {
		t.Errorf("got %s", ip)
	}
	if path != "/cdn-cgi/trace" {
		t.Errorf("path = %q, want /cdn-cgi/trace", path)
	}
}

func TestCloudflareTraceHostNormalization(t *testing.T) {
	s, err := newCloudflareTrace(context.Background(), config.IPSource{Source: "2606:4700:4700::1111"})
	if err != nil {
		t.Fatal(err)
	}
	trace := s.(*cloudflareTrace)
	if trace.host != defaultCloudflareDomain || trace.ForceAddress != "2606:4700:4700::1111" {
		t.Errorf("host = %q, force = %q", trace.host, trace.ForceAddress)
	}

	s, err = newCloudflareTrace(context.Background(), config.IPSource{
		Source: "[2606:4700:4700::1111]",
		Config: map[string]any{"ip_host": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.(*cloudflareTrace).host; got != "[2606:4700:4700::1111]" {
		t.Errorf("host = %q", got)
	}
}

func TestChainFallsBack(t *testing.T) {
	bad := serve(t, "nothing here")
	good := serve(t, "203.0.113.77")

	chain := newChain(t, config.Fetcher{Sources: []config.IPSource{
		{Type: "simple", Source: bad.URL},
		{Type: "simple", Source: good.URL},
	}})

	ip, err := chain.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ip != netip.MustParseAddr("203.0.113.77") {
		t.Errorf("got %s", ip)
	}
}

func TestChainTransforms(t *testing.T) {
	srv := serve(t, "2001:db8:aa:bb:1:2:3:4")

	chain := newChain(t, config.Fetcher{
		Sources: []config.IPSource{{Type: "simple", Source: srv.URL}},
		Transformers: []config.IPTransformer{{
			Type:   "mask_rewrite",
			Config: map[string]any{"mask": "64", "overwrite": "::53"},
		}},
	})

	ip, err := chain.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ip != netip.MustParseAddr("2001:db8:aa:bb::53") {
		t.Errorf("got %s", ip)
	}
}

func TestChainStopsOnCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	chain := newChain(t, config.Fetcher{Sources: []config.IPSource{
		{Type: "simple", Source: srv.URL},
		{Type: "simple", Source: srv.URL},
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := chain.Fetch(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestUsesContextClient(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		io.WriteString(w, "203.0.113.3")
	}))
	defer srv.Close()

	ctx := common.WithHTTPClient(context.Background(), common.NewHTTPClient(time.Second, "dynosaur-test"))
	chain := newChain(t, config.Fetcher{Sources: []config.IPSource{{Type: "simple", Source: srv.URL}}})

	if _, err := chain.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if agent != "dynosaur-test" {
		t.Errorf("user agent = %q", agent)
	}
}

func TestNewChainErrors(t *testing.T) {
	bad := []config.Fetcher{
		{Sources: []config.IPSource{{Type: "carrier-pigeon"}}},
		{Sources: []config.IPSource{{Type: "simple"}}},
		{Sources: []config.IPSource{{Type: "simple", Source: "http://x", Config: map[string]any{"unknown": 1}}}},
		{Sources: []config.IPSource{{Type: "simple", Source: "http://x"}}, Transformers: []config.IPTransformer{{Type: "nope"}}},
	}

	for i, c := range bad {
		if _, err := NewChain(context.Background(), c); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestInterface(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("2001:db8::211:22ff:fe33:4455"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("2001:db8::abcd"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("203.0.113.9"), Mask: net.CIDRMask(24, 32)},
	}

	cases := []struct {
		name    string
		config  map[string]any
		want    string
		wantErr bool
	}{
		{name: "v4 global", config: map[string]any{"type": "ipv4"}, want: "203.0.113.9"},
		{name: "v4 private allowed", config: map[string]any{"type": "ipv4", "flags": []any{"private"}}, want: "192.168.1.10"},
		{name: "v6 first", config: map[string]any{"type": "ipv6"}, want: "2001:db8::211:22ff:fe33:4455"},
		{name: "v6 no eui64", config: map[string]any{"type": "ipv6", "flags": []any{"no-eui64"}}, want: "2001:db8::abcd"},
		{name: "v6 last", config: map[string]any{"type": "ipv6", "select": "last"}, want: "2001:db8::abcd"},
		{name: "v6 shortest", config: map[string]any{"type": "ipv6", "select": "shortest"}, want: "2001:db8::abcd"},
		{name: "v6 exclude", config: map[string]any{"type": "ipv6", "exclude": []any{"2001:db8::/32"}}, wantErr: true},
		{name: "v4 include", config: map[string]any{"type": "ipv4", "include": []any{"198.51.100.0/24"}}, wantErr: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := newInterface(context.Background(), config.IPSource{Source: "eth0", Config: c.config})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			iface := s.(*networkInterface)
			iface.addrs = func(name string) ([]net.Addr, error) {
				if name != "eth0" {
					t.Errorf("looked up interface %q", name)
				}
				return addrs, nil
			}

			ip, err := iface.Lookup(context.Background())
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", ip)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if want := netip.MustParseAddr(c.want); ip != want {
				t.Errorf("got %s, want %s", ip, want)
			}
		})
	}
}
