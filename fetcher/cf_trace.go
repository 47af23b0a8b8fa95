package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/log"

	"go.uber.org/zap"
)

const maxReadCloudflareTrace = 1024
const defaultCloudflareDomain = "www.cloudflare.com"

type cloudflareTrace struct {
	config.IPSourceCloudflareTraceConfig `mapstructure:",squash"`

	host   string
	scheme string
}

func (s *cloudflareTrace) Typename() string {
	return "cf_trace"
}

func (s *cloudflareTrace) wrapDialer(upstream transportDialer) transportDialer {
	pinned := familyDialer(s.Type)(upstream)
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if s.ForceAddress != "" {
			_, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			addr = net.JoinHostPort(s.ForceAddress, port)
		}

		return pinned(ctx, network, addr)
	}
}

func (s *cloudflareTrace) Lookup(ctx context.Context) (result netip.Addr, err error) {
	client := common.HTTPClient(ctx)
	timeout := time.Duration(s.Timeout)

	ctx = log.SWith(ctx,
		"host", s.host,
		"family", s.Type,
		"force_addr", s.ForceAddress,
		"timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	if s.ForceAddress != "" || s.Type != nil {
		log.S(ctx).Debug("patching http.Client")
		client, err = wrapClientDialer(ctx, client, s.wrapDialer)
		if err != nil {
			return netip.Addr{}, err
		}
	}

	url := fmt.Sprintf("%s://%s/cdn-cgi/trace", s.scheme, s.host)

	data, err := get(ctx, client, url, timeout, maxReadCloudflareTrace)
	if err != nil {
		return netip.Addr{}, err
	}

	ipString := ""
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "ip=") {
			ipString = strings.TrimSpace(strings.TrimPrefix(line, "ip="))
			break
		}
	}

	if ipString == "" {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, fmt.Errorf("missing ip property in trace response")
	}

	nip, err := netip.ParseAddr(ipString)
	if err != nil {
		log.S(ctx).Errorw("found bad IP", "ip", ipString, zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`malformed IP address: %w`, err)
	}

	return checkAddr(ctx, nip, s.Type)
}

func newCloudflareTrace(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "cf_trace")

	source := config.Source
	scheme := "https"
	if rest, ok := strings.CutPrefix(source, "http://"); ok {
		source, scheme = rest, "http"
	}

	host, isIP := common.DetectNormalizeAddr(source)
	if host == "" {
		host = defaultCloudflareDomain
	}
	s := &cloudflareTrace{host: host, scheme: scheme}

	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if !s.IPHost && isIP {
		s.ForceAddress = s.host
		s.host = defaultCloudflareDomain
	}

	if addr, err := netip.ParseAddr(s.host); err == nil && addr.Is6() {
		s.host = fmt.Sprintf("[%s]", s.host)
	}

	return s, nil
}
