package fetcher

import (
	"context"
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strings"
	"time"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/log"

	"go.uber.org/zap"
)

const maxReadSimple = 4 * 1024

// ipCandidate matches runs that may hold an address; netip.ParseAddr has the final word.
var ipCandidate = regexp.MustCompile(`[0-9A-Fa-f:.]*[:.][0-9A-Fa-f:.]*`)

// simple reads an address out of a plain text response, such as https://ifconfig.io/ip.
type simple struct {
	config.IPSourceSimpleConfig `mapstructure:",squash"`

	url string
}

func (s *simple) Typename() string {
	return "simple"
}

func (s *simple) Lookup(ctx context.Context) (result netip.Addr, err error) {
	timeout := time.Duration(s.Timeout)

	client, err := wrapClientDialer(ctx, common.HTTPClient(ctx), familyDialer(s.Type))
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx, "url", s.url, "family", s.Type, "timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	data, err := get(ctx, client, s.url, timeout, maxReadSimple)
	if err != nil {
		return netip.Addr{}, err
	}

	if s.Strict {
		nip, err := netip.ParseAddr(strings.TrimSpace(string(data)))
		if err != nil {
			log.S(ctx).Warnw("response is not a bare IP", log.ByteField("body", data), zap.Error(err))
			return netip.Addr{}, fmt.Errorf("malformed IP address in response: %q", data)
		}
		return checkAddr(ctx, nip, s.Type)
	}

	var found []netip.Addr
	for _, candidate := range ipCandidate.FindAll(data, -1) {
		nip, err := netip.ParseAddr(string(candidate))
		if err != nil || !s.Type.Match(nip) || slices.Contains(found, nip) {
			continue
		}
		found = append(found, nip)
	}

	switch len(found) {
	case 0:
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, fmt.Errorf("malformed IP address in response: %q", data)
	case 1:
		return checkAddr(ctx, found[0], s.Type)
	default:
		log.S(ctx).Warnw("multiple IPs found in response", "candidates", found)
		return netip.Addr{}, fmt.Errorf("ambiguous response: found %d addresses", len(found))
	}
}

func newSimple(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "simple")

	s := &simple{url: config.Source}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.url == "" {
		log.S(ctx).Errorw("bad config: empty url")
		return nil, fmt.Errorf("bad config: empty url")
	}

	return s, nil
}
