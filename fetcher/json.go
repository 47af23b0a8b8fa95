package fetcher

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/log"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const maxReadJSON = 16 * 1024

const defaultJSONField = "origin"

// jsonSource reads an address from one string field of a JSON object,
// such as the "origin" field of https://httpbin.org/ip.
type jsonSource struct {
	config.IPSourceJSONConfig `mapstructure:",squash"`

	url string
}

func (s *jsonSource) Typename() string {
	return "json"
}

func (s *jsonSource) Lookup(ctx context.Context) (result netip.Addr, err error) {
	timeout := time.Duration(s.Timeout)

	client, err := wrapClientDialer(ctx, common.HTTPClient(ctx), familyDialer(s.Type))
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx, "url", s.url, "field", s.Field, "family", s.Type, "timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	data, err := get(ctx, client, s.url, timeout, maxReadJSON)
	if err != nil {
		return netip.Addr{}, err
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		log.S(ctx).Warnw("response is not a JSON object", log.ByteField("body", data), zap.Error(err))
		return netip.Addr{}, fmt.Errorf("failed decoding response: %w", err)
	}

	value, ok := body[s.Field]
	if !ok {
		log.S(ctx).Warnw("missing field in response", log.ByteField("body", data))
		return netip.Addr{}, fmt.Errorf("missing %q property in response", s.Field)
	}

	ipString, ok := value.(string)
	if !ok {
		log.S(ctx).Warnw("field is not a string", "value", value)
		return netip.Addr{}, fmt.Errorf("property %q is not a string", s.Field)
	}

	nip, err := netip.ParseAddr(strings.TrimSpace(ipString))
	if err != nil {
		log.S(ctx).Warnw("found bad IP", "ip", ipString, zap.Error(err))
		return netip.Addr{}, fmt.Errorf("malformed IP address: %s", ipString)
	}

	return checkAddr(ctx, nip, s.Type)
}

func newJSON(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "json")

	s := &jsonSource{url: config.Source}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.url == "" {
		log.S(ctx).Errorw("bad config: empty url")
		return nil, fmt.Errorf("bad config: empty url")
	}

	if s.Field == "" {
		s.Field = defaultJSONField
	}

	return s, nil
}
