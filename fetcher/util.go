package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"reflect"
	"time"

	"dynosaur/common"
	"dynosaur/log"

	"go.uber.org/zap"
)

type transportDialer func(ctx context.Context, network, addr string) (net.Conn, error)

// familyDialer pins outgoing connections to the given family.
func familyDialer(family *common.Family) func(upstream transportDialer) transportDialer {
	return func(upstream transportDialer) transportDialer {
		return func(ctx context.Context, network, addr string) (net.Conn, error) {
			switch {
			case family == nil:
				// pass
			case *family == common.IPv4:
				network += "4"
			case *family == common.IPv6:
				network += "6"
			}

			return upstream(ctx, network, addr)
		}
	}
}

func wrapClientDialer(ctx context.Context, client *http.Client, wrapperBuilder func(upstream transportDialer) transportDialer) (*http.Client, error) {
	if client == nil {
		client = http.DefaultClient
	}

	transport, ok := common.Transport(client)
	if !ok {
		log.S(ctx).Errorw("found unknown custom http.Client.Transport",
			"transport_type", reflect.TypeOf(client.Transport).String())
		return nil, fmt.Errorf("unknown custom http.Client.Transport")
	}

	transport = transport.Clone()
	dial := transport.DialContext
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	transport.DialContext = wrapperBuilder(dial)

	if transport.DialTLSContext != nil {
		transport.DialTLSContext = wrapperBuilder(transport.DialTLSContext)
	}

	return common.WithTransport(client, transport), nil
}

// get performs a GET against url and returns at most limit bytes of a 200 response body.
func get(ctx context.Context, client *http.Client, url string, timeout time.Duration, limit int64) ([]byte, error) {
	if timeout > 0 {
		tCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ctx = tCtx
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return nil, fmt.Errorf("new request failed: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return nil, fmt.Errorf(`connection failed: %w`, err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.S(ctx).Warnw("unexpected status", "status", resp.Status)
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return nil, fmt.Errorf(`failed receiving response: %w`, err)
	}

	return data, nil
}

// checkAddr enforces the invariants shared by every HTTP source: no zone, matching family.
func checkAddr(ctx context.Context, nip netip.Addr, family *common.Family) (netip.Addr, error) {
	switch {
	case nip.Zone() != "":
		log.S(ctx).Warnw("found zone in IP", log.IP(nip), "zone", nip.Zone())
		return netip.Addr{}, fmt.Errorf(`unsupported: found zone in IP`)

	case !family.Match(nip):
		log.S(ctx).Warnw("mismatched IP family", log.IP(nip), "family", family)
		return netip.Addr{}, fmt.Errorf(`mismatched IP family: %s is not %s`, nip, family)

	default:
		return nip.Unmap(), nil
	}
}
