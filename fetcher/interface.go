package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/log"

	"go.uber.org/zap"
)

// networkInterface picks an address assigned to a local interface. It is useful when
// the host holds its public address directly, as is common for IPv6.
type networkInterface struct {
	config.IPSourceInterfaceConfig `mapstructure:",squash"`

	iface string
	flag  common.IPFilterFlag

	addrs func(name string) ([]net.Addr, error)
}

func (s *networkInterface) Typename() string {
	return "interface"
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf(`find interface failed: %w`, err)
	}

	return iface.Addrs()
}

func (s *networkInterface) eligible(ctx context.Context, ip netip.Addr) bool {
	ctx = log.SWith(ctx, log.IP(ip))

	if !s.Type.Match(ip) {
		log.S(ctx).Debugw("discard IP", "reason", "family mismatch")
		return false
	}

	if !s.flag.Match(common.FlagNonGlobalUnicast) && !ip.IsGlobalUnicast() {
		log.S(ctx).Debugw("discard IP", "reason", "ignore non Global Unicast IP")
		return false
	}

	if !s.flag.Match(common.FlagPrivate) && ip.IsPrivate() {
		log.S(ctx).Debugw("discard IP", "reason", "ignore Private IP")
		return false
	}

	if s.flag.Match(common.FlagNoEUI64) && ip.Is6() {
		b := ip.As16()
		if b[11] == 0xff && b[12] == 0xfe {
			log.S(ctx).Debugw("discard IP", "reason", "ignore EUI64 IP")
			return false
		}
	}

	for _, ex := range s.Exclude {
		if ex.Contains(ip) {
			log.S(ctx).Debugw("discard IP", "reason", "in exclude CIDR", "cidr", ex)
			return false
		}
	}

	if s.Include != nil {
		if !slices.ContainsFunc(s.Include, func(ic common.CIDR) bool { return ic.Contains(ip) }) {
			log.S(ctx).Debugw("discard IP", "reason", "not in any include CIDR")
			return false
		}
	}

	return true
}

func (s *networkInterface) Lookup(ctx context.Context) (result netip.Addr, err error) {
	family := s.Type
	ctx = log.SWith(ctx,
		"interface", s.iface,
		"family", &family,
		"select", s.Select,
		"flag", s.flag,
	)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	addrs, err := s.addrs(s.iface)
	if err != nil {
		log.S(ctx).Warnw("get address failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`get address failed: %w`, err)
	}

	var candidate []netip.Addr
	for _, addr := range addrs {
		var raw net.IP
		switch addr := addr.(type) {
		case *net.IPAddr:
			raw = addr.IP
		case *net.IPNet:
			raw = addr.IP
		default:
			continue
		}

		ip, ok := netip.AddrFromSlice(raw)
		if !ok {
			continue
		}
		ip = ip.Unmap()

		if s.eligible(ctx, ip) {
			candidate = append(candidate, ip)
		}
	}

	if len(candidate) == 0 {
		log.S(ctx).Warnw("no eligible IP found")
		return netip.Addr{}, fmt.Errorf(`no eligible IP found`)
	}

	switch s.Select {
	case common.SelectShortest:
		slices.SortStableFunc(candidate, func(i, j netip.Addr) int {
			return len(i.String()) - len(j.String())
		})
		fallthrough
	case common.SelectFirst:
		return candidate[0], nil
	case common.SelectLast:
		return candidate[len(candidate)-1], nil
	default:
		log.S(ctx).Errorw("unexpected select mode", log.Internal)
		return netip.Addr{}, fmt.Errorf(`internal error: unexpected select mode`)
	}
}

func newInterface(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "interface")

	s := &networkInterface{iface: config.Source, addrs: interfaceAddrs}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	for _, f := range s.Flags {
		s.flag |= f
	}

	return s, nil
}
