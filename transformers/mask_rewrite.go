package transformers

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/log"

	"go.uber.org/zap"
)

// maskRewrite keeps the bits of the discovered address selected by mask and takes the
// rest from overwrite, e.g. to derive a host address from a delegated IPv6 prefix.
type maskRewrite struct {
	mask      net.IPMask
	overwrite netip.Addr
}

func (t *maskRewrite) Transform(ctx context.Context, ip netip.Addr) (result netip.Addr, err error) {
	ctx = log.SWith(ctx, "overwrite", t.overwrite, "mask", t.mask)

	if ip.BitLen() != t.overwrite.BitLen() {
		log.S(ctx).Warnw("mismatched IP family", log.IP(ip))
		return netip.Addr{}, fmt.Errorf(`mismatched IP family`)
	}

	in := ip.AsSlice()
	over := t.overwrite.AsSlice()
	out := make([]byte, len(in))

	for i := 0; i < len(in); i++ {
		out[i] = (in[i] & t.mask[i]) | (over[i] & ^t.mask[i])
	}

	result, _ = netip.AddrFromSlice(out)
	log.S(ctx).Debugw("transformed ip", log.IP(result))

	return
}

func newMaskRewrite(ctx context.Context, conf config.IPTransformer) (Interface, error) {
	ctx = log.SWith(ctx, "type", "mask_rewrite")

	s := &maskRewrite{}

	var c config.IPTransformerMaskRewriteConfig

	if err := common.WeakDecodeMap(conf.Config, &c); err != nil {
		log.S(ctx).Errorw("bad conf", zap.Error(err), "conf", conf.Config)
		return nil, fmt.Errorf(`bad conf: %w`, err)
	}

	if !c.Overwrite.IsValid() {
		log.S(ctx).Errorw("bad conf: overwrite is required")
		return nil, fmt.Errorf("bad conf: overwrite is required")
	}

	s.overwrite = c.Overwrite.Unmap()
	bits := s.overwrite.BitLen()

	if cidr, err := strconv.ParseUint(c.Mask, 10, 8); err == nil {
		if cidr > uint64(bits) {
			log.S(ctx).Errorw("bad conf: CIDR out of range", "overwrite", s.overwrite, "cidr", cidr)
			return nil, fmt.Errorf("bad conf: CIDR out of range")
		}
		s.mask = net.CIDRMask(int(cidr), bits)
	} else {
		mask, err := netip.ParseAddr(c.Mask)
		if err != nil {
			log.S(ctx).Errorw("bad conf: bad mask", zap.Error(err), "mask", c.Mask)
			return nil, fmt.Errorf(`bad conf: bad mask: %w`, err)
		}

		if mask.BitLen() != bits {
			log.S(ctx).Errorw("mask and overwrite has mismatched IP family", "mask", mask, "overwrite", s.overwrite)
			return nil, fmt.Errorf(`bad conf: mismatch IP family`)
		}
		s.mask = mask.AsSlice()
	}

	return s, nil
}
