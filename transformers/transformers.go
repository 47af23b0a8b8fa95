// Package transformers rewrites a discovered address before it is published.
package transformers

import (
	"context"
	"net/netip"

	"dynosaur/config"
)

type Interface interface {
	Transform(ctx context.Context, ip netip.Addr) (netip.Addr, error)
}

var Transformers = map[string]func(ctx context.Context, transformer config.IPTransformer) (Interface, error){
	"mask_rewrite": newMaskRewrite,
}
