package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"dynosaur/config"
	"dynosaur/log"
	"dynosaur/transformers"

	"go.uber.org/zap"
)

type Chain struct {
	sources      []Interface
	transformers []transformers.Interface
}

func (c *Chain) Fetch(ctx context.Context) (netip.Addr, error) {
	ctx = log.SWith(ctx, log.Stage("fetch"))

	var errs []error
Next:
	for _, source := range c.sources {
		ip, err := source.Lookup(ctx)
		if err != nil {
			log.S(ctx).Debugw("source failed", "source_type", source.Typename(), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", source.Typename(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		for _, transformer := range c.transformers {
			ip, err = transformer.Transform(ctx, ip)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: transform: %w", source.Typename(), err))
				continue Next
			}
		}

		log.S(ctx).Debugw("resolved ip", log.IP(ip), "source_type", source.Typename())
		return ip, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no source configured"))
	}

	return netip.Addr{}, &FetchError{Err: errors.Join(errs...)}
}

// NewChain builds the sources and transformers named in c.
func NewChain(ctx context.Context, c config.Fetcher) (*Chain, error) {
	chain := &Chain{}

	for _, s := range c.Sources {
		ctx := log.SWith(ctx, log.Stage("init:source"), "type", s.Type)
		create, ok := Fetchers[s.Type]
		if !ok {
			log.S(ctx).Errorw("unknown source type")
			return nil, fmt.Errorf("unknown source type %q", s.Type)
		}

		source, err := create(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("failed creating source: %w", err)
		}
		chain.sources = append(chain.sources, source)
	}

	for _, t := range c.Transformers {
		ctx := log.SWith(ctx, log.Stage("init:transformer"), "type", t.Type)
		create, ok := transformers.Transformers[t.Type]
		if !ok {
			log.S(ctx).Errorw("unknown transformer type")
			return nil, fmt.Errorf("unknown transformer type %q", t.Type)
		}

		transformer, err := create(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed creating transformer: %w", err)
		}
		chain.transformers = append(chain.transformers, transformer)
	}

	return chain, nil
}
