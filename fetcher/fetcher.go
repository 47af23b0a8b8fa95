// Package fetcher discovers the public IP address of this host.
//
// A fetcher is configured as an ordered list of sources. Each call to [Chain.Fetch]
// asks the sources in turn and returns the first address that survives every
// configured transformer.
package fetcher

import (
	"context"
	"net/netip"

	"dynosaur/config"
)

// Interface is a single way of discovering an address.
type Interface interface {
	Lookup(ctx context.Context) (netip.Addr, error)
	Typename() string
}

var Fetchers = map[string]func(ctx context.Context, source config.IPSource) (Interface, error){
	"simple":    newSimple,
	"json":      newJSON,
	"cf_trace":  newCloudflareTrace,
	"interface": newInterface,
}

// FetchError reports that no address could be discovered.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "failed to fetch public IP address: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
