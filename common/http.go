package common

import (
	"context"
	"net/http"
	"time"
)

const DefaultUserAgent = "dynosaurd"

type httpClientType struct{}

// HttpClientKey is the context key under which the shared *http.Client is stored.
var HttpClientKey httpClientType

func WithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, HttpClientKey, client)
}

// HTTPClient returns the client stored in ctx, or http.DefaultClient.
func HTTPClient(ctx context.Context) *http.Client {
	if client, ok := ctx.Value(HttpClientKey).(*http.Client); ok && client != nil {
		return client
	}

	return http.DefaultClient
}

type userAgentTransport struct {
	agent    string
	upstream http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}

	return t.upstream.RoundTrip(req)
}

// NewHTTPClient builds the client shared by fetchers and updaters.
// A zero timeout leaves requests bounded only by their context.
func NewHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			agent:    userAgent,
			upstream: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// Transport returns the *http.Transport underneath client, unwrapping the user agent layer.
func Transport(client *http.Client) (*http.Transport, bool) {
	switch t := client.Transport.(type) {
	case nil:
		return http.DefaultTransport.(*http.Transport), true
	case *http.Transport:
		return t, true
	case *userAgentTransport:
		inner, ok := t.upstream.(*http.Transport)
		return inner, ok
	default:
		return nil, false
	}
}

// WithTransport returns a shallow copy of client whose base transport is replaced,
// keeping the user agent layer if present.
func WithTransport(client *http.Client, transport *http.Transport) *http.Client {
	clientCopy := *client
	if ua, ok := client.Transport.(*userAgentTransport); ok {
		clientCopy.Transport = &userAgentTransport{agent: ua.agent, upstream: transport}
	} else {
		clientCopy.Transport = transport
	}
	return &clientCopy
}
