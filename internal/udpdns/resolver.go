package udpdns

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxInFlight bounds the number of concurrent DoH requests per connection.
// Requests beyond this bound wait for a slot to free up. This is a design
// decision to bound memory, not a reverse-engineered protocol invariant.
const MaxInFlight = 8

// DefaultEndpoint is the DoH resolver used when none is configured.
const DefaultEndpoint = "https://1.1.1.1/dns-query"

const dnsMessageContentType = "application/dns-message"

// HTTPDoer is the subset of *http.Client used by Resolver, so tests can
// inject a deterministic responder.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver sends DNS queries to a DoH endpoint over HTTPS and returns the
// raw reply bytes. At most MaxInFlight requests run concurrently across a
// single Resolver instance; a new Resolver (and its semaphore) is created
// per connection.
type Resolver struct {
	Endpoint string
	Client   HTTPDoer

	sem chan struct{}
}

// NewResolver creates a Resolver bound to endpoint, defaulting to
// DefaultEndpoint if empty, and to http.DefaultClient if client is nil.
func NewResolver(endpoint string, client HTTPDoer) *Resolver {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		Endpoint: endpoint,
		Client:   client,
		sem:      make(chan struct{}, MaxInFlight),
	}
}

// Resolve POSTs query to the DoH endpoint and returns the response body.
// Transport errors and non-2xx responses are returned as errors; callers
// treat these as non-fatal to the connection and simply drop the
// datagram. Resolve blocks if MaxInFlight requests are already in flight
// on this Resolver, until a slot frees up or ctx is cancelled.
func (r *Resolver) Resolve(ctx context.Context, query []byte) ([]byte, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("udpdns: build request: %w", err)
	}
	req.Header.Set("Content-Type", dnsMessageContentType)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("udpdns: doh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("udpdns: doh endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("udpdns: read response: %w", err)
	}
	return body, nil
}
