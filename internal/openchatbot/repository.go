package openchatbot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/port402/ocb/internal/client"
)

// DescriptorPath is where a domain publishes its bot descriptor.
const DescriptorPath = "/.well-known/openchatbot-configuration"

// acceptedStatus lists the replies that may carry a descriptor.
var acceptedStatus = map[int]bool{
	http.StatusOK:             true,
	http.StatusCreated:        true,
	http.StatusAccepted:       true,
	http.StatusNoContent:      true,
	http.StatusPartialContent: true,
}

// Repository resolves domains to descriptors and bot clients.
type Repository struct {
	http       HTTPDoer
	clientOpts []Option
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithRepositoryHTTPClient replaces the transport used for descriptor
// fetches. Clients built by ResolveClient share it unless overridden.
func WithRepositoryHTTPClient(doer HTTPDoer) RepositoryOption {
	return func(r *Repository) { r.http = doer }
}

// WithClientOptions applies opts to every client built by ResolveClient.
func WithClientOptions(opts ...Option) RepositoryOption {
	return func(r *Repository) { r.clientOpts = append(r.clientOpts, opts...) }
}

// NewRepository creates a Repository.
func NewRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{}
	for _, opt := range opts {
		opt(r)
	}
	if r.http == nil {
		r.http = client.New()
	}
	return r
}

// fetchConfig holds the per-call settings of FetchDescriptor.
type fetchConfig struct {
	headers  map[string]string
	body     []byte
	username string
	password string
}

// FetchOption configures one descriptor fetch.
type FetchOption func(*fetchConfig)

// WithFetchHeaders adds headers to the descriptor request.
func WithFetchHeaders(headers map[string]string) FetchOption {
	return func(c *fetchConfig) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithFetchBody sends body with the descriptor GET.
func WithFetchBody(body []byte) FetchOption {
	return func(c *fetchConfig) { c.body = body }
}

// WithBasicAuth authenticates the descriptor request.
func WithBasicAuth(username, password string) FetchOption {
	return func(c *fetchConfig) {
		c.username = username
		c.password = password
	}
}

// DescriptorURL returns https://{domain}/.well-known/openchatbot-configuration.
func (r *Repository) DescriptorURL(domain string) string {
	return "https://" + strings.TrimRight(strings.TrimSpace(domain), "/") + DescriptorPath
}

// FetchDescriptor retrieves and parses the descriptor published by domain.
// It returns ErrNoDescriptor when nothing usable came back and
// ErrInvalidDescriptor when the document cannot be parsed.
func (r *Repository) FetchDescriptor(ctx context.Context, domain string, opts ...FetchOption) (*Descriptor, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, fmt.Errorf("%w: domain is empty", ErrArgument)
	}

	cfg := &fetchConfig{headers: make(map[string]string)}
	for _, opt := range opts {
		opt(cfg)
	}

	target := r.DescriptorURL(domain)
	var body io.Reader
	if cfg.body != nil {
		body = bytes.NewReader(cfg.body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}
	if cfg.username != "" {
		req.SetBasicAuth(cfg.username, cfg.password)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNoDescriptor, target, err)
	}
	defer resp.Body.Close()

	if !acceptedStatus[resp.StatusCode] {
		return nil, fmt.Errorf("%w at %s: status %d", ErrNoDescriptor, target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNoDescriptor, target, err)
	}

	d, err := ParseDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	return d, nil
}

// ResolveClient fetches the descriptor of domain and builds a client for it.
func (r *Repository) ResolveClient(ctx context.Context, domain string, opts ...FetchOption) (*BotClient, error) {
	d, err := r.FetchDescriptor(ctx, domain, opts...)
	if err != nil {
		return nil, err
	}
	clientOpts := append([]Option{WithHTTPClient(r.http)}, r.clientOpts...)
	return FromDescriptor(d, clientOpts...)
}
