package openchatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/port402/ocb/internal/client"
)

// Ask methods. They are lowercase and matched case-sensitively.
const (
	MethodGet  = "get"
	MethodPost = "post"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodySize     = 1 << 20 // 1MB
)

// HTTPDoer sends one HTTP request. *http.Client and *client.Client both
// satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Asker is anything that can be asked a question and has a base URL.
type Asker interface {
	fmt.Stringer
	BaseURL() string
	Ask(ctx context.Context, userID, query string, opts ...AskOption) (*Response, error)
}

// BotClient sends ask requests to a single bot. It is immutable after
// construction and safe for concurrent use.
type BotClient struct {
	host       string
	port       int
	path       string
	name       string
	avatar     string
	headers    map[string]string
	descriptor *Descriptor
	http       HTTPDoer
	ownHTTP    bool
	logger     zerolog.Logger
}

var _ Asker = (*BotClient)(nil)

// Option configures a BotClient.
type Option func(*BotClient)

// WithPort sets an explicit port. Zero keeps the scheme default.
func WithPort(port int) Option {
	return func(b *BotClient) { b.port = port }
}

// WithPath sets the ask endpoint path.
func WithPath(path string) Option {
	return func(b *BotClient) { b.path = path }
}

// WithDescriptor attaches the descriptor the client was built from.
func WithDescriptor(d *Descriptor) Option {
	return func(b *BotClient) { b.descriptor = d }
}

// WithHeaders adds headers sent with every ask.
func WithHeaders(headers map[string]string) Option {
	return func(b *BotClient) {
		for k, v := range headers {
			b.headers[k] = v
		}
	}
}

// WithName overrides the display name used in logs and rendering.
func WithName(name string) Option {
	return func(b *BotClient) { b.name = name }
}

// WithAvatar attaches an avatar reference for display purposes.
func WithAvatar(avatar string) Option {
	return func(b *BotClient) { b.avatar = avatar }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(b *BotClient) { b.http = doer }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *BotClient) { b.logger = logger }
}

// NewBotClient creates a client for host, given as scheme://domain.
func NewBotClient(host string, opts ...Option) (*BotClient, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, fmt.Errorf("%w: host is empty", ErrArgument)
	}
	if !hasScheme(host) {
		return nil, fmt.Errorf("%w: host %q has no scheme", ErrArgument, host)
	}

	b := &BotClient{
		host:    host,
		headers: make(map[string]string),
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.port < 0 || b.port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrArgument, b.port)
	}
	b.port = defaultPort(b.host, b.port)
	b.path = normalizeEndpoint(b.path)
	if b.http == nil {
		// Per-call deadlines come from the context, see Ask.
		b.http = client.New(client.WithTimeout(0))
		b.ownHTTP = true
	}
	if b.descriptor == nil {
		d, err := BuildDescriptor(b.host, b.port, b.path)
		if err != nil {
			return nil, err
		}
		b.descriptor = d
	}
	return b, nil
}

// FromDescriptor creates a client reaching the bot described by d.
// Options given after d may still override its fields.
func FromDescriptor(d *Descriptor, opts ...Option) (*BotClient, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: descriptor is nil", ErrArgument)
	}
	base := []Option{WithPort(d.Port()), WithPath(d.Endpoint()), WithDescriptor(d)}
	return NewBotClient(d.Host(), append(base, opts...)...)
}

// FromURL creates a client from a full ask URL such as
// https://bot.example:8443/api/ask. A URL without scheme is taken as https.
// Without an explicit port the scheme default applies.
func FromURL(rawURL string, opts ...Option) (*BotClient, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is empty", ErrArgument)
	}

	if strings.ContainsAny(rawURL, "?#") {
		return nil, fmt.Errorf("%w: url %q must not carry a query or fragment, use WithParams", ErrArgument, rawURL)
	}

	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		scheme, rest = "https", rawURL
	}
	authority, path, _ := strings.Cut(rest, "/")
	if authority == "" {
		return nil, fmt.Errorf("%w: url %q has no host", ErrArgument, rawURL)
	}

	var port int
	if i := strings.LastIndex(authority, ":"); i >= 0 && !strings.HasSuffix(authority, "]") {
		p := authority[i+1:]
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: url %q has invalid port %q", ErrArgument, rawURL, p)
		}
		authority, port = authority[:i], n
	}

	base := []Option{WithPort(port), WithPath(path)}
	return NewBotClient(scheme+"://"+authority, append(base, opts...)...)
}

// Host returns scheme://domain.
func (b *BotClient) Host() string { return b.host }

// Port returns the effective port.
func (b *BotClient) Port() int { return b.port }

// Path returns the ask endpoint.
func (b *BotClient) Path() string { return b.path }

// Avatar returns the avatar reference, if any.
func (b *BotClient) Avatar() string { return b.avatar }

// Descriptor returns the descriptor the client was built from, or one
// synthesized from its host, port and path.
func (b *BotClient) Descriptor() *Descriptor { return b.descriptor }

// Name returns the display name: WithName, or the host without scheme.
func (b *BotClient) Name() string {
	if b.name != "" {
		return b.name
	}
	if i := strings.LastIndex(b.host, "/"); i >= 0 {
		return b.host[i+1:]
	}
	return b.host
}

func (b *BotClient) String() string { return b.Name() }

// BaseURL returns scheme://host[:port]/path.
func (b *BotClient) BaseURL() string {
	u := b.host
	if b.port != 0 {
		u += ":" + strconv.Itoa(b.port)
	}
	return u + b.path
}

// askConfig holds the per-call settings of Ask.
type askConfig struct {
	lang     string
	location string
	method   string
	timeout  time.Duration
	headers  map[string]string
	params   map[string]string
}

// AskOption configures one Ask call.
type AskOption func(*askConfig)

// WithLang sends the lang parameter.
func WithLang(lang string) AskOption {
	return func(c *askConfig) { c.lang = lang }
}

// WithLocation sends the location parameter.
func WithLocation(location string) AskOption {
	return func(c *askConfig) { c.location = location }
}

// WithMethod selects "get" (query string) or "post" (JSON body).
func WithMethod(method string) AskOption {
	return func(c *askConfig) { c.method = method }
}

// WithTimeout bounds this call only. When the client uses its default
// transport, this replaces client.DefaultTimeout; a transport given with
// WithHTTPClient keeps its own timeout, which may be shorter.
func WithTimeout(timeout time.Duration) AskOption {
	return func(c *askConfig) { c.timeout = timeout }
}

// WithRequestHeaders adds headers for this call; they win over client headers.
func WithRequestHeaders(headers map[string]string) AskOption {
	return func(c *askConfig) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithParams adds extra request parameters. userId and query cannot be
// overridden this way.
func WithParams(params map[string]string) AskOption {
	return func(c *askConfig) {
		for k, v := range params {
			c.params[k] = v
		}
	}
}

func newAskConfig(opts []AskOption) *askConfig {
	cfg := &askConfig{
		method:  MethodGet,
		headers: make(map[string]string),
		params:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Ask sends query on behalf of userID and returns the bot's reply.
//
// Errors: ErrArgument (or ErrUnsupportedMethod) before any request is sent,
// *TransportError when the exchange fails or the reply is not a JSON 200,
// *ServerError when the reply's status.code is not 200.
func (b *BotClient) Ask(ctx context.Context, userID, query string, opts ...AskOption) (*Response, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is empty", ErrArgument)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrArgument)
	}

	cfg := newAskConfig(opts)
	params := b.buildParams(userID, query, cfg)
	req, err := b.buildRequest(ctx, cfg, params)
	if err != nil {
		return nil, err
	}

	timeout := cfg.timeout
	if timeout <= 0 && b.ownHTTP {
		timeout = client.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	start := time.Now()
	body, err := b.send(req)
	latency := time.Since(start)
	if err != nil {
		b.logger.Debug().Err(err).Str("bot", b.Name()).Dur("latency", latency).Msg("ask failed")
		return nil, err
	}

	if err := checkStatus(body); err != nil {
		return nil, err
	}

	resp := NewResponse(b, body)
	resp.latency = latency
	b.logger.Debug().Str("bot", b.Name()).Dur("latency", latency).Msg("ask answered")
	return resp, nil
}

// buildParams merges extras with userId/query and the optional fields.
func (b *BotClient) buildParams(userID, query string, cfg *askConfig) map[string]string {
	params := make(map[string]string, len(cfg.params)+4)
	for k, v := range cfg.params {
		params[k] = v
	}
	params["userId"] = userID
	params["query"] = query
	if cfg.lang != "" {
		params["lang"] = cfg.lang
	}
	if cfg.location != "" {
		params["location"] = cfg.location
	}
	return params
}

func (b *BotClient) buildRequest(ctx context.Context, cfg *askConfig, params map[string]string) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	switch cfg.method {
	case MethodGet:
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL()+"?"+values.Encode(), nil)
	case MethodPost:
		payload, merr := json.Marshal(params)
		if merr != nil {
			return nil, fmt.Errorf("encoding ask body: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL(), bytes.NewReader(payload))
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedMethod, cfg.method)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// send performs the exchange and returns the JSON body of a 200 reply.
func (b *BotClient) send(req *http.Request) ([]byte, error) {
	target := b.BaseURL()

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: client.ParseRetryAfter(resp),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, &TransportError{URL: target, StatusCode: resp.StatusCode, Body: string(body), Err: ErrInvalidResponse}
	}
	return body, nil
}

// checkStatus turns a non-200 status.code into a ServerError.
func checkStatus(body []byte) error {
	status := gjson.GetBytes(body, "status")
	code := int(status.Get("code").Int())
	if code == http.StatusOK {
		return nil
	}
	description := status.Get("errorType").String()
	if description == "" {
		description = "Unknown error"
	}
	return &ServerError{Code: code, Description: description}
}
