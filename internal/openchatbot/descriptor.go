// Package openchatbot implements a client for chatbots that speak the
// Open Chatbot "ask" protocol.
//
// A bot publishes a Descriptor at a well-known URL of its domain. A
// Repository fetches it and builds a BotClient, whose Ask method sends one
// user query and returns a Response. A Group broadcasts a query to many
// bots and collects the successful answers, in membership order, into a
// ResponseGroup.
package openchatbot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Descriptor document keys and defaults.
const (
	Namespace       = "openchatbot"
	DefaultEndpoint = "/api/ask"

	securePrefix = "https://"
	securePort   = 443
	plainPort    = 80
)

// DefaultMethods are the HTTP verbs a bot accepts when its descriptor
// does not list any.
var DefaultMethods = []string{"GET", "POST"}

// Descriptor describes how to reach one bot. It is immutable and always
// carries a host.
type Descriptor struct {
	host     string
	port     int
	endpoint string
	methods  []string
}

// ParseDescriptor decodes a descriptor document such as
//
//	{"openchatbot": {"host": "https://bot.example", "endpoint": "/api/ask", "port": 443, "methods": ["GET", "POST"]}}
func ParseDescriptor(data []byte) (*Descriptor, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrInvalidDescriptor)
	}

	ns := gjson.GetBytes(data, Namespace)
	if !ns.IsObject() {
		return nil, fmt.Errorf("%w: missing %q object", ErrInvalidDescriptor, Namespace)
	}

	host := ns.Get("host")
	if host.Type != gjson.String || strings.TrimSpace(host.Str) == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidDescriptor)
	}

	port, err := parsePort(ns.Get("port"))
	if err != nil {
		return nil, err
	}

	var methods []string
	if m := ns.Get("methods"); m.Exists() {
		if !m.IsArray() {
			return nil, fmt.Errorf("%w: methods must be a list", ErrInvalidDescriptor)
		}
		for _, v := range m.Array() {
			methods = append(methods, v.String())
		}
	}

	return BuildDescriptor(host.Str, port, ns.Get("endpoint").String(), methods...)
}

// NewDescriptor builds a Descriptor from an already decoded document.
func NewDescriptor(raw map[string]any) (*Descriptor, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	return ParseDescriptor(data)
}

// BuildDescriptor builds a Descriptor programmatically. A zero port is
// derived from the host scheme, an empty endpoint becomes /api/ask and
// no methods means GET and POST.
func BuildDescriptor(host string, port int, endpoint string, methods ...string) (*Descriptor, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidDescriptor)
	}
	if !hasScheme(host) {
		return nil, fmt.Errorf("%w: host %q has no scheme", ErrInvalidDescriptor, host)
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidDescriptor, port)
	}

	d := &Descriptor{
		host:     host,
		port:     defaultPort(host, port),
		endpoint: normalizeEndpoint(endpoint),
	}
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	for _, m := range methods {
		d.methods = append(d.methods, strings.ToUpper(strings.TrimSpace(m)))
	}
	return d, nil
}

// Host returns the scheme and domain, e.g. https://bot.example.
func (d *Descriptor) Host() string { return d.host }

// Port returns the declared port, or 443/80 depending on the host scheme.
func (d *Descriptor) Port() int { return d.port }

// Endpoint returns the ask path, always starting with a slash.
func (d *Descriptor) Endpoint() string { return d.endpoint }

// Methods returns the allowed HTTP verbs in upper case.
func (d *Descriptor) Methods() []string {
	return append([]string(nil), d.methods...)
}

// Supports reports whether method is one of the descriptor's verbs.
func (d *Descriptor) Supports(method string) bool {
	for _, m := range d.methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// URL returns host:port + endpoint.
func (d *Descriptor) URL() string {
	return fmt.Sprintf("%s:%d%s", d.host, d.port, d.endpoint)
}

type descriptorBody struct {
	Host     string   `json:"host"`
	Endpoint string   `json:"endpoint"`
	Port     int      `json:"port"`
	Methods  []string `json:"methods"`
}

// MarshalJSON renders the canonical descriptor document.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]descriptorBody{
		Namespace: {
			Host:     d.host,
			Endpoint: d.endpoint,
			Port:     d.port,
			Methods:  d.methods,
		},
	})
}

func (d *Descriptor) String() string { return d.URL() }

// parsePort accepts a JSON number or a numeric string. Absent means 0.
func parsePort(v gjson.Result) (int, error) {
	switch v.Type {
	case gjson.Null:
		return 0, nil
	case gjson.Number:
		if v.Num != float64(int(v.Num)) {
			return 0, fmt.Errorf("%w: port %v is not an integer", ErrInvalidDescriptor, v.Raw)
		}
		return int(v.Num), nil
	case gjson.String:
		p, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, fmt.Errorf("%w: port %q is not a number", ErrInvalidDescriptor, v.Str)
		}
		return p, nil
	default:
		return 0, fmt.Errorf("%w: port %s is not a number", ErrInvalidDescriptor, v.Raw)
	}
}

// hasScheme reports whether host looks like scheme://domain.
func hasScheme(host string) bool {
	scheme, rest, ok := strings.Cut(host, "://")
	return ok && scheme != "" && rest != ""
}

// defaultPort keeps an explicit port, otherwise sniffs the scheme prefix.
// TODO: replace prefix sniffing with url.Parse so that an upper-case
// "HTTPS://" scheme also defaults to 443.
func defaultPort(host string, port int) int {
	if port != 0 {
		return port
	}
	if strings.HasPrefix(host, securePrefix) {
		return securePort
	}
	return plainPort
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return DefaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}
