package openchatbot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDescriptorServer starts a TLS server and returns a repository that
// trusts it, plus the domain to resolve.
func newDescriptorServer(t *testing.T, handler http.HandlerFunc, opts ...RepositoryOption) (*Repository, string) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	repo := NewRepository(append([]RepositoryOption{WithRepositoryHTTPClient(server.Client())}, opts...)...)
	return repo, strings.TrimPrefix(server.URL, "https://")
}

func TestRepository_DescriptorURL(t *testing.T) {
	repo := NewRepository()
	assert.Equal(t, "https://konverso.ai/.well-known/openchatbot-configuration", repo.DescriptorURL("konverso.ai"))
	assert.Equal(t, "https://konverso.ai/.well-known/openchatbot-configuration", repo.DescriptorURL("konverso.ai/"))
}

func TestRepository_FetchDescriptor(t *testing.T) {
	repo, domain := newDescriptorServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != DescriptorPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"openchatbot": {"host": "https://openchatbot.io", "endpoint": "/api/v1.0/ask", "port": 443, "methods": ["GET", "POST"]}}`))
	})

	d, err := repo.FetchDescriptor(context.Background(), domain)
	require.NoError(t, err)
	assert.Equal(t, "https://openchatbot.io", d.Host())
	assert.Equal(t, "/api/v1.0/ask", d.Endpoint())
	assert.Equal(t, "https://openchatbot.io:443/api/v1.0/ask", d.URL())
}

func TestRepository_FetchDescriptor_AcceptedStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusPartialContent} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			repo, domain := newDescriptorServer(t, replyWith(status, `{"openchatbot": {"host": "https://bot.example"}}`))

			d, err := repo.FetchDescriptor(context.Background(), domain)
			require.NoError(t, err)
			assert.Equal(t, "https://bot.example", d.Host())
		})
	}
}

func TestRepository_FetchDescriptor_NoContentIsInvalid(t *testing.T) {
	repo, domain := newDescriptorServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := repo.FetchDescriptor(context.Background(), domain)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestRepository_FetchDescriptor_NotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusMovedPermanently, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			repo, domain := newDescriptorServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})

			_, err := repo.FetchDescriptor(context.Background(), domain)
			assert.ErrorIs(t, err, ErrNoDescriptor)
		})
	}
}

func TestRepository_FetchDescriptor_InvalidJSON(t *testing.T) {
	repo, domain := newDescriptorServer(t, replyWith(http.StatusOK, "not valid json"))

	_, err := repo.FetchDescriptor(context.Background(), domain)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestRepository_FetchDescriptor_MissingHost(t *testing.T) {
	repo, domain := newDescriptorServer(t, replyWith(http.StatusOK, `{"openchatbot": {"endpoint": "/api/ask"}}`))

	_, err := repo.FetchDescriptor(context.Background(), domain)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestRepository_FetchDescriptor_NetworkError(t *testing.T) {
	repo := NewRepository()

	_, err := repo.FetchDescriptor(context.Background(), "localhost:1")
	assert.ErrorIs(t, err, ErrNoDescriptor)
}

func TestRepository_FetchDescriptor_EmptyDomain(t *testing.T) {
	_, err := NewRepository().FetchDescriptor(context.Background(), " ")
	assert.ErrorIs(t, err, ErrArgument)
}

func TestRepository_FetchDescriptor_HeadersBodyAuth(t *testing.T) {
	repo, domain := newDescriptorServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tenant-a", r.Header.Get("X-Tenant"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "payload", string(body))

		w.Write([]byte(`{"openchatbot": {"host": "https://bot.example"}}`))
	})

	_, err := repo.FetchDescriptor(context.Background(), domain,
		WithFetchHeaders(map[string]string{"X-Tenant": "tenant-a"}),
		WithFetchBody([]byte("payload")),
		WithBasicAuth("alice", "secret"),
	)
	require.NoError(t, err)
}

func TestRepository_ResolveClient(t *testing.T) {
	// The bot itself lives on a plain HTTP server; the descriptor points at it.
	bot := httptest.NewServer(replyWith(http.StatusOK, okReply))
	defer bot.Close()

	botURL, err := url.Parse(bot.URL)
	require.NoError(t, err)
	doc := fmt.Sprintf(`{"openchatbot": {"host": "http://%s", "port": %s, "endpoint": "/api/ask"}}`, botURL.Hostname(), botURL.Port())

	repo, domain := newDescriptorServer(t, replyWith(http.StatusOK, doc))

	client, err := repo.ResolveClient(context.Background(), domain)
	require.NoError(t, err)
	assert.Equal(t, bot.URL+"/api/ask", client.BaseURL())
	assert.Equal(t, "http://"+botURL.Hostname(), client.Descriptor().Host())

	resp, err := client.Ask(context.Background(), "u", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text())
}

func TestRepository_ResolveClient_ClientOptions(t *testing.T) {
	repo, domain := newDescriptorServer(t,
		replyWith(http.StatusOK, `{"openchatbot": {"host": "https://bot.example"}}`),
		WithClientOptions(WithName("Example")),
	)

	client, err := repo.ResolveClient(context.Background(), domain)
	require.NoError(t, err)
	assert.Equal(t, "Example", client.Name())
}

func TestRepository_ResolveClient_PropagatesErrors(t *testing.T) {
	repo, domain := newDescriptorServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := repo.ResolveClient(context.Background(), domain)
	assert.ErrorIs(t, err, ErrNoDescriptor)
}
