package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port402/ocb/internal/openchatbot"
)

// echoServer replies with the query it received.
func echoServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		query := r.URL.Query().Get("query")
		if query == "fail" {
			w.Write([]byte(`{"status": {"code": 500, "errorType": "cannot answer"}}`))
			return
		}
		w.Write([]byte(`{"status": {"code": 200}, "response": {"text": "echo: ` + query + `"}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func newChatSession(t *testing.T, url string, prompt bool) *chatSession {
	t.Helper()
	bot, err := openchatbot.FromURL(url)
	require.NoError(t, err)
	return &chatSession{bot: bot, userID: "u", prompt: prompt, opts: askOptions("get", "", "", nil)}
}

func TestChatSession_Run(t *testing.T) {
	var calls atomic.Int32
	server := echoServer(t, &calls)
	session := newChatSession(t, server.URL+"/api/ask", false)

	var out bytes.Buffer
	err := session.run(context.Background(), strings.NewReader("hello\n\n   \nhow are you\n"), &out)

	require.NoError(t, err)
	assert.Equal(t, "Bot> echo: hello\nBot> echo: how are you\n", out.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatSession_Prompt(t *testing.T) {
	var calls atomic.Int32
	server := echoServer(t, &calls)
	session := newChatSession(t, server.URL+"/api/ask", true)

	var out bytes.Buffer
	require.NoError(t, session.run(context.Background(), strings.NewReader("hi\n"), &out))

	assert.Equal(t, "You> Bot> echo: hi\nYou> \n", out.String())
}

func TestChatSession_ErrorsDoNotEndSession(t *testing.T) {
	var calls atomic.Int32
	server := echoServer(t, &calls)
	session := newChatSession(t, server.URL+"/api/ask", false)

	var out bytes.Buffer
	require.NoError(t, session.run(context.Background(), strings.NewReader("fail\nagain\n"), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Bot> error:")
	assert.Contains(t, lines[0], "cannot answer")
	assert.Equal(t, "Bot> echo: again", lines[1])
}

func TestChatSession_CanceledContext(t *testing.T) {
	var calls atomic.Int32
	server := echoServer(t, &calls)
	session := newChatSession(t, server.URL+"/api/ask", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := session.run(ctx, strings.NewReader("hello\nagain\n"), &bytes.Buffer{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), calls.Load())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestChatSession_ReadError(t *testing.T) {
	session := newChatSession(t, "https://bot.example/api/ask", false)

	err := session.run(context.Background(), failingReader{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "broken pipe")
}
