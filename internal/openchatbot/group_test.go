package openchatbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBot answers with text after delay, or fails with err.
type fakeBot struct {
	name  string
	text  string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeBot) String() string  { return f.name }
func (f *fakeBot) BaseURL() string { return "https://" + f.name + ":443/api/ask" }

func (f *fakeBot) Ask(ctx context.Context, userID, query string, opts ...AskOption) (*Response, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	body := fmt.Sprintf(`{"status": {"code": 200, "status": "success"}, "response": {"text": %q, "userId": %q, "query": %q}}`, f.text, userID, query)
	return NewResponse(f, []byte(body)), nil
}

func texts(rg *ResponseGroup) []string {
	var out []string
	for _, r := range rg.Responses() {
		out = append(out, r.Text())
	}
	return out
}

func TestGroup_Append(t *testing.T) {
	g := NewGroup(nil)
	assert.Equal(t, 0, g.Len())

	require.NoError(t, g.Append(&fakeBot{name: "a"}))
	require.NoError(t, g.Append(&fakeBot{name: "b"}))
	assert.ErrorIs(t, g.Append(nil), ErrArgument)

	members := g.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].String())
	assert.Equal(t, "b", members[1].String())
}

func TestGroup_NewGroupSkipsNil(t *testing.T) {
	g := NewGroup([]Asker{&fakeBot{name: "a"}, nil, &fakeBot{name: "b"}})
	assert.Equal(t, 2, g.Len())
}

func TestGroup_AskAll_SkipsFailedMember(t *testing.T) {
	g := NewGroup([]Asker{
		&fakeBot{name: "one", text: "first"},
		&fakeBot{name: "two", err: &ServerError{Code: 500, Description: "boom"}},
		&fakeBot{name: "three", text: "third"},
	}, WithGroupLogger(zerolog.Nop()))

	rg := g.AskAll(context.Background(), "u", "hello")

	assert.Equal(t, 2, rg.Len())
	assert.Equal(t, []string{"first", "third"}, texts(rg))
	assert.Equal(t, "one", rg.At(0).Client().String())
	assert.Equal(t, "three", rg.At(1).Client().String())

	failures := rg.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, "two", failures[0].Bot)
	var serverErr *ServerError
	assert.True(t, errors.As(failures[0].Err, &serverErr))
}

func TestGroup_AskAll_MembershipOrderNotArrivalOrder(t *testing.T) {
	g := NewGroup([]Asker{
		&fakeBot{name: "slow", text: "a", delay: 80 * time.Millisecond},
		&fakeBot{name: "medium", text: "b", delay: 40 * time.Millisecond},
		&fakeBot{name: "fast", text: "c"},
	}, WithGroupLogger(zerolog.Nop()))

	rg := g.AskAll(context.Background(), "u", "hello")

	assert.Equal(t, []string{"a", "b", "c"}, texts(rg))
	first, ok := rg.First()
	require.True(t, ok)
	assert.Equal(t, "slow", first.Client().String())
}

func TestGroup_AskAll_Concurrent(t *testing.T) {
	var members []Asker
	for i := 0; i < 4; i++ {
		members = append(members, &fakeBot{name: fmt.Sprintf("bot%d", i), text: "ok", delay: 50 * time.Millisecond})
	}
	g := NewGroup(members, WithGroupLogger(zerolog.Nop()))

	start := time.Now()
	rg := g.AskAll(context.Background(), "u", "hello")
	duration := time.Since(start)

	assert.Equal(t, 4, rg.Len())
	// Concurrent dispatch takes ~50ms, not 200ms+
	assert.Less(t, duration, 180*time.Millisecond)
}

func TestGroup_AskAll_Sequential(t *testing.T) {
	var members []Asker
	for i := 0; i < 3; i++ {
		members = append(members, &fakeBot{name: fmt.Sprintf("bot%d", i), text: fmt.Sprint(i), delay: 20 * time.Millisecond})
	}
	g := NewGroup(members, WithParallel(1), WithGroupLogger(zerolog.Nop()))

	start := time.Now()
	rg := g.AskAll(context.Background(), "u", "hello")

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, []string{"0", "1", "2"}, texts(rg))
}

func TestGroup_AskAll_FailureDoesNotCancelSiblings(t *testing.T) {
	slow := &fakeBot{name: "slow", text: "done", delay: 50 * time.Millisecond}
	g := NewGroup([]Asker{
		&fakeBot{name: "broken", err: errors.New("connection refused")},
		slow,
	}, WithGroupLogger(zerolog.Nop()))

	rg := g.AskAll(context.Background(), "u", "hello")

	assert.Equal(t, []string{"done"}, texts(rg))
	assert.Equal(t, int32(1), slow.calls.Load())
}

func TestGroup_AskAll_ArgumentErrorsAreSwallowed(t *testing.T) {
	bot, _ := newBotServer(t, replyWith(http.StatusOK, okReply))
	g := NewGroup([]Asker{bot, bot}, WithGroupLogger(zerolog.Nop()))

	rg := g.AskAll(context.Background(), "", "hello")

	assert.Equal(t, 0, rg.Len())
	assert.Len(t, rg.Failures(), 2)
	for _, f := range rg.Failures() {
		assert.ErrorIs(t, f.Err, ErrArgument)
	}
}

func TestGroup_AskAll_Deadline(t *testing.T) {
	g := NewGroup([]Asker{
		&fakeBot{name: "quick", text: "quick"},
		&fakeBot{name: "stuck", text: "late", delay: time.Second},
	}, WithDeadline(50*time.Millisecond), WithGroupLogger(zerolog.Nop()))

	start := time.Now()
	rg := g.AskAll(context.Background(), "u", "hello")

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []string{"quick"}, texts(rg))
	require.Len(t, rg.Failures(), 1)
	assert.ErrorIs(t, rg.Failures()[0].Err, context.DeadlineExceeded)
}

func TestGroup_AskAll_PassesArguments(t *testing.T) {
	bot, _ := newBotServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		replyWith(http.StatusOK, okReply)(w, r)
	})
	g := NewGroup([]Asker{bot}, WithGroupLogger(zerolog.Nop()))

	rg := g.AskAll(context.Background(), "u", "hello", WithMethod(MethodPost))
	assert.Equal(t, []string{"hi"}, texts(rg))
}

func TestGroup_AskAll_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	g := NewGroup([]Asker{
		&fakeBot{name: "broken", err: errors.New("connection refused")},
	}, WithGroupLogger(zerolog.New(&buf)))

	g.AskAll(context.Background(), "u", "hello")

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"bot":"broken"`)
	assert.Contains(t, buf.String(), "connection refused")
}

// silentBot answers without a response or an error.
type silentBot struct{}

func (silentBot) String() string  { return "silent" }
func (silentBot) BaseURL() string { return "https://silent:443/api/ask" }

func (silentBot) Ask(ctx context.Context, userID, query string, opts ...AskOption) (*Response, error) {
	return nil, nil
}

func TestGroup_AskAll_MemberWithoutResponse(t *testing.T) {
	g := NewGroup([]Asker{silentBot{}, &fakeBot{name: "X", text: "a"}}, WithGroupLogger(zerolog.Nop()))

	rg := g.AskAll(context.Background(), "u", "hello")

	assert.Equal(t, 1, rg.Len())
	assert.Equal(t, "X: a", rg.RenderAll(DefaultRenderFormat, DefaultSeparator))
	require.Len(t, rg.Failures(), 1)
	assert.Equal(t, "silent", rg.Failures()[0].Bot)
	assert.ErrorIs(t, rg.Failures()[0].Err, ErrInvalidResponse)
}

func TestGroup_AskAll_Empty(t *testing.T) {
	rg := NewGroup(nil).AskAll(context.Background(), "u", "hello")
	assert.Equal(t, 0, rg.Len())
	assert.Empty(t, rg.Failures())
}

func TestResponseGroup_RenderAll(t *testing.T) {
	x := &fakeBot{name: "X"}
	y := &fakeBot{name: "Y"}
	rg := NewResponseGroup(
		NewResponse(x, []byte(`{"response": {"text": "a"}}`)),
		NewResponse(y, []byte(`{"response": {"text": "b"}}`)),
	)

	assert.Equal(t, "X:a|Y:b", rg.RenderAll("{client}:{text}", "|"))
	assert.Equal(t, "X: a\nY: b", rg.RenderAll(DefaultRenderFormat, DefaultSeparator))
	assert.Equal(t, " - X says a; - Y says b", rg.RenderAll(" - {client} says {text}", ";"))
}

func TestResponseGroup_RenderAll_TextContainingPlaceholders(t *testing.T) {
	rg := NewResponseGroup(NewResponse(&fakeBot{name: "X"}, []byte(`{"response": {"text": "{client}"}}`)))
	assert.Equal(t, "X={client}", rg.RenderAll("{client}={text}", ","))
}

func TestResponseGroup_Empty(t *testing.T) {
	rg := NewResponseGroup()

	first, ok := rg.First()
	assert.False(t, ok)
	assert.Nil(t, first)
	assert.Equal(t, "", rg.RenderAll("{client}:{text}", "|"))
	assert.Equal(t, 0, rg.Len())
}

func TestResponseGroup_ResponsesIsCopy(t *testing.T) {
	rg := NewResponseGroup(NewResponse(&fakeBot{name: "X"}, []byte(`{}`)))
	responses := rg.Responses()
	responses[0] = nil

	assert.NotNil(t, rg.At(0))
}
