package openchatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Rendering defaults for ResponseGroup.RenderAll.
const (
	DefaultRenderFormat = "{client}: {text}"
	DefaultSeparator    = "\n"
)

var tracer = otel.Tracer("github.com/port402/ocb/internal/openchatbot")

// Group is an ordered set of bots queried together.
type Group struct {
	members  []Asker
	parallel int
	deadline time.Duration
	logger   zerolog.Logger
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithParallel caps the number of members asked at once. Zero or less
// asks every member at once; 1 asks them one after another.
func WithParallel(n int) GroupOption {
	return func(g *Group) { g.parallel = n }
}

// WithDeadline bounds a whole broadcast. Per-call timeouts still apply.
func WithDeadline(d time.Duration) GroupOption {
	return func(g *Group) { g.deadline = d }
}

// WithGroupLogger sets the logger that receives member failures.
func WithGroupLogger(logger zerolog.Logger) GroupOption {
	return func(g *Group) { g.logger = logger }
}

// NewGroup creates a group. Nil members are skipped.
func NewGroup(members []Asker, opts ...GroupOption) *Group {
	g := &Group{logger: log.Logger}
	for _, opt := range opts {
		opt(g)
	}
	for _, m := range members {
		_ = g.Append(m)
	}
	return g
}

// Append adds a member at the end of the group.
func (g *Group) Append(member Asker) error {
	if member == nil {
		return fmt.Errorf("%w: group member is nil", ErrArgument)
	}
	g.members = append(g.members, member)
	return nil
}

// Len returns the number of members.
func (g *Group) Len() int { return len(g.members) }

// Members returns the members in insertion order.
func (g *Group) Members() []Asker {
	return append([]Asker(nil), g.members...)
}

// AskAll sends the same query to every member and waits for all of them.
// Failing members are logged and left out; the remaining responses keep
// membership order whatever order they arrive in.
func (g *Group) AskAll(ctx context.Context, userID, query string, opts ...AskOption) *ResponseGroup {
	ctx, span := tracer.Start(ctx, "openchatbot.AskAll")
	defer span.End()
	span.SetAttributes(attribute.Int("openchatbot.group.size", len(g.members)))

	if g.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.deadline)
		defer cancel()
	}

	members := g.Members()
	slots := make([]*Response, len(members))
	errs := make([]error, len(members))

	var eg errgroup.Group
	if g.parallel > 0 {
		eg.SetLimit(g.parallel)
	}
	for i, m := range members {
		eg.Go(func() error {
			slots[i], errs[i] = m.Ask(ctx, userID, query, opts...)
			return nil
		})
	}
	_ = eg.Wait()

	result := &ResponseGroup{}
	for i, m := range members {
		if errs[i] == nil && slots[i] == nil {
			errs[i] = fmt.Errorf("%w: member returned no response", ErrInvalidResponse)
		}
		if errs[i] != nil {
			g.logger.Warn().
				Err(errs[i]).
				Int("index", i).
				Str("bot", m.String()).
				Str("url", m.BaseURL()).
				Msg("bot ask failed")
			result.failures = append(result.failures, Failure{Index: i, Bot: m.String(), URL: m.BaseURL(), Err: errs[i]})
			continue
		}
		result.responses = append(result.responses, slots[i])
	}

	span.SetAttributes(
		attribute.Int("openchatbot.group.answered", len(result.responses)),
		attribute.Int("openchatbot.group.failed", len(result.failures)),
	)
	return result
}

// Failure records a member that produced no response.
type Failure struct {
	Index int
	Bot   string
	URL   string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Bot, f.Err)
}

// ResponseGroup holds the successful responses of one broadcast in
// membership order.
type ResponseGroup struct {
	responses []*Response
	failures  []Failure
}

// NewResponseGroup builds a group from responses already collected.
func NewResponseGroup(responses ...*Response) *ResponseGroup {
	rg := &ResponseGroup{}
	for _, r := range responses {
		if r != nil {
			rg.responses = append(rg.responses, r)
		}
	}
	return rg
}

// Len returns the number of responses.
func (rg *ResponseGroup) Len() int { return len(rg.responses) }

// At returns the i-th response.
func (rg *ResponseGroup) At(i int) *Response { return rg.responses[i] }

// Responses returns the responses in membership order.
func (rg *ResponseGroup) Responses() []*Response {
	return append([]*Response(nil), rg.responses...)
}

// Failures returns the members that failed, in membership order.
func (rg *ResponseGroup) Failures() []Failure {
	return append([]Failure(nil), rg.failures...)
}

// First returns the response of the earliest member that answered.
// ok is false when no member answered.
func (rg *ResponseGroup) First() (resp *Response, ok bool) {
	if len(rg.responses) == 0 {
		return nil, false
	}
	return rg.responses[0], true
}

// RenderAll formats each response with format, where {client} is the bot
// name and {text} the answer, and joins them with separator.
func (rg *ResponseGroup) RenderAll(format, separator string) string {
	parts := make([]string, 0, len(rg.responses))
	for _, r := range rg.responses {
		name := "<nil>"
		if r.Client() != nil {
			name = r.Client().String()
		}
		parts = append(parts, strings.NewReplacer("{client}", name, "{text}", r.Text()).Replace(format))
	}
	return strings.Join(parts, separator)
}
