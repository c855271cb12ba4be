package openchatbot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// StatusSuccess is the status.status value of a successful reply.
const StatusSuccess = "success"

// Response is a read-only view over one bot reply:
//
//	{
//	  "response": {"query": "...", "userId": "...", "text": "..."},
//	  "meta":     {"version": "...", "botName": "...", "botIcon": "...", "copyright": "...", "authors": []},
//	  "status":   {"code": 200, "status": "success"}
//	}
//
// Every accessor returns a zero value when its field is missing.
type Response struct {
	bot     Asker
	body    []byte
	latency time.Duration
}

// NewResponse wraps a decoded reply body from bot.
func NewResponse(bot Asker, body []byte) *Response {
	return &Response{bot: bot, body: append([]byte(nil), body...)}
}

func (r *Response) get(path string) gjson.Result {
	return gjson.GetBytes(r.body, path)
}

// Client returns the bot that produced the reply.
func (r *Response) Client() Asker { return r.bot }

// Latency returns the duration of the ask round trip.
func (r *Response) Latency() time.Duration { return r.latency }

// Query echoes the user query.
func (r *Response) Query() string { return r.get("response.query").String() }

// UserID echoes the user identifier.
func (r *Response) UserID() string { return r.get("response.userId").String() }

// Text is the textual answer.
func (r *Response) Text() string { return r.get("response.text").String() }

// Code is the protocol status code, such as 200.
func (r *Response) Code() int { return int(r.get("status.code").Int()) }

// Status is "success" for a successful reply.
func (r *Response) Status() string { return r.get("status.status").String() }

// IsSuccess reports whether Status is "success".
func (r *Response) IsSuccess() bool { return r.Status() == StatusSuccess }

func (r *Response) BotName() string   { return r.get("meta.botName").String() }
func (r *Response) BotIcon() string   { return r.get("meta.botIcon").String() }
func (r *Response) Version() string   { return r.get("meta.version").String() }
func (r *Response) Copyright() string { return r.get("meta.copyright").String() }

// Authors lists meta.authors; never nil.
func (r *Response) Authors() []string {
	authors := []string{}
	for _, a := range r.get("meta.authors").Array() {
		authors = append(authors, a.String())
	}
	return authors
}

// Raw returns the reply body as received.
func (r *Response) Raw() json.RawMessage {
	return append(json.RawMessage(nil), r.body...)
}

// MarshalJSON emits the reply body unchanged.
func (r *Response) MarshalJSON() ([]byte, error) {
	if len(r.body) == 0 {
		return []byte("null"), nil
	}
	return r.Raw(), nil
}

func (r *Response) String() string {
	return fmt.Sprintf("response(%s => %s)", r.bot, r.Text())
}
