package openchatbot

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrArgument reports a missing or malformed argument to a client call.
	// No request is sent when it is returned.
	ErrArgument = errors.New("invalid argument")

	// ErrUnsupportedMethod reports an ask method other than "get" or "post".
	ErrUnsupportedMethod = fmt.Errorf("%w: unsupported method", ErrArgument)

	// ErrNoDescriptor reports that no descriptor could be retrieved for a domain.
	ErrNoDescriptor = errors.New("no chatbot descriptor found")

	// ErrInvalidDescriptor reports a descriptor document that is not valid JSON
	// or lacks the required openchatbot.host field.
	ErrInvalidDescriptor = errors.New("invalid chatbot descriptor")

	// ErrInvalidResponse reports an ask reply whose body is not JSON.
	ErrInvalidResponse = errors.New("invalid response")
)

// TransportError is returned when an ask call fails below the protocol level:
// the request could not be sent, the HTTP status was not 200, or the body
// was not JSON.
type TransportError struct {
	URL        string
	StatusCode int    // 0 when no response was received
	Body       string // raw body text, for diagnostics
	RetryAfter time.Duration
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v from %s (status %d): %s", e.Err, e.URL, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a well-formed reply whose status.code is not 200.
type ServerError struct {
	Code        int
	Description string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("chatbot server error: %d: %s", e.Code, e.Description)
}
