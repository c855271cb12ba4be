package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/port402/ocb/internal/client"
	"github.com/port402/ocb/internal/openchatbot"
)

// Exit codes shared by every command.
const (
	exitOK       = 0
	exitFailure  = 1
	exitArgument = 2
	exitNetwork  = 3
	exitProtocol = 4
)

// exitCodeFor classifies err into one of the exit codes.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}

	var transportErr *openchatbot.TransportError
	var serverErr *openchatbot.ServerError
	switch {
	case errors.Is(err, openchatbot.ErrArgument):
		return exitArgument
	case errors.As(err, &serverErr):
		return exitProtocol
	case errors.As(err, &transportErr):
		if transportErr.StatusCode == 0 {
			return exitNetwork
		}
		return exitProtocol
	case errors.Is(err, openchatbot.ErrNoDescriptor),
		errors.Is(err, context.DeadlineExceeded):
		return exitNetwork
	case errors.Is(err, openchatbot.ErrInvalidDescriptor):
		return exitProtocol
	default:
		return exitFailure
	}
}

// parseHeaders parses repeated "Key: Value" flags.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: invalid header %q, expected \"Key: Value\"", openchatbot.ErrArgument, v)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parseParams parses repeated "key=value" flags.
func parseParams(values []string) (map[string]string, error) {
	params := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: invalid param %q, expected key=value", openchatbot.ErrArgument, v)
		}
		params[key] = value
	}
	return params, nil
}

// newTransport builds the HTTP client shared by a command's bots.
func newTransport(timeout time.Duration, insecure bool) *client.Client {
	return client.New(
		client.WithTimeout(timeout),
		client.WithInsecureSkipVerify(insecure),
	)
}

// resolveBot turns a command-line target into a client. With discover the
// target is a domain whose descriptor is fetched first; otherwise it is an
// ask URL.
func resolveBot(ctx context.Context, target string, discover bool, transport *client.Client, opts ...openchatbot.Option) (*openchatbot.BotClient, error) {
	opts = append([]openchatbot.Option{openchatbot.WithHTTPClient(transport)}, opts...)
	if discover {
		repo := openchatbot.NewRepository(
			openchatbot.WithRepositoryHTTPClient(transport),
			openchatbot.WithClientOptions(opts...),
		)
		return repo.ResolveClient(ctx, target)
	}
	return openchatbot.FromURL(target, opts...)
}

// flagOr returns the flag value when it was set on the command line and
// fallback (usually from the environment) otherwise.
func flagOr[T any](cmd *cobra.Command, name string, value, fallback T) T {
	if cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}

// askOptions collects the per-call options shared by ask, chat and group.
func askOptions(method, lang, location string, params map[string]string) []openchatbot.AskOption {
	opts := []openchatbot.AskOption{openchatbot.WithMethod(strings.ToLower(method))}
	if lang != "" {
		opts = append(opts, openchatbot.WithLang(lang))
	}
	if location != "" {
		opts = append(opts, openchatbot.WithLocation(location))
	}
	if len(params) > 0 {
		opts = append(opts, openchatbot.WithParams(params))
	}
	return opts
}
