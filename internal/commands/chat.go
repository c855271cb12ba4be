package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/port402/ocb/internal/openchatbot"
	"github.com/port402/ocb/internal/output"
)

// Chat command flags
var (
	chatDiscover bool
	chatUser     string
	chatLang     string
	chatLocation string
	chatMethod   string
	chatTimeout  time.Duration
	chatHeaders  []string
	chatInsecure bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <target>",
	Short: "Talk to a bot interactively",
	Long: `Read queries from stdin, one per line, and print each reply.

A prompt is shown when stdin is a terminal. Empty lines are ignored and
end-of-file ends the session. Failed queries are reported and the
session continues.

Examples:
  ocb chat https://bot.example.com/api/ask
  ocb chat konverso.ai --discover --user amedee
  echo "hello" | ocb chat https://bot.example.com/api/ask`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatDiscover, "discover", false, "Treat target as a domain and fetch its descriptor")
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "", "User id for the session (default: $OCB_USER_ID or a random UUID)")
	chatCmd.Flags().StringVar(&chatLang, "lang", "", "Language hint")
	chatCmd.Flags().StringVar(&chatLocation, "location", "", "Location hint")
	chatCmd.Flags().StringVarP(&chatMethod, "method", "X", "get", "HTTP method: get or post")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 30*time.Second, "Request timeout per query")
	chatCmd.Flags().StringArrayVarP(&chatHeaders, "header", "H", nil, "Extra request header \"Key: Value\" (repeatable)")
	chatCmd.Flags().BoolVar(&chatInsecure, "insecure", false, "Skip TLS certificate verification")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	conf := settings()

	headers, err := parseHeaders(chatHeaders)
	if err != nil {
		return &exitError{code: exitArgument, err: err}
	}

	transport := newTransport(flagOr(cmd, "timeout", chatTimeout, conf.Timeout), flagOr(cmd, "insecure", chatInsecure, conf.Insecure))
	bot, err := resolveBot(cmd.Context(), args[0], chatDiscover, transport, openchatbot.WithHeaders(headers))
	if err != nil {
		return &exitError{code: exitCodeFor(err), err: fmt.Errorf("connecting to %s: %w", args[0], err)}
	}

	session := &chatSession{
		bot:    bot,
		userID: flagOr(cmd, "user", chatUser, conf.UserID),
		prompt: output.IsStdinTTY(),
		opts: askOptions(
			flagOr(cmd, "method", chatMethod, conf.Method),
			flagOr(cmd, "lang", chatLang, conf.Lang),
			flagOr(cmd, "location", chatLocation, conf.Location),
			nil,
		),
	}
	if session.prompt {
		fmt.Fprintf(os.Stdout, "Talking to %s (Ctrl-D to quit)\n", bot.BaseURL())
	}
	return session.run(cmd.Context(), os.Stdin, os.Stdout)
}

// chatSession asks bot one query per input line.
type chatSession struct {
	bot    openchatbot.Asker
	userID string
	prompt bool
	opts   []openchatbot.AskOption
}

// run loops until in is exhausted or ctx is done. Ask failures are printed
// and logged; only read errors end the session with an error.
func (s *chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		if s.prompt {
			fmt.Fprint(out, "You> ")
		}
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		resp, err := s.bot.Ask(ctx, s.userID, query, s.opts...)
		if err != nil {
			log.Debug().Err(err).Str("bot", s.bot.String()).Msg("chat query failed")
			fmt.Fprintf(out, "Bot> error: %v\n", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		fmt.Fprintf(out, "Bot> %s\n", resp.Text())
	}

	if s.prompt {
		fmt.Fprintln(out)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
