package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/port402/ocb/internal/openchatbot"
	"github.com/port402/ocb/internal/output"
)

// Ask command flags
var (
	askDiscover bool
	askUser     string
	askLang     string
	askLocation string
	askMethod   string
	askTimeout  time.Duration
	askHeaders  []string
	askParams   []string
	askInsecure bool
)

var askCmd = &cobra.Command{
	Use:   "ask <target> <query...>",
	Short: "Send one query to a bot",
	Long: `Send a query to an Open Chatbot endpoint and print the reply.

The target is the bot's ask URL. With --discover it is a domain instead,
and the bot is located through the domain's descriptor at
/.well-known/openchatbot-configuration.

Examples:
  ocb ask https://bot.example.com/api/ask "hello"
  ocb ask bot.example.com:8443/api/ask hello there --method post
  ocb ask konverso.ai "hello" --discover --lang en
  ocb ask https://bot.example.com/api/ask "hello" -H "Authorization: Bearer xyz" --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askDiscover, "discover", false, "Treat target as a domain and fetch its descriptor")
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "User id sent with the query (default: $OCB_USER_ID or a random UUID)")
	askCmd.Flags().StringVar(&askLang, "lang", "", "Language hint")
	askCmd.Flags().StringVar(&askLocation, "location", "", "Location hint")
	askCmd.Flags().StringVarP(&askMethod, "method", "X", "get", "HTTP method: get or post")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 30*time.Second, "Request timeout")
	askCmd.Flags().StringArrayVarP(&askHeaders, "header", "H", nil, "Extra request header \"Key: Value\" (repeatable)")
	askCmd.Flags().StringArrayVar(&askParams, "param", nil, "Extra query parameter key=value (repeatable)")
	askCmd.Flags().BoolVar(&askInsecure, "insecure", false, "Skip TLS certificate verification")
	rootCmd.AddCommand(askCmd)
}

// askRequest is everything needed for one ask call.
type askRequest struct {
	Target   string
	Discover bool
	UserID   string
	Query    string
	Method   string
	Lang     string
	Location string
	Timeout  time.Duration
	Insecure bool
	Headers  map[string]string
	Params   map[string]string
}

func runAsk(cmd *cobra.Command, args []string) error {
	conf := settings()

	headers, err := parseHeaders(askHeaders)
	if err != nil {
		return &exitError{code: exitArgument, err: err}
	}
	params, err := parseParams(askParams)
	if err != nil {
		return &exitError{code: exitArgument, err: err}
	}

	req := askRequest{
		Target:   args[0],
		Discover: askDiscover,
		UserID:   flagOr(cmd, "user", askUser, conf.UserID),
		Query:    strings.Join(args[1:], " "),
		Method:   flagOr(cmd, "method", askMethod, conf.Method),
		Lang:     flagOr(cmd, "lang", askLang, conf.Lang),
		Location: flagOr(cmd, "location", askLocation, conf.Location),
		Timeout:  flagOr(cmd, "timeout", askTimeout, conf.Timeout),
		Insecure: flagOr(cmd, "insecure", askInsecure, conf.Insecure),
		Headers:  headers,
		Params:   params,
	}

	result := ask(cmd.Context(), req)

	if GetJSONOutput() {
		if err := output.PrintJSON(result); err != nil {
			return err
		}
	} else {
		output.PrintAskResult(os.Stdout, result, GetVerbose())
	}

	if result.ExitCode != 0 {
		return &exitError{code: result.ExitCode, err: fmt.Errorf("ask failed")}
	}
	return nil
}

// ask resolves the target and sends the query. Failures are reported in the
// result rather than returned.
func ask(ctx context.Context, req askRequest) *output.AskResult {
	failed := func(url string, err error) *output.AskResult {
		return &output.AskResult{
			URL:      url,
			Method:   req.Method,
			Query:    req.Query,
			UserID:   req.UserID,
			ExitCode: exitCodeFor(err),
			Error:    err.Error(),
		}
	}

	transport := newTransport(req.Timeout, req.Insecure)
	bot, err := resolveBot(ctx, req.Target, req.Discover, transport, openchatbot.WithHeaders(req.Headers))
	if err != nil {
		return failed(req.Target, err)
	}

	resp, err := bot.Ask(ctx, req.UserID, req.Query, askOptions(req.Method, req.Lang, req.Location, req.Params)...)
	if err != nil {
		result := failed(bot.BaseURL(), err)
		result.Bot = bot.String()
		return result
	}

	result := output.NewAskResult(resp)
	result.Method = strings.ToLower(req.Method)
	return &result
}
