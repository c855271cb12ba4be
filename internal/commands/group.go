package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/port402/ocb/internal/client"
	"github.com/port402/ocb/internal/openchatbot"
	"github.com/port402/ocb/internal/output"
)

// GroupEntry is one bot listed in a group file. Either URL (an ask URL) or
// Domain (resolved through its descriptor) must be set.
type GroupEntry struct {
	URL    string `json:"url,omitempty"`
	Domain string `json:"domain,omitempty"`
	Name   string `json:"name,omitempty"`
	Method string `json:"method,omitempty"`
}

// Group command flags
var (
	groupUser      string
	groupLang      string
	groupLocation  string
	groupMethod    string
	groupFormat    string
	groupSeparator string
	groupFirst     bool
	groupParallel  int
	groupDeadline  time.Duration
	groupTimeout   time.Duration
	groupInsecure  bool
)

var groupCmd = &cobra.Command{
	Use:   "group <file> <query...>",
	Short: "Ask every bot listed in a file",
	Long: `Broadcast one query to a group of bots and print their answers.

The input file can be either:

  1. Simple array of ask URLs:
     ["https://bot1.example.com/api/ask", "https://bot2.example.com/api/ask"]

  2. Array of objects with a URL or a domain to discover, and optional
     display name and method:
     [
       {"url": "https://bot1.example.com/api/ask", "name": "Support"},
       {"domain": "konverso.ai", "method": "post"}
     ]

Answers are printed in file order. Bots that fail are left out of the
answers and listed separately.

Examples:
  ocb group bots.json "hello"
  ocb group bots.json "hello" --parallel 5 --deadline 10s
  ocb group bots.json "hello" --format " - {client} says {text}" --separator "\n"
  ocb group bots.json "hello" --first --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runGroup,
}

func init() {
	groupCmd.Flags().StringVarP(&groupUser, "user", "u", "", "User id sent with the query (default: $OCB_USER_ID or a random UUID)")
	groupCmd.Flags().StringVar(&groupLang, "lang", "", "Language hint")
	groupCmd.Flags().StringVar(&groupLocation, "location", "", "Location hint")
	groupCmd.Flags().StringVarP(&groupMethod, "method", "X", "get", "Default HTTP method: get or post")
	groupCmd.Flags().StringVar(&groupFormat, "format", openchatbot.DefaultRenderFormat, "Per-answer format with {client} and {text} placeholders")
	groupCmd.Flags().StringVar(&groupSeparator, "separator", openchatbot.DefaultSeparator, "Separator between answers")
	groupCmd.Flags().BoolVar(&groupFirst, "first", false, "Print only the first answer in file order")
	groupCmd.Flags().IntVar(&groupParallel, "parallel", 0, "Maximum concurrent requests (0 = all at once)")
	groupCmd.Flags().DurationVar(&groupDeadline, "deadline", 0, "Overall deadline for the broadcast (0 = none)")
	groupCmd.Flags().DurationVar(&groupTimeout, "timeout", 30*time.Second, "Request timeout per bot")
	groupCmd.Flags().BoolVar(&groupInsecure, "insecure", false, "Skip TLS certificate verification")
	rootCmd.AddCommand(groupCmd)
}

func runGroup(cmd *cobra.Command, args []string) error {
	conf := settings()
	filePath := args[0]
	query := strings.Join(args[1:], " ")
	userID := flagOr(cmd, "user", groupUser, conf.UserID)

	// Read and parse input file
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	entries, err := parseGroupInput(data)
	if err != nil {
		return &exitError{code: exitArgument, err: err}
	}

	if len(entries) == 0 {
		return &exitError{code: exitArgument, err: fmt.Errorf("no bots in file")}
	}

	ctx := cmd.Context()
	startTime := time.Now()

	transport := newTransport(flagOr(cmd, "timeout", groupTimeout, conf.Timeout), flagOr(cmd, "insecure", groupInsecure, conf.Insecure))
	members, entryOf, unresolved := buildMembers(ctx, entries, transport)

	group := openchatbot.NewGroup(members,
		openchatbot.WithParallel(flagOr(cmd, "parallel", groupParallel, conf.Parallel)),
		openchatbot.WithDeadline(groupDeadline),
	)
	rg := group.AskAll(ctx, userID, query, askOptions(
		flagOr(cmd, "method", groupMethod, conf.Method),
		flagOr(cmd, "lang", groupLang, conf.Lang),
		flagOr(cmd, "location", groupLocation, conf.Location),
		nil,
	)...)

	result := output.NewGroupResult(query, userID, len(entries), rg)
	result.Failures = orderedFailures(len(entries), entryOf, unresolved, rg.Failures())
	result.Failed = len(result.Failures)
	result.Rendered = render(rg, groupFormat, unescape(groupSeparator), groupFirst)
	result.DurationMs = time.Since(startTime).Milliseconds()

	if GetJSONOutput() {
		if err := output.PrintJSON(result); err != nil {
			return err
		}
	} else {
		output.PrintGroupResult(os.Stdout, result, GetVerbose())
	}

	if result.Answered == 0 {
		return &exitError{code: exitFailure, err: fmt.Errorf("no bot answered (%d failed)", result.Failed)}
	}
	return nil
}

// parseGroupInput parses JSON input supporting both simple URL arrays and object arrays.
func parseGroupInput(data []byte) ([]GroupEntry, error) {
	// Try parsing as array of objects first
	var entries []GroupEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		for i := range entries {
			entries[i].URL = strings.TrimSpace(entries[i].URL)
			entries[i].Domain = strings.TrimSpace(entries[i].Domain)
			if entries[i].URL == "" && entries[i].Domain == "" {
				return nil, fmt.Errorf("entry %d: missing url or domain", i+1)
			}
			if entries[i].URL != "" && entries[i].Domain != "" {
				return nil, fmt.Errorf("entry %d: url and domain are mutually exclusive", i+1)
			}
			entries[i].Method = strings.ToLower(entries[i].Method)
		}
		return entries, nil
	}

	// Try parsing as simple string array
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: expected array of URLs or array of {url|domain, name, method} objects")
	}

	entries = make([]GroupEntry, len(urls))
	for i, url := range urls {
		entries[i] = GroupEntry{URL: strings.TrimSpace(url)}
	}
	return entries, nil
}

// buildMembers creates a client per entry in file order. entryOf maps each
// member back to its entry index. Entries that cannot be turned into a
// client are reported as failures keyed by entry index.
func buildMembers(ctx context.Context, entries []GroupEntry, transport *client.Client) (members []openchatbot.Asker, entryOf []int, unresolved map[int]output.FailureDisplay) {
	unresolved = make(map[int]output.FailureDisplay)

	for i, e := range entries {
		var opts []openchatbot.Option
		if e.Name != "" {
			opts = append(opts, openchatbot.WithName(e.Name))
		}

		target := e.URL
		if e.Domain != "" {
			target = e.Domain
		}

		bot, err := resolveBot(ctx, target, e.Domain != "", transport, opts...)
		if err != nil {
			log.Warn().Err(err).Str("target", target).Msg("skipping bot")
			name := e.Name
			if name == "" {
				name = target
			}
			unresolved[i] = output.FailureDisplay{Bot: name, URL: target, Error: err.Error()}
			continue
		}

		entryOf = append(entryOf, i)
		if e.Method != "" {
			members = append(members, &methodOverride{Asker: bot, method: e.Method})
			continue
		}
		members = append(members, bot)
	}
	return members, entryOf, unresolved
}

// orderedFailures lists unresolved entries and failed members together in
// file order.
func orderedFailures(n int, entryOf []int, unresolved map[int]output.FailureDisplay, failures []openchatbot.Failure) []output.FailureDisplay {
	byEntry := make(map[int]output.FailureDisplay, len(unresolved)+len(failures))
	for i, f := range unresolved {
		byEntry[i] = f
	}
	for _, f := range failures {
		byEntry[entryOf[f.Index]] = output.FailureDisplay{Bot: f.Bot, URL: f.URL, Error: f.Err.Error()}
	}

	var ordered []output.FailureDisplay
	for i := 0; i < n; i++ {
		if f, ok := byEntry[i]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered
}

// methodOverride pins the HTTP method of one group member.
type methodOverride struct {
	openchatbot.Asker
	method string
}

func (m *methodOverride) Ask(ctx context.Context, userID, query string, opts ...openchatbot.AskOption) (*openchatbot.Response, error) {
	pinned := make([]openchatbot.AskOption, 0, len(opts)+1)
	pinned = append(pinned, opts...)
	return m.Asker.Ask(ctx, userID, query, append(pinned, openchatbot.WithMethod(m.method))...)
}

// render formats the answers, or only the first one.
func render(rg *openchatbot.ResponseGroup, format, separator string, firstOnly bool) string {
	if !firstOnly {
		return rg.RenderAll(format, separator)
	}
	first, ok := rg.First()
	if !ok {
		return ""
	}
	return openchatbot.NewResponseGroup(first).RenderAll(format, separator)
}

// unescape turns the two-character sequences \n and \t typed on a shell
// into the characters they name.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}
