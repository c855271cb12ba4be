package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/port402/ocb/internal/openchatbot"
)

// AskResult is the outcome of one ask call.
type AskResult struct {
	Bot       string          `json:"bot"`
	URL       string          `json:"url"`
	Method    string          `json:"method,omitempty"`
	Query     string          `json:"query"`
	UserID    string          `json:"userId"`
	Text      string          `json:"text"`
	Status    string          `json:"status,omitempty"`
	Code      int             `json:"code"`
	BotName   string          `json:"botName,omitempty"`
	Version   string          `json:"version,omitempty"`
	LatencyMs int64           `json:"latencyMs"`
	Response  json.RawMessage `json:"response,omitempty"`
	ExitCode  int             `json:"exitCode"`
	Error     string          `json:"error,omitempty"`
}

// NewAskResult summarises a successful reply.
func NewAskResult(resp *openchatbot.Response) AskResult {
	r := AskResult{
		Query:     resp.Query(),
		UserID:    resp.UserID(),
		Text:      resp.Text(),
		Status:    resp.Status(),
		Code:      resp.Code(),
		BotName:   resp.BotName(),
		Version:   resp.Version(),
		LatencyMs: resp.Latency().Milliseconds(),
		Response:  resp.Raw(),
	}
	if bot := resp.Client(); bot != nil {
		r.Bot = bot.String()
		r.URL = bot.BaseURL()
	}
	return r
}

// DescriptorResult is the outcome of a descriptor lookup.
type DescriptorResult struct {
	Domain     string                  `json:"domain"`
	URL        string                  `json:"url"`
	Found      bool                    `json:"found"`
	Descriptor *openchatbot.Descriptor `json:"descriptor,omitempty"`
	AskURL     string                  `json:"askUrl,omitempty"`
	ExitCode   int                     `json:"exitCode"`
	Error      string                  `json:"error,omitempty"`
}

// FailureDisplay describes a group member that did not answer.
type FailureDisplay struct {
	Bot   string `json:"bot"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// GroupResult is the outcome of a group broadcast.
type GroupResult struct {
	Query      string           `json:"query"`
	UserID     string           `json:"userId"`
	Total      int              `json:"total"`
	Answered   int              `json:"answered"`
	Failed     int              `json:"failed"`
	Results    []AskResult      `json:"results"`
	Failures   []FailureDisplay `json:"failures,omitempty"`
	Rendered   string           `json:"rendered"`
	DurationMs int64            `json:"durationMs"`
}

// NewGroupResult summarises a broadcast over total members.
func NewGroupResult(query, userID string, total int, rg *openchatbot.ResponseGroup) *GroupResult {
	result := &GroupResult{
		Query:    query,
		UserID:   userID,
		Total:    total,
		Answered: rg.Len(),
		Results:  []AskResult{},
	}
	for _, resp := range rg.Responses() {
		result.Results = append(result.Results, NewAskResult(resp))
	}
	for _, f := range rg.Failures() {
		result.Failures = append(result.Failures, FailureDisplay{Bot: f.Bot, URL: f.URL, Error: f.Err.Error()})
	}
	result.Failed = len(result.Failures)
	return result
}

// PrintAskResult outputs an ask result in human-readable format.
func PrintAskResult(w io.Writer, result *AskResult, verbose bool) {
	if result.Error != "" {
		fmt.Fprintf(w, "✗ %s\n\n", result.URL)
		fmt.Fprintf(w, "Error: %s\n", result.Error)
		return
	}

	name := result.BotName
	if name == "" {
		name = result.Bot
	}
	fmt.Fprintf(w, "%s> %s\n", name, result.Text)

	if !verbose {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  URL:      %s\n", result.URL)
	if result.Method != "" {
		fmt.Fprintf(w, "  Method:   %s\n", strings.ToUpper(result.Method))
	}
	fmt.Fprintf(w, "  Status:   %d %s\n", result.Code, result.Status)
	if result.Version != "" {
		fmt.Fprintf(w, "  Version:  %s\n", result.Version)
	}
	fmt.Fprintf(w, "  Latency:  %dms\n", result.LatencyMs)
	if len(result.Response) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Response:")
		fmt.Fprintln(w, formatResponseBody(string(result.Response)))
	}
}

// PrintDescriptorResult outputs a descriptor lookup in human-readable format.
func PrintDescriptorResult(w io.Writer, result *DescriptorResult) {
	if !result.Found {
		fmt.Fprintf(w, "⚠ No chatbot descriptor found for %s\n\n", result.Domain)
		fmt.Fprintf(w, "Tried:\n  • %s\n", result.URL)
		if result.Error != "" {
			fmt.Fprintf(w, "\nError: %s\n", result.Error)
		}
		return
	}

	d := result.Descriptor
	fmt.Fprintf(w, "✓ Chatbot descriptor found (%s)\n\n", result.URL)
	fmt.Fprintf(w, "  Host:     %s\n", d.Host())
	fmt.Fprintf(w, "  Port:     %d\n", d.Port())
	fmt.Fprintf(w, "  Endpoint: %s\n", d.Endpoint())
	fmt.Fprintf(w, "  Methods:  %s\n", strings.Join(d.Methods(), ", "))
	if result.AskURL != "" {
		fmt.Fprintf(w, "\n  Ask URL:  %s\n", result.AskURL)
	}
}

// PrintGroupResult outputs a broadcast result. Unless verbose, only the
// rendered answers and a one-line summary are shown.
func PrintGroupResult(w io.Writer, result *GroupResult, verbose bool) {
	if result.Rendered != "" {
		fmt.Fprintln(w, result.Rendered)
	} else if result.Answered == 0 {
		fmt.Fprintln(w, "No response found!")
	}

	if !verbose && result.Failed == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Bots:     %d\n", result.Total)
	fmt.Fprintf(w, "Answered: %d\n", result.Answered)
	fmt.Fprintf(w, "Failed:   %d\n", result.Failed)
	fmt.Fprintf(w, "Time:     %dms\n", result.DurationMs)

	if verbose {
		fmt.Fprintln(w)
		for _, r := range result.Results {
			fmt.Fprintf(w, "  %s %s (%dms)\n", statusIcon(true), r.Bot, r.LatencyMs)
		}
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "  %s %s\n", statusIcon(false), f.Bot)
		fmt.Fprintf(w, "      %s\n", truncateText(f.Error, 100))
	}
}

// Helper functions

func statusIcon(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// truncateText truncates a string to maxLen characters, adding "..." if truncated.
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}

// maxPrettyPrintSize is the maximum response size (in bytes) to pretty-print.
// Larger responses are returned raw to avoid terminal lag and memory issues.
const maxPrettyPrintSize = 50 * 1024 // 50KB

// formatResponseBody pretty-prints JSON when outputting to a terminal,
// otherwise returns the raw body for piping to other tools.
func formatResponseBody(body string) string {
	// Only pretty-print for TTY output and small responses
	if !IsTTY() || len(body) > maxPrettyPrintSize {
		return body
	}

	// json.Indent returns an error for invalid JSON, so no need to pre-validate
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(body), "", "  "); err != nil {
		return body
	}
	return pretty.String()
}
