package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/port402/ocb/internal/openchatbot"
	"github.com/port402/ocb/internal/output"
)

var (
	descUser     string
	descPassword string
	descHeaders  []string
	descTimeout  time.Duration
	descInsecure bool
)

var descriptorCmd = &cobra.Command{
	Use:   "descriptor <domain>",
	Short: "Fetch a domain's chatbot descriptor",
	Long: `Fetch and display the Open Chatbot descriptor a domain publishes at

  https://<domain>/.well-known/openchatbot-configuration

The descriptor names the bot's host, port, ask endpoint and the HTTP
methods it accepts.

Examples:
  ocb descriptor konverso.ai
  ocb descriptor konverso.ai --json
  ocb descriptor intranet.example.com --user alice --password secret`,
	Args: cobra.ExactArgs(1),
	RunE: runDescriptor,
}

func init() {
	descriptorCmd.Flags().StringVar(&descUser, "user", "", "Basic auth username")
	descriptorCmd.Flags().StringVar(&descPassword, "password", "", "Basic auth password")
	descriptorCmd.Flags().StringArrayVarP(&descHeaders, "header", "H", nil, "Extra request header \"Key: Value\" (repeatable)")
	descriptorCmd.Flags().DurationVar(&descTimeout, "timeout", 5*time.Second, "Request timeout")
	descriptorCmd.Flags().BoolVar(&descInsecure, "insecure", false, "Skip TLS certificate verification")
	rootCmd.AddCommand(descriptorCmd)
}

func runDescriptor(cmd *cobra.Command, args []string) error {
	conf := settings()

	headers, err := parseHeaders(descHeaders)
	if err != nil {
		return &exitError{code: exitArgument, err: err}
	}

	repo := openchatbot.NewRepository(openchatbot.WithRepositoryHTTPClient(
		newTransport(descTimeout, flagOr(cmd, "insecure", descInsecure, conf.Insecure)),
	))

	var opts []openchatbot.FetchOption
	if len(headers) > 0 {
		opts = append(opts, openchatbot.WithFetchHeaders(headers))
	}
	if descUser != "" {
		opts = append(opts, openchatbot.WithBasicAuth(descUser, descPassword))
	}

	result := lookupDescriptor(cmd.Context(), repo, args[0], opts...)

	if GetJSONOutput() {
		if err := output.PrintJSON(result); err != nil {
			return err
		}
	} else {
		output.PrintDescriptorResult(os.Stdout, result)
	}

	if result.ExitCode != 0 {
		return &exitError{code: result.ExitCode, err: fmt.Errorf("descriptor lookup failed")}
	}
	return nil
}

// lookupDescriptor fetches domain's descriptor and reports the outcome.
func lookupDescriptor(ctx context.Context, repo *openchatbot.Repository, domain string, opts ...openchatbot.FetchOption) *output.DescriptorResult {
	result := &output.DescriptorResult{
		Domain: domain,
		URL:    repo.DescriptorURL(domain),
	}

	d, err := repo.FetchDescriptor(ctx, domain, opts...)
	if err != nil {
		result.ExitCode = exitCodeFor(err)
		result.Error = err.Error()
		return result
	}

	result.Found = true
	result.Descriptor = d
	result.AskURL = d.URL()
	return result
}
