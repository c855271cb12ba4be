// Package commands implements the CLI commands using Cobra.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/port402/ocb/internal/config"
	"github.com/port402/ocb/internal/output"
	"github.com/port402/ocb/internal/telemetry"
)

// Version information (set at build time via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global flags
var (
	verbose    bool
	jsonOutput bool
)

var (
	cfg               *config.Config
	shutdownTelemetry = func(context.Context) error { return nil }
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "ocb",
	Short: "CLI for talking to Open Chatbot compatible bots",
	Long: `ocb is a command-line client for the Open Chatbot protocol.

A bot publishes a descriptor at /.well-known/openchatbot-configuration
and answers queries on its ask endpoint. ocb can fetch descriptors, ask
a single bot, chat with it interactively or broadcast one query to a
group of bots.

Commands:
  ask          Send one query to a bot
  chat         Talk to a bot interactively
  descriptor   Fetch a domain's chatbot descriptor
  group        Ask every bot listed in a file
  version      Show version information

Examples:
  # Ask a bot by its ask URL
  ocb ask https://bot.example.com/api/ask "hello"

  # Discover the bot published by a domain, then ask it
  ocb ask konverso.ai "what can you do?" --discover

  # Broadcast to several bots
  ocb group bots.json "hello" --parallel 5`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdownTelemetry(ctx); serr != nil {
		log.Debug().Err(serr).Msg("telemetry shutdown")
	}
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
}

// setup loads configuration and installs logging and tracing before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	cfg = config.Load()
	log.Logger = newLogger(os.Stderr, logLevel(cfg.LogLevel, verbose), output.IsStderrTTY())

	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry, Version)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		return nil
	}
	shutdownTelemetry = shutdown
	return nil
}

func newLogger(w io.Writer, level zerolog.Level, color bool) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, NoColor: !color, TimeFormat: time.Kitchen}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// logLevel resolves the log level: --verbose first, then OCB_LOG_LEVEL,
// then info.
func logLevel(name string, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	if name != "" {
		if level, err := zerolog.ParseLevel(name); err == nil {
			return level
		}
	}
	return zerolog.InfoLevel
}

// settings returns the loaded configuration, loading it on first use when
// a command runs without the root pre-run hook.
func settings() *config.Config {
	if cfg == nil {
		cfg = config.Load()
	}
	return cfg
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// GetVerbose returns the verbose flag value.
func GetVerbose() bool {
	return verbose
}

// GetJSONOutput returns the json output flag value.
func GetJSONOutput() bool {
	return jsonOutput
}
