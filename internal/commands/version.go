package commands

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/port402/ocb/internal/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display version, build information, and runtime details.`,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// versionInfo is the machine-readable form of the version output.
func versionInfo() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildDate": BuildDate,
		"go":        runtime.Version(),
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	if GetJSONOutput() {
		return output.PrintJSON(versionInfo())
	}
	printVersion(os.Stdout)
	return nil
}

func printVersion(w io.Writer) {
	// Compact format: ocb 0.1.0 (e0b2c4f)
	commitShort := truncate(Commit, 7)
	if commitShort != "none" {
		fmt.Fprintf(w, "ocb %s (%s)\n", Version, commitShort)
	} else {
		fmt.Fprintf(w, "ocb %s\n", Version)
	}

	if BuildDate != "unknown" {
		fmt.Fprintf(w, "  Built:    %s\n", truncate(BuildDate, 10))
	}

	goVersion := strings.TrimPrefix(runtime.Version(), "go")
	fmt.Fprintf(w, "  Go:       %s\n", goVersion)
	fmt.Fprintf(w, "  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// truncate returns at most maxLen characters from s.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
