// Package output renders command results as JSON or human-readable text.
package output

import (
	"os"

	"golang.org/x/term"
)

// IsTTY returns true if stdout is connected to a terminal.
// When false, output is being piped or redirected.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsStdinTTY returns true if stdin is connected to a terminal.
// The chat command only prompts when it is.
func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStderrTTY returns true if stderr is connected to a terminal.
// Log output is coloured only when it is.
func IsStderrTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
