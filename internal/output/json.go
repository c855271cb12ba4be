package output

import (
	"encoding/json"
	"io"
	"os"
)

// PrintJSON outputs any value as formatted JSON to stdout.
func PrintJSON(v interface{}) error {
	return WriteJSON(os.Stdout, v)
}

// WriteJSON outputs any value as formatted JSON to w.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// FormatJSON returns formatted JSON as a string.
func FormatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PrintJSONError outputs an error as JSON to stdout.
func PrintJSONError(err error, exitCode int) {
	PrintJSON(map[string]interface{}{
		"error":    err.Error(),
		"exitCode": exitCode,
	})
}
