package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port402/ocb/internal/openchatbot"
)

func TestFormatJSON(t *testing.T) {
	data := map[string]interface{}{
		"key":    "value",
		"number": 42,
	}

	result, err := FormatJSON(data)
	require.NoError(t, err)
	assert.Contains(t, result, `"key": "value"`)
	assert.Contains(t, result, `"number": 42`)
}

func TestFormatJSON_AskResult(t *testing.T) {
	result := AskResult{
		Bot:       "Kbot",
		URL:       "https://bot.example:443/api/ask",
		Query:     "hello",
		UserID:    "u",
		Text:      "hi",
		Code:      200,
		LatencyMs: 12,
		Response:  json.RawMessage(`{"response":{"text":"hi"}}`),
	}

	jsonStr, err := FormatJSON(result)
	require.NoError(t, err)
	assert.Contains(t, jsonStr, `"url": "https://bot.example:443/api/ask"`)
	assert.Contains(t, jsonStr, `"userId": "u"`)
	assert.Contains(t, jsonStr, `"latencyMs": 12`)
	assert.Contains(t, jsonStr, `"text": "hi"`)
	assert.NotContains(t, jsonStr, `"error"`)
}

func TestFormatJSON_DescriptorResult(t *testing.T) {
	d, err := openchatbot.BuildDescriptor("https://bot.example", 0, "/api/v1/ask", "post")
	require.NoError(t, err)

	result := DescriptorResult{Domain: "bot.example", URL: "https://bot.example/.well-known/openchatbot-configuration", Found: true, Descriptor: d}

	var decoded map[string]interface{}
	jsonStr, err := FormatJSON(result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(jsonStr), &decoded))

	doc := decoded["descriptor"].(map[string]interface{})["openchatbot"].(map[string]interface{})
	assert.Equal(t, "https://bot.example", doc["host"])
	assert.Equal(t, float64(443), doc["port"])
	assert.Equal(t, []interface{}{"POST"}, doc["methods"])
}

func TestFormatJSON_GroupResult(t *testing.T) {
	result := GroupResult{
		Query:    "hello",
		Total:    2,
		Answered: 1,
		Failed:   1,
		Results:  []AskResult{{Bot: "X", Text: "a"}},
		Failures: []FailureDisplay{{Bot: "Y", URL: "https://y:443/api/ask", Error: "connection refused"}},
		Rendered: "X: a",
	}

	jsonStr, err := FormatJSON(result)
	require.NoError(t, err)
	assert.Contains(t, jsonStr, `"answered": 1`)
	assert.Contains(t, jsonStr, `"rendered": "X: a"`)
	assert.Contains(t, jsonStr, `"error": "connection refused"`)
}

func TestWriteJSON_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]string{"text": "<b>hi</b> & bye"}))
	assert.Contains(t, buf.String(), "<b>hi</b> & bye")
}
