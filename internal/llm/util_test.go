package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "json code block", input: "```json\n{\"key\": \"value\"}\n```", expected: `{"key": "value"}`},
		{name: "generic code block", input: "```\n{\"key\": \"value\"}\n```", expected: `{"key": "value"}`},
		{name: "code block with language", input: "```javascript\n{\"key\": \"value\"}\n```", expected: `{"key": "value"}`},
		{name: "plain JSON", input: `{"key": "value"}`, expected: `{"key": "value"}`},
		{name: "preamble before object", input: "Here is the JSON:\n{\"role_title\": \"SRE\"}", expected: `{"role_title": "SRE"}`},
		{name: "preamble before array", input: "Scores:\n[{\"index\": 0, \"score\": 0.9}]", expected: `[{"index": 0, "score": 0.9}]`},
		{name: "trailing text", input: "{\"key\": \"value\"}\n\nAnything else?", expected: `{"key": "value"}`},
		{name: "escaped quotes", input: `Result: {"message": "He said \"hi\" {ok}"}`, expected: `{"message": "He said \"hi\" {ok}"}`},
		{name: "no json at all", input: "sorry, cannot help", expected: "sorry, cannot help"},
		{name: "unbalanced", input: `{"key": "value"`, expected: `{"key": "value"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, extractJSONObject(`{"a": {"b": 1}} tail`))
	assert.Equal(t, `{"t": "Hello {name}!"}`, extractJSONObject(`{"t": "Hello {name}!"}`))
	assert.Equal(t, "", extractJSONObject("not json"))
	assert.Equal(t, "", extractJSONObject(""))
	assert.Equal(t, `[[1, 2], [3]]`, extractJSONArray(`[[1, 2], [3]] extra`))
	assert.Equal(t, "", extractJSONArray(`{"a": 1}`))
}
