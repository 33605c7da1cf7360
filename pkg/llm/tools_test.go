package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQueryToolSingleSource(t *testing.T) {
	tool := RunQueryTool([]string{"shop"})
	assert.Equal(t, RunQueryToolName, tool.Name)

	props := tool.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.NotContains(t, props, "source")
	assert.Equal(t, []string{"query"}, tool.Parameters["required"])
}

func TestRunQueryToolMultiSource(t *testing.T) {
	tool := RunQueryTool([]string{"shop", "warehouse"})

	props := tool.Parameters["properties"].(map[string]any)
	require.Contains(t, props, "source")
	source := props["source"].(map[string]any)
	assert.Equal(t, []string{"shop", "warehouse"}, source["enum"])
	assert.ElementsMatch(t, []string{"query", "source"}, tool.Parameters["required"])
}

func TestParseTextToolCall(t *testing.T) {
	content := `Let me check the data.
<tool_call>{"name": "run_query", "arguments": {"query": "SELECT 1"}}</tool_call>`

	tc, cleaned, ok := parseTextToolCall(content)
	require.True(t, ok)
	assert.Equal(t, RunQueryToolName, tc.Name)
	assert.JSONEq(t, `{"query": "SELECT 1"}`, tc.Arguments)
	assert.Equal(t, "Let me check the data.", cleaned)
}

func TestParseTextToolCallPlainText(t *testing.T) {
	_, cleaned, ok := parseTextToolCall("There are 42 orders.")
	assert.False(t, ok)
	assert.Equal(t, "There are 42 orders.", cleaned)
}

func TestParseTextToolCallMalformed(t *testing.T) {
	_, _, ok := parseTextToolCall(`<tool_call>{"arguments": {}}</tool_call>`)
	assert.False(t, ok) // missing tool name

	_, _, ok = parseTextToolCall(`<tool_call>{not json}</tool_call>`)
	assert.False(t, ok)
}
