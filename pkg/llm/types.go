// Package llm is the reasoning-oracle boundary: message and tool types,
// provider clients, and the single point where provider output is decoded
// into a closed response variant.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn in provider-neutral form.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a request from the oracle to run a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// Meta carries oracle call metadata for result reporting.
type Meta struct {
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
}

// Add accumulates usage across calls, keeping the last model name.
func (m *Meta) Add(other Meta) {
	if other.Model != "" {
		m.Model = other.Model
	}
	m.PromptTokens += other.PromptTokens
	m.CompletionTokens += other.CompletionTokens
	m.TotalTokens += other.TotalTokens
}

// OracleResponse is the decoded outcome of one oracle turn: either a final
// answer (ToolCall nil) or a tool request, possibly with accompanying text.
// Provider payloads are decoded into this shape exactly once, at the client.
type OracleResponse struct {
	Text     string
	ToolCall *ToolCall
	Meta     Meta
}

// IsFinal reports whether the oracle is done reasoning.
func (r *OracleResponse) IsFinal() bool { return r.ToolCall == nil }

// Oracle is the reasoning boundary the agent loop depends on. Failures are
// returned as *apperrors.OracleError.
type Oracle interface {
	// Decide runs one oracle turn over the conversation so far.
	Decide(ctx context.Context, messages []Message, tools []ToolDefinition) (*OracleResponse, error)
}
