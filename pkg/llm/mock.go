package llm

import (
	"context"
	"sync"
)

// MockOracle is a configurable Oracle for tests. Responses come either
// from DecideFunc or from a scripted queue consumed in order.
type MockOracle struct {
	DecideFunc func(ctx context.Context, messages []Message, tools []ToolDefinition) (*OracleResponse, error)

	mu        sync.Mutex
	scripted  []*OracleResponse
	calls     [][]Message
	toolSpecs [][]ToolDefinition
}

var _ Oracle = (*MockOracle)(nil)

// Script queues responses returned by successive Decide calls when
// DecideFunc is not set. The last response repeats once exhausted.
func (m *MockOracle) Script(responses ...*OracleResponse) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = append(m.scripted, responses...)
	return m
}

// Decide implements Oracle.
func (m *MockOracle) Decide(ctx context.Context, messages []Message, tools []ToolDefinition) (*OracleResponse, error) {
	m.mu.Lock()
	snapshot := append([]Message(nil), messages...)
	m.calls = append(m.calls, snapshot)
	m.toolSpecs = append(m.toolSpecs, tools)
	var next *OracleResponse
	if len(m.scripted) > 0 {
		next = m.scripted[0]
		if len(m.scripted) > 1 {
			m.scripted = m.scripted[1:]
		}
	}
	m.mu.Unlock()

	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, messages, tools)
	}
	if next != nil {
		return next, nil
	}
	return &OracleResponse{Text: "done"}, nil
}

// Calls returns the message snapshots passed to Decide, in order.
func (m *MockOracle) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}

// CallCount returns how many times Decide ran.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastTools returns the tool definitions passed to the most recent call.
func (m *MockOracle) LastTools() []ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toolSpecs) == 0 {
		return nil
	}
	return m.toolSpecs[len(m.toolSpecs)-1]
}
