package datasource

import (
	"context"
	"strings"
	"sync"

	"github.com/ekaya-inc/dataquay/pkg/schema"
)

// MockSource is a configurable DataSource for tests. Behavior is injected
// through function fields; calls are recorded for assertions.
type MockSource struct {
	NameValue string
	TypeValue string

	ExecuteFunc          func(ctx context.Context, query string) (*Result, error)
	InspectRawSchemaFunc func(ctx context.Context) (*schema.RawSchema, error)
	QuoteIdentifierFunc  func(name string) string
	CloseFunc            func() error

	mu               sync.Mutex
	executeCalls     []string
	inspectCallCount int
	closeCallCount   int
}

var _ DataSource = (*MockSource)(nil)

// Name implements DataSource.
func (m *MockSource) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// Type implements DataSource.
func (m *MockSource) Type() string {
	if m.TypeValue != "" {
		return m.TypeValue
	}
	return "mock"
}

// Execute implements DataSource.
func (m *MockSource) Execute(ctx context.Context, query string) (*Result, error) {
	m.mu.Lock()
	m.executeCalls = append(m.executeCalls, query)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, query)
	}
	return &Result{Table: &Table{}}, nil
}

// InspectRawSchema implements DataSource.
func (m *MockSource) InspectRawSchema(ctx context.Context) (*schema.RawSchema, error) {
	m.mu.Lock()
	m.inspectCallCount++
	m.mu.Unlock()

	if m.InspectRawSchemaFunc != nil {
		return m.InspectRawSchemaFunc(ctx)
	}
	return schema.NewRawSchema(), nil
}

// QuoteIdentifier implements DataSource.
func (m *MockSource) QuoteIdentifier(name string) string {
	if m.QuoteIdentifierFunc != nil {
		return m.QuoteIdentifierFunc(name)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close implements DataSource.
func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closeCallCount++
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// ExecuteCalls returns the queries passed to Execute, in order.
func (m *MockSource) ExecuteCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executeCalls...)
}

// InspectCallCount returns how many times InspectRawSchema ran.
func (m *MockSource) InspectCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inspectCallCount
}

// CloseCallCount returns how many times Close ran.
func (m *MockSource) CloseCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCallCount
}
