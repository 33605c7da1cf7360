// Package agent runs the bounded reasoning loop that turns a natural
// language question into an answer backed by read-only queries.
package agent

import (
	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/llm"
)

// State is the loop's execution phase.
type State string

const (
	StateInit          State = "INIT"
	StateSchemaReady   State = "SCHEMA_READY"
	StateReasoning     State = "REASONING"
	StateToolExecuting State = "TOOL_EXECUTING"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

// ExecutionResult is the assembled outcome of one loop run. Failures are
// results too: a FAILED run carries the failure text with empty Code and
// Table, never a raised error.
type ExecutionResult struct {
	// Text is the oracle's final answer, or the failure description.
	Text string
	// Code is the last successfully executed statement, if any.
	Code string
	// Table is the result of the last successful query, if any.
	Table *datasource.Table
	// Meta accumulates oracle usage over the run.
	Meta llm.Meta
	// Messages is the full conversation after the run, including history.
	Messages []llm.Message
	// State is the terminal state, StateDone or StateFailed.
	State State
}

// Failed reports whether the run ended in FAILED.
func (r *ExecutionResult) Failed() bool { return r.State == StateFailed }

func failedResult(text string, meta llm.Meta, messages []llm.Message) *ExecutionResult {
	return &ExecutionResult{
		Text:     text,
		Meta:     meta,
		Messages: messages,
		State:    StateFailed,
	}
}
