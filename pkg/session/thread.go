package session

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/agent"
	"github.com/ekaya-inc/dataquay/pkg/llm"
)

// Thread is one conversation against a session. Asks on the same thread
// build on each other's history; separate threads are independent.
type Thread struct {
	id      string
	session *Session
	history *agent.History
}

func newThread(s *Session) *Thread {
	t := &Thread{
		id:      uuid.NewString(),
		session: s,
	}
	if s.agent.KeepHistory && s.memo != nil {
		t.history = agent.NewHistory(s.memo, s.name+"/"+t.id)
	}
	return t
}

// ID returns the thread identifier.
func (t *Thread) ID() string { return t.id }

// Ask runs the agent loop on the question. It never returns an error:
// failures come back as an Answer whose Failed method reports true and
// whose Text carries the failure description.
func (t *Thread) Ask(ctx context.Context, question string) *Answer {
	var history []llm.Message
	var cursor int
	if t.history != nil {
		var err error
		history, cursor, err = t.history.Load(ctx)
		if err != nil {
			t.session.logger.Warn("history load failed, starting fresh",
				zap.String("thread", t.id), zap.Error(err))
			history, cursor = nil, 0
		}
	}

	sources, dict, opts, extra := t.session.snapshot()
	loop, err := agent.NewLoop(&agent.Config{
		Oracle:         t.session.oracle,
		Sources:        sources,
		Cache:          t.session.memo,
		Agent:          t.session.agent,
		SemanticDict:   dict,
		InspectOptions: opts,
		ExtraContext:   extra,
		Logger:         t.session.logger,
	})
	if err != nil {
		return &Answer{result: &agent.ExecutionResult{
			Text:  err.Error(),
			State: agent.StateFailed,
		}}
	}

	result := loop.Run(ctx, question, history)

	if t.history != nil {
		if err := t.history.Save(ctx, result.Messages, cursor); err != nil {
			t.session.logger.Warn("history save failed",
				zap.String("thread", t.id), zap.Error(err))
		}
	}
	return &Answer{result: result}
}

// Reset clears the thread's stored conversation.
func (t *Thread) Reset(ctx context.Context) error {
	if t.history == nil {
		return nil
	}
	return t.history.Clear(ctx)
}

// Answer wraps one run's result with lazy accessors.
type Answer struct {
	result *agent.ExecutionResult
}

// Text is the oracle's final answer, or the failure description.
func (a *Answer) Text() string { return a.result.Text }

// Code is the last successfully executed statement, empty if none ran.
func (a *Answer) Code() string { return a.result.Code }

// Table is the last successful query result, nil if none ran.
func (a *Answer) Table() *datasource.Table { return a.result.Table }

// Meta reports accumulated oracle usage.
func (a *Answer) Meta() llm.Meta { return a.result.Meta }

// Messages is the conversation after the run, including history.
func (a *Answer) Messages() []llm.Message { return a.result.Messages }

// Failed reports whether the run ended in a failure state.
func (a *Answer) Failed() bool { return a.result.Failed() }
