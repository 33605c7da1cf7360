package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/cache"
	"github.com/ekaya-inc/dataquay/pkg/config"
	"github.com/ekaya-inc/dataquay/pkg/inspect"
	"github.com/ekaya-inc/dataquay/pkg/llm"
	"github.com/ekaya-inc/dataquay/pkg/prompts"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

// Config holds the dependencies of one Loop.
type Config struct {
	Oracle  llm.Oracle
	Sources []datasource.DataSource
	Cache   cache.Cache
	Agent   config.AgentConfig

	// SemanticDict scopes schema inspection; nil means everything.
	SemanticDict *inspect.SemanticDict
	// InspectOptions controls value sampling for the schema summary.
	InspectOptions inspect.Options
	// ExtraContext is optional domain knowledge added to the system prompt.
	ExtraContext string

	Logger *zap.Logger
}

// Loop is the bounded reasoning loop: obtain the schema once, then
// alternate oracle turns and tool executions until the oracle answers, an
// unrecoverable failure occurs, or the iteration ceiling is hit. Run never
// returns an error; failures become FAILED results.
type Loop struct {
	oracle llm.Oracle
	byName map[string]datasource.DataSource
	order  []string
	memo   cache.Cache
	cfg    config.AgentConfig
	dict   *inspect.SemanticDict
	opts   inspect.Options
	extra  string
	logger *zap.Logger
	now    func() time.Time
}

// NewLoop validates dependencies and builds a Loop.
func NewLoop(cfg *Config) (*Loop, error) {
	if cfg.Oracle == nil {
		return nil, apperrors.NewConfigurationError("oracle", "oracle is required")
	}
	if len(cfg.Sources) == 0 {
		return nil, apperrors.NewConfigurationError("sources", "at least one data source is required")
	}
	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = 50
	}
	if cfg.Agent.RowsLimit <= 0 {
		cfg.Agent.RowsLimit = 100
	}

	byName := make(map[string]datasource.DataSource, len(cfg.Sources))
	order := make([]string, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if _, dup := byName[src.Name()]; dup {
			return nil, apperrors.NewConfigurationError("sources",
				fmt.Sprintf("duplicate source name %q", src.Name()))
		}
		byName[src.Name()] = src
		order = append(order, src.Name())
	}

	dict := cfg.SemanticDict
	if dict == nil {
		dict = inspect.FullDict()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		oracle: cfg.Oracle,
		byName: byName,
		order:  order,
		memo:   cfg.Cache,
		cfg:    cfg.Agent,
		dict:   dict,
		opts:   cfg.InspectOptions,
		extra:  cfg.ExtraContext,
		logger: logger.Named("agent"),
		now:    time.Now,
	}, nil
}

// Run executes one question against the conversation so far. The returned
// result is terminal: StateDone with the oracle's answer, or StateFailed
// with the failure text. Query failures are not terminal; they are fed back
// to the oracle and the loop continues.
func (l *Loop) Run(ctx context.Context, question string, history []llm.Message) *ExecutionResult {
	meta := llm.Meta{}
	messages := append([]llm.Message{}, history...)

	l.logger.Debug("state transition", zap.String("state", string(StateInit)))
	summary, err := l.schemaSummary(ctx)
	if err != nil {
		return failedResult(err.Error(), meta, messages)
	}
	l.logger.Debug("state transition", zap.String("state", string(StateSchemaReady)))

	if len(messages) == 0 || messages[0].Role != llm.RoleSystem {
		system := prompts.BuildSystemPrompt(prompts.SystemPromptInput{
			SchemaSummary: summary,
			Date:          l.now(),
			ExtraContext:  l.extra,
			Sources:       l.order,
		})
		messages = append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, messages...)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	tools := []llm.ToolDefinition{llm.RunQueryTool(l.order)}

	var lastCode string
	var lastTable *datasource.Table

	for iteration := 0; iteration < l.cfg.MaxIterations; iteration++ {
		l.logger.Debug("state transition",
			zap.String("state", string(StateReasoning)), zap.Int("iteration", iteration))
		resp, err := l.oracle.Decide(ctx, messages, tools)
		if err != nil {
			l.logger.Warn("oracle call failed", zap.Error(err), zap.Int("iteration", iteration))
			return failedResult(err.Error(), meta, messages)
		}
		meta.Add(resp.Meta)

		assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Text}
		if resp.ToolCall != nil {
			assistant.ToolCalls = []llm.ToolCall{*resp.ToolCall}
		}
		messages = append(messages, assistant)

		if resp.IsFinal() {
			return &ExecutionResult{
				Text:     resp.Text,
				Code:     lastCode,
				Table:    lastTable,
				Meta:     meta,
				Messages: messages,
				State:    StateDone,
			}
		}

		l.logger.Debug("state transition",
			zap.String("state", string(StateToolExecuting)), zap.Int("iteration", iteration))
		toolMsg, code, table, fatal := l.executeToolCall(ctx, resp.ToolCall)
		if fatal != nil {
			return failedResult(fatal.Error(), meta, messages)
		}
		messages = append(messages, toolMsg)
		if code != "" {
			lastCode = code
			lastTable = table
		}
	}

	return failedResult(
		fmt.Sprintf("exceeded maximum iterations (%d)", l.cfg.MaxIterations),
		meta, messages)
}

type runQueryArgs struct {
	Query  string `json:"query"`
	Source string `json:"source"`
}

// toolResultPayload is what the oracle sees for a successful query.
type toolResultPayload struct {
	Columns  []datasource.Column `json:"columns"`
	Rows     []map[string]any    `json:"rows"`
	RowCount int                 `json:"row_count"`
	// TruncatedRows counts rows dropped by the display row limit.
	TruncatedRows int `json:"truncated_rows,omitempty"`
}

// executeToolCall runs one tool request. Query failures come back as a tool
// message for reinjection; a non-nil fatal error aborts the run (unknown
// tool, unparseable arguments, unusable source).
func (l *Loop) executeToolCall(ctx context.Context, tc *llm.ToolCall) (llm.Message, string, *datasource.Table, error) {
	reinject := func(text string) llm.Message {
		return llm.Message{
			Role:       llm.RoleTool,
			Content:    "Error executing tool: " + text,
			ToolCallID: tc.ID,
		}
	}

	if tc.Name != llm.RunQueryToolName {
		return llm.Message{}, "", nil, fmt.Errorf("unknown tool: %s", tc.Name)
	}

	var args runQueryArgs
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return llm.Message{}, "", nil, fmt.Errorf("malformed tool arguments: %v", err)
	}
	if args.Query == "" {
		return llm.Message{}, "", nil, fmt.Errorf("malformed tool call: empty query")
	}

	sourceName := args.Source
	if sourceName == "" && len(l.order) == 1 {
		sourceName = l.order[0]
	}
	src, ok := l.byName[sourceName]
	if !ok {
		// A wrong source name is correctable by the oracle.
		return reinject(fmt.Sprintf("unknown source %q, available: %v", sourceName, l.order)), "", nil, nil
	}

	l.logger.Debug("running tool query",
		zap.String("source", sourceName),
		zap.String("tool_call_id", tc.ID))

	table, queryErr, err := l.runQuery(ctx, src, args.Query)
	if err != nil {
		return llm.Message{}, "", nil, err
	}
	if queryErr != nil {
		return reinject(queryErr.Error()), "", nil, nil
	}

	shown, dropped := table.Truncated(l.cfg.RowsLimit)
	payload := toolResultPayload{
		Columns:       shown.Columns,
		Rows:          shown.Rows,
		RowCount:      table.RowCount(),
		TruncatedRows: dropped,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return llm.Message{}, "", nil, fmt.Errorf("encode tool result: %w", err)
	}

	return llm.Message{
		Role:       llm.RoleTool,
		Content:    string(content),
		ToolCallID: tc.ID,
	}, args.Query, table, nil
}

// runQuery executes through the optional query memo. Only successful
// results are memoized.
func (l *Loop) runQuery(ctx context.Context, src datasource.DataSource, query string) (*datasource.Table, *apperrors.ExecutionError, error) {
	useMemo := l.cfg.CacheQueryResults && l.memo != nil

	if useMemo {
		var cached datasource.Table
		err := cache.GetQueryResult(ctx, l.memo, src.Name(), query, &cached)
		if err == nil {
			return &cached, nil, nil
		}
		if !cache.IsMiss(err) {
			return nil, nil, err
		}
	}

	result, err := src.Execute(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	if !result.Ok() {
		return nil, result.Err, nil
	}

	if useMemo {
		if err := cache.SetQueryResult(ctx, l.memo, src.Name(), query, result.Table); err != nil {
			return nil, nil, err
		}
	}
	return result.Table, nil, nil
}

// schemaSummary inspects every source once per cache generation and renders
// the combined summary for the system prompt.
func (l *Loop) schemaSummary(ctx context.Context) (string, error) {
	schemas := make([]*schema.DatabaseSchema, 0, len(l.order))
	for _, name := range l.order {
		db, err := l.inspectSource(ctx, l.byName[name])
		if err != nil {
			return "", err
		}
		schemas = append(schemas, db)
	}
	return schema.Summarizes(schemas, schema.SummaryFull), nil
}

// inspectSource serves the full inspection result from the cache when
// possible. The key binds the source, the semantic dictionary, and the
// inspection options, so any change re-inspects.
func (l *Loop) inspectSource(ctx context.Context, src datasource.DataSource) (*schema.DatabaseSchema, error) {
	var key string
	if l.memo != nil {
		var err error
		key, err = cache.Key(map[string]any{
			"op":            cache.OpInspectSchema,
			"source":        src.Name(),
			"semantic_dict": l.dict.CacheDiscriminant(),
			"options":       l.opts.CacheDiscriminant(),
		})
		if err != nil {
			return nil, err
		}
		var cached schema.DatabaseSchema
		err = cache.GetJSON(ctx, l.memo, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !cache.IsMiss(err) {
			return nil, err
		}
	}

	inspector := inspect.NewInspector(src, l.memo, l.logger)
	db, err := inspector.Inspect(ctx, l.dict, l.opts)
	if err != nil {
		return nil, err
	}

	if l.memo != nil {
		if err := cache.SetJSON(ctx, l.memo, key, db, inspect.InspectionTag(src.Name())); err != nil {
			return nil, err
		}
	}
	return db, nil
}
