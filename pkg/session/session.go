// Package session is the top-level entry point: a Session owns the oracle,
// the cache, and the registered data sources; Threads run conversations
// against them.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/cache"
	"github.com/ekaya-inc/dataquay/pkg/config"
	"github.com/ekaya-inc/dataquay/pkg/inspect"
	"github.com/ekaya-inc/dataquay/pkg/llm"
)

// memoryTablesSource is the reserved name of the implicit in-memory source
// that backs AddTable.
const memoryTablesSource = "memory"

// Session holds the shared state of one working session: the oracle, the
// cache, and the registered sources. Threads created from it share all of
// them. Safe for concurrent use.
type Session struct {
	name   string
	oracle llm.Oracle
	memo   cache.Cache
	agent  config.AgentConfig
	logger *zap.Logger

	mu      sync.Mutex
	sources map[string]datasource.DataSource
	order   []string
	inMem   *sqlite.Source
	closed  bool

	dict    *inspect.SemanticDict
	opts    inspect.Options
	context string
}

// New builds a session from a full configuration: oracle client, cache
// backend, and every configured source.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	oracle, err := llm.NewOracle(&cfg.Oracle, logger)
	if err != nil {
		return nil, err
	}
	memo, err := cache.New(ctx, &cfg.Cache)
	if err != nil {
		return nil, err
	}

	s := NewWith(oracle, memo, cfg.Agent, logger)
	for i := range cfg.Sources {
		src, err := datasource.New(ctx, &cfg.Sources[i], logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := s.AddSource(src); err != nil {
			src.Close()
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWith builds a session from already-constructed dependencies.
func NewWith(oracle llm.Oracle, memo cache.Cache, agentCfg config.AgentConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if agentCfg.MaxIterations <= 0 {
		agentCfg.MaxIterations = 50
	}
	if agentCfg.RowsLimit <= 0 {
		agentCfg.RowsLimit = 100
	}
	return &Session{
		name:    uuid.NewString(),
		oracle:  oracle,
		memo:    memo,
		agent:   agentCfg,
		logger:  logger.Named("session"),
		sources: make(map[string]datasource.DataSource),
		dict:    inspect.FullDict(),
		opts:    inspect.DefaultOptions(),
	}
}

// Name returns the session identifier.
func (s *Session) Name() string { return s.name }

// AddSource registers a data source. Source names must be unique within
// the session.
func (s *Session) AddSource(src datasource.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.ErrSourceClosed
	}
	if _, exists := s.sources[src.Name()]; exists {
		return apperrors.NewConfigurationError("sources",
			fmt.Sprintf("source %q already registered", src.Name()))
	}
	s.sources[src.Name()] = src
	s.order = append(s.order, src.Name())
	return nil
}

// AddTable registers an in-memory table queryable like any other source.
// All tables added this way live in one implicit sqlite source named
// "memory".
func (s *Session) AddTable(ctx context.Context, name string, columns []string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.ErrSourceClosed
	}
	if s.inMem == nil {
		src, err := sqlite.NewInMemory(ctx, memoryTablesSource, s.logger)
		if err != nil {
			return fmt.Errorf("create in-memory source: %w", err)
		}
		if _, exists := s.sources[memoryTablesSource]; exists {
			src.Close()
			return apperrors.NewConfigurationError("sources",
				fmt.Sprintf("source name %q is reserved for in-memory tables", memoryTablesSource))
		}
		s.inMem = src
		s.sources[memoryTablesSource] = src
		s.order = append(s.order, memoryTablesSource)
	}
	return s.inMem.RegisterTable(ctx, name, columns, rows)
}

// SetSemanticDict scopes which tables and columns inspections cover.
// Applies to threads' next Ask.
func (s *Session) SetSemanticDict(dict *inspect.SemanticDict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dict == nil {
		dict = inspect.FullDict()
	}
	s.dict = dict
}

// SetInspectOptions sets sampling and profiling behavior for inspections.
func (s *Session) SetInspectOptions(opts inspect.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

// SetContext adds caller-supplied domain knowledge to the system prompt.
func (s *Session) SetContext(extra string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = extra
}

// InvalidateSchema drops all cached inspection artifacts for one source.
// Call it after the underlying data or schema changed; nothing expires
// automatically.
func (s *Session) InvalidateSchema(ctx context.Context, sourceName string) error {
	s.mu.Lock()
	_, exists := s.sources[sourceName]
	s.mu.Unlock()
	if !exists {
		return apperrors.NewConfigurationError("source",
			fmt.Sprintf("unknown source %q", sourceName))
	}
	if s.memo == nil {
		return nil
	}
	return s.memo.InvalidateTag(ctx, inspect.InspectionTag(sourceName))
}

// Thread starts a new conversation sharing the session's sources, oracle,
// and cache.
func (s *Session) Thread() *Thread {
	return newThread(s)
}

// snapshot returns the current source set and inspection scope for a run.
func (s *Session) snapshot() ([]datasource.DataSource, *inspect.SemanticDict, inspect.Options, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make([]datasource.DataSource, 0, len(s.order))
	for _, name := range s.order {
		sources = append(sources, s.sources[name])
	}
	return sources, s.dict, s.opts, s.context
}

// Close releases every source and the cache. Threads created from the
// session are unusable afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, name := range s.order {
		if err := s.sources[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.memo != nil {
		if err := s.memo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
