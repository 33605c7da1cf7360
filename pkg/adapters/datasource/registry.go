package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
)

// Factory constructs a DataSource from a validated source configuration.
type Factory func(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (DataSource, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register installs a factory for a source type. Concrete adapter packages
// call this from init; registering the same type twice panics because it
// means two adapters claim one name.
func Register(sourceType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[sourceType]; exists {
		panic(fmt.Sprintf("datasource: factory for %q registered twice", sourceType))
	}
	registry[sourceType] = factory
}

// RegisteredTypes lists the source types with installed factories, sorted.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New validates cfg and builds the matching adapter. Unknown source types
// produce a ConfigurationError so callers can distinguish wiring mistakes
// from connection failures.
func New(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (DataSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := registry[cfg.SourceType]
	registryMu.RUnlock()
	if !ok {
		return nil, apperrors.NewConfigurationError("source_type",
			fmt.Sprintf("no adapter registered for %q (have %v)", cfg.SourceType, RegisteredTypes()))
	}

	source, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s source %q: %w", cfg.SourceType, cfg.Name, err)
	}
	return source, nil
}
