package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
)

// NewOracle builds the oracle client selected by the configuration.
func NewOracle(cfg *config.OracleConfig, logger *zap.Logger) (Oracle, error) {
	switch cfg.Provider {
	case config.OracleProviderOpenAI, "":
		return NewOpenAIClient(cfg, logger)
	case config.OracleProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, apperrors.NewConfigurationError("provider",
			fmt.Sprintf("unsupported oracle provider %q", cfg.Provider))
	}
}
