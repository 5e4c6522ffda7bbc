package classify

import (
	"fmt"

	"applytrack-utils/internal/classify/providers"
	"applytrack-utils/internal/config"
)

// ScorerFactory creates scorer provider instances
type ScorerFactory struct {
	config *config.Config
}

// NewScorerFactory creates a new scorer factory instance
func NewScorerFactory(cfg *config.Config) *ScorerFactory {
	return &ScorerFactory{
		config: cfg,
	}
}

// CreateScorer creates a scorer based on the configuration
func (f *ScorerFactory) CreateScorer() (Scorer, error) {
	switch f.config.Scorer.Provider {
	case "claude":
		return providers.NewClaudeProvider(f.config), nil
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", f.config.Scorer.Provider)
	}
}

// GetSupportedProviders returns a list of supported scorer providers
func (f *ScorerFactory) GetSupportedProviders() []string {
	return []string{"claude"}
}
