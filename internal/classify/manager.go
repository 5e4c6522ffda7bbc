package classify

import (
	"context"
	"fmt"
	"sync"

	"applytrack-utils/internal/config"
	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/models"
)

// Manager manages scorer providers and their lifecycle
type Manager struct {
	config  *config.Config
	factory *ScorerFactory
	scorer  Scorer
	logger  logging.Logger
	mu      sync.RWMutex
	healthy bool
}

// NewManager creates a new scorer manager instance
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config:  cfg,
		factory: NewScorerFactory(cfg),
		logger:  logging.GetGlobalLogger(),
	}
}

// Start initializes the scorer manager and creates the provider
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting scorer manager", map[string]interface{}{
		"provider": m.config.Scorer.Provider,
	})

	scorer, err := m.factory.CreateScorer()
	if err != nil {
		return fmt.Errorf("failed to create scorer provider: %w", err)
	}

	m.scorer = scorer

	ctx, cancel := context.WithTimeout(context.Background(), m.config.Scorer.Timeout)
	defer cancel()

	if err := m.scorer.IsHealthy(ctx); err != nil {
		m.logger.Warn("Scorer health check failed - classification will be disabled", map[string]interface{}{
			"error": err.Error(),
		})
		m.healthy = false
		// Don't return error - allow server to start without classification
	} else {
		m.healthy = true
		m.logger.Info("Scorer manager started successfully", map[string]interface{}{
			"provider": m.scorer.GetProviderName(),
		})
	}

	return nil
}

// Stop shuts down the scorer manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping scorer manager")
	m.scorer = nil
	m.healthy = false
	return nil
}

// Score runs a single classification through the configured provider
func (m *Manager) Score(ctx context.Context, input *models.ScoreInput) (*models.ClassificationResult, error) {
	m.mu.RLock()
	scorer := m.scorer
	healthy := m.healthy
	m.mu.RUnlock()

	if scorer == nil {
		return nil, fmt.Errorf("scorer manager not started or provider not available")
	}

	if !healthy {
		return nil, fmt.Errorf("scorer provider is not available - check API key configuration (set SCORER_API_KEY environment variable)")
	}

	return scorer.Score(ctx, input)
}

// IsHealthy checks if the scorer manager and provider are healthy
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.scorer != nil
}

// GetProviderName returns the name of the current scorer provider
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.scorer != nil {
		return m.scorer.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the scorer provider
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	scorer := m.scorer
	m.mu.RUnlock()

	if scorer == nil {
		return fmt.Errorf("scorer provider not available")
	}

	err := scorer.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()

	return err
}
