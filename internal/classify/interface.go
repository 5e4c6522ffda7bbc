package classify

import (
	"context"

	"applytrack-utils/pkg/models"
)

// Scorer is the external classifier the cache fronts: an LLM-backed or
// rule-based engine with a cost and latency profile of its own.
type Scorer interface {
	// Score produces a verdict for a single input.
	Score(ctx context.Context, input *models.ScoreInput) (*models.ClassificationResult, error)

	// IsHealthy checks if the scorer is available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the scorer provider
	GetProviderName() string
}

// ProfileStore supplies the user profile the compatibility scorer compares
// against.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}
