package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"applytrack-utils/pkg/models"
	"applytrack-utils/pkg/utils"
)

// PostgresProfileStore reads user profiles for compatibility scoring.
// Expected schema:
//
//	CREATE TABLE user_profiles (
//	    user_id          TEXT PRIMARY KEY,
//	    headline         TEXT NOT NULL DEFAULT '',
//	    skills           TEXT[] NOT NULL DEFAULT '{}',
//	    experience_years INTEGER NOT NULL DEFAULT 0,
//	    summary          TEXT NOT NULL DEFAULT '',
//	    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

// NewPostgresProfileStore creates a profile store backed by the given pool.
func NewPostgresProfileStore(pool *pgxpool.Pool) *PostgresProfileStore {
	return &PostgresProfileStore{pool: pool}
}

// GetProfile fetches the profile for a user.
func (s *PostgresProfileStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, headline, skills, experience_years, summary, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&profile.UserID, &profile.Headline, &profile.Skills,
		&profile.ExperienceYears, &profile.Summary, &profile.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.NewNotFoundError(fmt.Sprintf("profile for user %s not found", userID))
	}
	if err != nil {
		return nil, fmt.Errorf("getProfile scan: %w", err)
	}
	return &profile, nil
}
