package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"applytrack-utils/pkg/models"
)

// PostgresDuplicateStore persists duplicate relationships and quality
// snapshots. Expected schema:
//
//	CREATE TABLE duplicate_relationships (
//	    id                 TEXT PRIMARY KEY,
//	    canonical_job_id   TEXT NOT NULL REFERENCES jobs (id),
//	    duplicate_job_id   TEXT NOT NULL UNIQUE REFERENCES jobs (id),
//	    title_score        DOUBLE PRECISION NOT NULL,
//	    company_score      DOUBLE PRECISION NOT NULL,
//	    location_score     DOUBLE PRECISION NOT NULL,
//	    description_score  DOUBLE PRECISION NOT NULL,
//	    overall_score      DOUBLE PRECISION NOT NULL,
//	    confidence         TEXT NOT NULL,
//	    detection_method   TEXT NOT NULL,
//	    manually_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
//	    confirmed_by       TEXT NOT NULL DEFAULT '',
//	    detected_at        TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX dup_rel_canonical_idx ON duplicate_relationships (canonical_job_id);
//
//	CREATE TABLE canonical_metadata (
//	    job_id             TEXT PRIMARY KEY REFERENCES jobs (id),
//	    completeness       DOUBLE PRECISION NOT NULL,
//	    source_reliability DOUBLE PRECISION NOT NULL,
//	    freshness          DOUBLE PRECISION NOT NULL,
//	    overall_quality    DOUBLE PRECISION NOT NULL,
//	    is_canonical       BOOLEAN NOT NULL,
//	    duplicate_count    INTEGER NOT NULL,
//	    calculated_at      TIMESTAMPTZ NOT NULL
//	);
//
// The UNIQUE constraint on duplicate_job_id enforces the one-active-edge
// invariant at the database level.
type PostgresDuplicateStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDuplicateStore creates a duplicate store backed by the given pool.
func NewPostgresDuplicateStore(pool *pgxpool.Pool) *PostgresDuplicateStore {
	return &PostgresDuplicateStore{pool: pool}
}

const relColumns = `id, canonical_job_id, duplicate_job_id, title_score, company_score,
       location_score, description_score, overall_score, confidence, detection_method,
       manually_confirmed, confirmed_by, detected_at`

// InsertRelationship upserts an edge, keyed by the duplicate job id.
func (s *PostgresDuplicateStore) InsertRelationship(ctx context.Context, rel *models.DuplicateRelationship) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO duplicate_relationships (`+relColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (duplicate_job_id) DO UPDATE SET
		     canonical_job_id   = EXCLUDED.canonical_job_id,
		     title_score        = EXCLUDED.title_score,
		     company_score      = EXCLUDED.company_score,
		     location_score     = EXCLUDED.location_score,
		     description_score  = EXCLUDED.description_score,
		     overall_score      = EXCLUDED.overall_score,
		     confidence         = EXCLUDED.confidence,
		     detection_method   = EXCLUDED.detection_method,
		     manually_confirmed = EXCLUDED.manually_confirmed,
		     confirmed_by       = EXCLUDED.confirmed_by,
		     detected_at        = EXCLUDED.detected_at`,
		rel.ID, rel.CanonicalJobID, rel.DuplicateJobID,
		rel.TitleScore, rel.CompanyScore, rel.LocationScore, rel.DescriptionScore,
		rel.OverallScore, string(rel.Confidence), string(rel.DetectionMethod),
		rel.ManuallyConfirmed, rel.ConfirmedBy, rel.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insertRelationship: %w", err)
	}
	return nil
}

// DeleteRelationship removes the edge between a canonical and a duplicate.
func (s *PostgresDuplicateStore) DeleteRelationship(ctx context.Context, canonicalID, duplicateID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM duplicate_relationships WHERE canonical_job_id = $1 AND duplicate_job_id = $2`,
		canonicalID, duplicateID,
	)
	if err != nil {
		return fmt.Errorf("deleteRelationship: %w", err)
	}
	return nil
}

// ListRelationshipsFor returns every edge touching a job, on either side.
func (s *PostgresDuplicateStore) ListRelationshipsFor(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+relColumns+` FROM duplicate_relationships
		 WHERE canonical_job_id = $1 OR duplicate_job_id = $1
		 ORDER BY detected_at, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("listRelationshipsFor query: %w", err)
	}
	defer rows.Close()

	rels := make([]models.DuplicateRelationship, 0)
	for rows.Next() {
		var rel models.DuplicateRelationship
		if err := rows.Scan(
			&rel.ID, &rel.CanonicalJobID, &rel.DuplicateJobID,
			&rel.TitleScore, &rel.CompanyScore, &rel.LocationScore, &rel.DescriptionScore,
			&rel.OverallScore, &rel.Confidence, &rel.DetectionMethod,
			&rel.ManuallyConfirmed, &rel.ConfirmedBy, &rel.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("listRelationshipsFor scan: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// ListComponentMembers returns the ids of every job in the same duplicate
// family as the given job, including the job itself. Relationships are
// star-shaped, so the family is the canonical plus its duplicates.
func (s *PostgresDuplicateStore) ListComponentMembers(ctx context.Context, jobID string) ([]string, error) {
	canonicalID := jobID
	err := s.pool.QueryRow(ctx,
		`SELECT canonical_job_id FROM duplicate_relationships WHERE duplicate_job_id = $1`,
		jobID,
	).Scan(&canonicalID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("listComponentMembers canonical lookup: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT duplicate_job_id FROM duplicate_relationships WHERE canonical_job_id = $1 ORDER BY duplicate_job_id`,
		canonicalID,
	)
	if err != nil {
		return nil, fmt.Errorf("listComponentMembers query: %w", err)
	}
	defer rows.Close()

	members := []string{canonicalID}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listComponentMembers scan: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// UpsertCanonicalMetadata stores the quality snapshot for a job.
func (s *PostgresDuplicateStore) UpsertCanonicalMetadata(ctx context.Context, meta *models.CanonicalMetadata) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO canonical_metadata (job_id, completeness, source_reliability, freshness,
		     overall_quality, is_canonical, duplicate_count, calculated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (job_id) DO UPDATE SET
		     completeness       = EXCLUDED.completeness,
		     source_reliability = EXCLUDED.source_reliability,
		     freshness          = EXCLUDED.freshness,
		     overall_quality    = EXCLUDED.overall_quality,
		     is_canonical       = EXCLUDED.is_canonical,
		     duplicate_count    = EXCLUDED.duplicate_count,
		     calculated_at      = EXCLUDED.calculated_at`,
		meta.JobID, meta.Completeness, meta.SourceReliability, meta.Freshness,
		meta.OverallQuality, meta.IsCanonical, meta.DuplicateCount, meta.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsertCanonicalMetadata: %w", err)
	}
	return nil
}
