package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTier implements the durable tier on Postgres. Rows are keyed by
// (subject_id, artifact_id, kind) so re-scoring the same pair overwrites
// rather than duplicates, and retained until explicitly invalidated.
//
// Schema:
//
//	CREATE TABLE classification_artifacts (
//	    subject_id  TEXT        NOT NULL,
//	    artifact_id TEXT        NOT NULL,
//	    kind        TEXT        NOT NULL,
//	    payload     JSONB       NOT NULL,
//	    cached_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (subject_id, artifact_id, kind)
//	);
type PostgresTier struct {
	pool *pgxpool.Pool
}

// NewPostgresTier wraps a verified pgx pool as the durable tier.
func NewPostgresTier(pool *pgxpool.Pool) *PostgresTier {
	return &PostgresTier{pool: pool}
}

func (t *PostgresTier) Get(ctx context.Context, k Key) ([]byte, time.Time, bool, error) {
	var payload []byte
	var cachedAt time.Time

	err := t.pool.QueryRow(ctx,
		`SELECT payload, cached_at FROM classification_artifacts
		 WHERE subject_id = $1 AND artifact_id = $2 AND kind = $3`,
		k.SubjectID, k.ArtifactID, string(k.Kind),
	).Scan(&payload, &cachedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("durable tier select: %w", err)
	}
	return payload, cachedAt, true, nil
}

func (t *PostgresTier) Upsert(ctx context.Context, k Key, value []byte) error {
	_, err := t.pool.Exec(ctx,
		`INSERT INTO classification_artifacts (subject_id, artifact_id, kind, payload, cached_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (subject_id, artifact_id, kind)
		 DO UPDATE SET payload = EXCLUDED.payload, cached_at = now()`,
		k.SubjectID, k.ArtifactID, string(k.Kind), value,
	)
	if err != nil {
		return fmt.Errorf("durable tier upsert: %w", err)
	}
	return nil
}

func (t *PostgresTier) Delete(ctx context.Context, k Key) error {
	_, err := t.pool.Exec(ctx,
		`DELETE FROM classification_artifacts
		 WHERE subject_id = $1 AND artifact_id = $2 AND kind = $3`,
		k.SubjectID, k.ArtifactID, string(k.Kind),
	)
	if err != nil {
		return fmt.Errorf("durable tier delete: %w", err)
	}
	return nil
}

func (t *PostgresTier) DeleteAllForSubject(ctx context.Context, subjectID string) error {
	_, err := t.pool.Exec(ctx,
		`DELETE FROM classification_artifacts WHERE subject_id = $1`,
		subjectID,
	)
	if err != nil {
		return fmt.Errorf("durable tier delete by subject: %w", err)
	}
	return nil
}
