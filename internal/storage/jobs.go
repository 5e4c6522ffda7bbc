package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"applytrack-utils/pkg/models"
)

// PostgresJobStore persists job records. Expected schema:
//
//	CREATE TABLE jobs (
//	    id              TEXT PRIMARY KEY,
//	    user_id         TEXT NOT NULL,
//	    title           TEXT NOT NULL DEFAULT '',
//	    company         TEXT NOT NULL DEFAULT '',
//	    location        TEXT NOT NULL DEFAULT '',
//	    description     TEXT NOT NULL DEFAULT '',
//	    source          TEXT NOT NULL DEFAULT 'unknown',
//	    posting_url     TEXT NOT NULL DEFAULT '',
//	    salary_min      INTEGER,
//	    salary_max      INTEGER,
//	    salary_currency TEXT,
//	    posted_at       TIMESTAMPTZ NOT NULL,
//	    is_canonical    BOOLEAN NOT NULL DEFAULT FALSE,
//	    duplicate_count INTEGER NOT NULL DEFAULT 0,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    archived_at     TIMESTAMPTZ
//	);
//	CREATE INDEX jobs_user_active_idx ON jobs (user_id) WHERE archived_at IS NULL;
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

// NewPostgresJobStore creates a job store backed by the given pool.
func NewPostgresJobStore(pool *pgxpool.Pool) *PostgresJobStore {
	return &PostgresJobStore{pool: pool}
}

const jobColumns = `id, user_id, title, company, location, description, source, posting_url,
       salary_min, salary_max, salary_currency, posted_at, is_canonical, duplicate_count, created_at`

// ListActiveJobs returns all non-archived jobs for a user.
func (s *PostgresJobStore) ListActiveJobs(ctx context.Context, userID string) ([]*models.JobRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 AND archived_at IS NULL ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listActiveJobs query: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// GetJob fetches a single job by id.
func (s *PostgresJobStore) GetJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		jobID,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Missing reads as nil so callers decide between 404 and 500.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getJob scan: %w", err)
	}
	return job, nil
}

// UpdateCanonicalFlag sets the canonical marker for a job.
func (s *PostgresJobStore) UpdateCanonicalFlag(ctx context.Context, jobID string, canonical bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET is_canonical = $1 WHERE id = $2`,
		canonical, jobID,
	)
	if err != nil {
		return fmt.Errorf("updateCanonicalFlag: %w", err)
	}
	return nil
}

// UpdateDuplicateCount sets the number of duplicates folded under a job.
func (s *PostgresJobStore) UpdateDuplicateCount(ctx context.Context, jobID string, count int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET duplicate_count = $1 WHERE id = $2`,
		count, jobID,
	)
	if err != nil {
		return fmt.Errorf("updateDuplicateCount: %w", err)
	}
	return nil
}

// ListCanonicalJobs returns one page of the user's jobs with known duplicates
// collapsed away: jobs that are not the duplicate side of any relationship.
func (s *PostgresJobStore) ListCanonicalJobs(ctx context.Context, userID string, page, pageSize int) ([]*models.JobRecord, error) {
	offset := (page - 1) * pageSize
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs j
		 WHERE j.user_id = $1 AND j.archived_at IS NULL
		   AND NOT EXISTS (
		     SELECT 1 FROM duplicate_relationships r WHERE r.duplicate_job_id = j.id
		   )
		 ORDER BY j.posted_at DESC, j.id
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listCanonicalJobs query: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListActiveUsers returns the ids of users with at least one non-archived
// job. The scheduled sweep iterates over this set.
func (s *PostgresJobStore) ListActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM jobs WHERE archived_at IS NULL ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listActiveUsers query: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listActiveUsers scan: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func scanJobs(rows pgx.Rows) ([]*models.JobRecord, error) {
	jobs := make([]*models.JobRecord, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("job scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*models.JobRecord, error) {
	var (
		job            models.JobRecord
		salMin, salMax *int
		salCur         *string
	)
	err := row.Scan(
		&job.ID, &job.UserID, &job.Title, &job.Company, &job.Location, &job.Description,
		&job.Source, &job.PostingURL,
		&salMin, &salMax, &salCur,
		&job.PostedAt, &job.IsCanonical, &job.DuplicateCount, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if salMin != nil || salMax != nil {
		job.Salary = &models.SalaryRange{}
		if salMin != nil {
			job.Salary.Min = *salMin
		}
		if salMax != nil {
			job.Salary.Max = *salMax
		}
		if salCur != nil {
			job.Salary.Currency = *salCur
		}
	}
	return &job, nil
}
