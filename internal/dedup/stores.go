package dedup

import (
	"context"
	"time"

	"applytrack-utils/pkg/models"
)

// JobStore is the persistence collaborator for job records. All queries are
// scoped by owner.
type JobStore interface {
	ListActiveJobs(ctx context.Context, userID string) ([]*models.JobRecord, error)
	GetJob(ctx context.Context, jobID string) (*models.JobRecord, error)
	UpdateCanonicalFlag(ctx context.Context, jobID string, canonical bool) error
	UpdateDuplicateCount(ctx context.Context, jobID string, count int) error
	ListCanonicalJobs(ctx context.Context, userID string, page, pageSize int) ([]*models.JobRecord, error)
}

// DuplicateStore persists duplicate relationships and quality snapshots.
// InsertRelationship upserts on the duplicate job id, preserving the
// invariant that a job is a duplicate of at most one canonical at a time.
type DuplicateStore interface {
	InsertRelationship(ctx context.Context, rel *models.DuplicateRelationship) error
	DeleteRelationship(ctx context.Context, canonicalID, duplicateID string) error
	ListRelationshipsFor(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error)
	ListComponentMembers(ctx context.Context, jobID string) ([]string, error)
	UpsertCanonicalMetadata(ctx context.Context, meta *models.CanonicalMetadata) error
}

// UserLocker serializes deduplication sweeps per user. Acquire returns false
// when another sweep currently holds the lock.
type UserLocker interface {
	Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID string) error
}
