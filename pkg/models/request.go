package models

// DedupRunRequest triggers a deduplication sweep for a user.
type DedupRunRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// MergeRequest records a manual duplicate confirmation.
type MergeRequest struct {
	CanonicalJobID string `json:"canonical_job_id" validate:"required"`
	DuplicateJobID string `json:"duplicate_job_id" validate:"required"`
	UserID         string `json:"user_id" validate:"required"`
}

// UnlinkRequest removes a previously recorded duplicate relationship.
type UnlinkRequest struct {
	CanonicalJobID string `json:"canonical_job_id" validate:"required"`
	DuplicateJobID string `json:"duplicate_job_id" validate:"required"`
	UserID         string `json:"user_id" validate:"required"`
}

// ClassifyRequest asks for a single classification verdict.
type ClassifyRequest struct {
	UserID string       `json:"user_id" validate:"required"`
	JobID  string       `json:"job_id" validate:"required"`
	Kind   ArtifactKind `json:"kind" validate:"required,oneof=compatibility spam_verdict"`
}

// ClassifyBatchRequest asks for verdicts over a set of jobs.
type ClassifyBatchRequest struct {
	UserID string       `json:"user_id" validate:"required"`
	JobIDs []string     `json:"job_ids" validate:"required,min=1"`
	Kind   ArtifactKind `json:"kind" validate:"required,oneof=compatibility spam_verdict"`
}

// InvalidateRequest clears cached artifacts for a subject. When JobIDs is
// empty every artifact for the subject is removed.
type InvalidateRequest struct {
	UserID string   `json:"user_id" validate:"required"`
	JobIDs []string `json:"job_ids,omitempty"`
}
