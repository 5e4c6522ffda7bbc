package models

import "time"

// DedupRunResponse wraps a completed sweep with request tracking metadata.
type DedupRunResponse struct {
	Success   bool                 `json:"success"`
	Result    *DeduplicationResult `json:"result,omitempty"`
	RequestID string               `json:"request_id"`
}

// ClassifyResponse wraps a single classification verdict.
type ClassifyResponse struct {
	Success        bool                  `json:"success"`
	Result         *ClassificationResult `json:"result,omitempty"`
	ProcessingTime time.Duration         `json:"processing_time"`
	RequestID      string                `json:"request_id"`
}

// ClassifyBatchResponse wraps a batch classification run.
type ClassifyBatchResponse struct {
	Success        bool                       `json:"success"`
	Result         *BatchClassificationResult `json:"result,omitempty"`
	ProcessingTime time.Duration              `json:"processing_time"`
	RequestID      string                     `json:"request_id"`
}

// JobListResponse is the paginated canonical-only listing.
type JobListResponse struct {
	Jobs     []*JobRecord `json:"jobs"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
