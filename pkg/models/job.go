package models

import "time"

// JobSource identifies where a job record was ingested from.
type JobSource string

const (
	SourceManual     JobSource = "manual"
	SourcePrimary    JobSource = "primary_board"
	SourceSecondary  JobSource = "secondary_board"
	SourceAggregator JobSource = "aggregator"
	SourceUnknown    JobSource = "unknown"
)

// JobRecord represents a scraped or manually entered job posting. Scraped
// fields are immutable after ingestion; only the administrative fields
// (IsCanonical, DuplicateCount) are updated by the deduplication engine.
type JobRecord struct {
	ID             string       `json:"id" validate:"required"`
	UserID         string       `json:"user_id" validate:"required"`
	Title          string       `json:"title"`
	Company        string       `json:"company"`
	Location       string       `json:"location"`
	Description    string       `json:"description"`
	Source         JobSource    `json:"source"`
	PostingURL     string       `json:"posting_url,omitempty"`
	Salary         *SalaryRange `json:"salary,omitempty"`
	PostedAt       time.Time    `json:"posted_at"`
	IsCanonical    bool         `json:"is_canonical"`
	DuplicateCount int          `json:"duplicate_count"`
	CreatedAt      time.Time    `json:"created_at"`
}

// SalaryRange represents the salary information for a job posting
type SalaryRange struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
	Period   string `json:"period"` // hourly, monthly, yearly
}

// HasSalary reports whether the posting carries any salary information.
func (j *JobRecord) HasSalary() bool {
	return j.Salary != nil && (j.Salary.Min > 0 || j.Salary.Max > 0)
}
