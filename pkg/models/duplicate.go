package models

import "time"

// DetectionMethod records how a duplicate relationship was established.
type DetectionMethod string

const (
	DetectionFuzzyMatch DetectionMethod = "fuzzy_match"
	DetectionURLMatch   DetectionMethod = "url_match"
	DetectionManual     DetectionMethod = "manual"
)

// ConfidenceLevel is the tier derived from the overall similarity score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"   // overall >= 85
	ConfidenceMedium ConfidenceLevel = "medium" // overall >= 70
	ConfidenceLow    ConfidenceLevel = "low"    // overall >= 50
)

// ConfidenceForScore maps an overall similarity score to its tier. Scores
// below the storage threshold (50) return an empty level and must not be
// persisted.
func ConfidenceForScore(overall float64) ConfidenceLevel {
	switch {
	case overall >= 85:
		return ConfidenceHigh
	case overall >= 70:
		return ConfidenceMedium
	case overall >= 50:
		return ConfidenceLow
	default:
		return ""
	}
}

// DuplicateRelationship is a directed edge from a duplicate job to its
// canonical representative. A duplicate id appears in at most one active
// relationship, and canonical and duplicate ids are never equal.
type DuplicateRelationship struct {
	ID                string          `json:"id"`
	CanonicalJobID    string          `json:"canonical_job_id"`
	DuplicateJobID    string          `json:"duplicate_job_id"`
	TitleScore        float64         `json:"title_score"`
	CompanyScore      float64         `json:"company_score"`
	LocationScore     float64         `json:"location_score"`
	DescriptionScore  float64         `json:"description_score"`
	OverallScore      float64         `json:"overall_score"`
	Confidence        ConfidenceLevel `json:"confidence"`
	DetectionMethod   DetectionMethod `json:"detection_method"`
	ManuallyConfirmed bool            `json:"manually_confirmed"`
	ConfirmedBy       string          `json:"confirmed_by,omitempty"`
	DetectedAt        time.Time       `json:"detected_at"`
}

// CanonicalMetadata is the per-job quality snapshot used for canonical
// election. Recomputed whenever the job's duplicate set changes.
type CanonicalMetadata struct {
	JobID             string    `json:"job_id"`
	Completeness      float64   `json:"completeness"`
	SourceReliability float64   `json:"source_reliability"`
	Freshness         float64   `json:"freshness"`
	OverallQuality    float64   `json:"overall_quality"`
	IsCanonical       bool      `json:"is_canonical"`
	DuplicateCount    int       `json:"duplicate_count"`
	CalculatedAt      time.Time `json:"calculated_at"`
}

// DeduplicationResult summarizes a completed deduplication sweep.
type DeduplicationResult struct {
	TotalProcessed      int           `json:"total_processed"`
	DuplicatesFound     int           `json:"duplicates_found"`
	CanonicalIdentified int           `json:"canonical_jobs_identified"`
	Duration            time.Duration `json:"duration"`
}

// DuplicateFamily is the read model returned for a job's duplicate lookup.
type DuplicateFamily struct {
	Job           *JobRecord              `json:"job"`
	Duplicates    []*JobRecord            `json:"duplicates"`
	Relationships []DuplicateRelationship `json:"relationships"`
}
