package dedup

import (
	"time"

	"applytrack-utils/pkg/models"
)

// Weights for the overall quality score. Freshness matters for "is this
// still open" but must not dominate an otherwise rich, reliable posting.
const (
	completenessWeight = 0.4
	reliabilityWeight  = 0.3
	freshnessWeight    = 0.3
)

// trackedFieldCount is the number of fields counted toward completeness:
// title, company, location, description, salary range, URL.
const trackedFieldCount = 6

// sourceReliability is a deterministic ranking by source trustworthiness.
// Manually entered jobs outrank every scraped source; aggregators rank
// lowest because they re-list with lossy normalization.
var sourceReliability = map[models.JobSource]float64{
	models.SourceManual:     100,
	models.SourcePrimary:    90,
	models.SourceSecondary:  85,
	models.SourceAggregator: 70,
	models.SourceUnknown:    50,
}

// SourceReliability returns the static reliability score for a source.
func SourceReliability(source models.JobSource) float64 {
	if score, ok := sourceReliability[source]; ok {
		return score
	}
	return sourceReliability[models.SourceUnknown]
}

// Completeness returns the percentage of tracked fields that are non-empty.
func Completeness(job *models.JobRecord) float64 {
	filled := 0
	if job.Title != "" {
		filled++
	}
	if job.Company != "" {
		filled++
	}
	if job.Location != "" {
		filled++
	}
	if job.Description != "" {
		filled++
	}
	if job.HasSalary() {
		filled++
	}
	if job.PostingURL != "" {
		filled++
	}
	return float64(filled) / trackedFieldCount * 100
}

// Freshness is 100 at posting time and decays linearly to 0 over the
// horizon, floored at 0 for anything older.
func Freshness(postedAt time.Time, now time.Time, horizon time.Duration) float64 {
	if horizon <= 0 || postedAt.IsZero() {
		return 0
	}
	age := now.Sub(postedAt)
	if age <= 0 {
		return 100
	}
	if age >= horizon {
		return 0
	}
	return (1 - float64(age)/float64(horizon)) * 100
}

// QualityScore computes the canonical-worthiness snapshot for a single job.
func QualityScore(job *models.JobRecord, now time.Time, horizon time.Duration) models.CanonicalMetadata {
	completeness := Completeness(job)
	reliability := SourceReliability(job.Source)
	freshness := Freshness(job.PostedAt, now, horizon)

	return models.CanonicalMetadata{
		JobID:             job.ID,
		Completeness:      completeness,
		SourceReliability: reliability,
		Freshness:         freshness,
		OverallQuality: completeness*completenessWeight +
			reliability*reliabilityWeight +
			freshness*freshnessWeight,
		CalculatedAt: now,
	}
}
