package models

import "time"

// ArtifactKind namespaces cached classification artifacts so one cache
// serves both compatibility analyses and spam verdicts.
type ArtifactKind string

const (
	KindCompatibility ArtifactKind = "compatibility"
	KindSpamVerdict   ArtifactKind = "spam_verdict"
)

// CacheProvenance records which layer satisfied a classification request.
type CacheProvenance string

const (
	ProvenanceFastTier    CacheProvenance = "fast_tier"
	ProvenanceDurableTier CacheProvenance = "durable_tier"
	ProvenanceComputed    CacheProvenance = "computed"
)

// SpamCategory labels the primary reason a posting was flagged.
type SpamCategory string

const (
	SpamCategoryNone        SpamCategory = "none"
	SpamCategoryMLMScheme   SpamCategory = "mlm_scheme"
	SpamCategoryFeeUpfront  SpamCategory = "fee_upfront"
	SpamCategoryVagueRole   SpamCategory = "vague_role"
	SpamCategoryRecruitment SpamCategory = "recruitment_chain"
	SpamCategoryNeedsReview SpamCategory = "needs_review"
)

// SpamVerdict is the scorer's judgment on whether a posting is legitimate.
type SpamVerdict struct {
	IsSpam      bool         `json:"is_spam"`
	Probability float64      `json:"probability"`
	Category    SpamCategory `json:"category"`
	Signals     []string     `json:"signals,omitempty"`
	NeedsReview bool         `json:"needs_review"`
	Reason      string       `json:"reason,omitempty"`
}

// CompatibilityResult is the scorer's judgment of how well a user profile
// matches a posting.
type CompatibilityResult struct {
	Score          float64  `json:"score"`
	MatchedSkills  []string `json:"matched_skills,omitempty"`
	MissingSkills  []string `json:"missing_skills,omitempty"`
	Recommendation string   `json:"recommendation"` // strong_match, possible_match, weak_match
	Summary        string   `json:"summary,omitempty"`
}

// ClassificationResult is the tagged union stored in the classification
// cache. Exactly one of Spam or Compatibility is set, according to Kind.
type ClassificationResult struct {
	Kind          ArtifactKind         `json:"kind"`
	Spam          *SpamVerdict         `json:"spam,omitempty"`
	Compatibility *CompatibilityResult `json:"compatibility,omitempty"`
	Provenance    CacheProvenance      `json:"provenance"`
	CachedAt      time.Time            `json:"cached_at"`
}

// ConservativeSpamVerdict is the fallback used when the scorer fails: the
// posting is neither cleared nor condemned, it is queued for a human.
func ConservativeSpamVerdict(reason string) *SpamVerdict {
	return &SpamVerdict{
		IsSpam:      false,
		Probability: 0,
		Category:    SpamCategoryNeedsReview,
		NeedsReview: true,
		Reason:      reason,
	}
}

// ScoreInput is everything a scorer needs to produce one verdict. Profile is
// only set for compatibility scoring.
type ScoreInput struct {
	Kind    ArtifactKind `json:"kind"`
	Job     *JobRecord   `json:"job"`
	Profile *UserProfile `json:"profile,omitempty"`
}

// ConservativeResult wraps the per-kind fallback in the cacheable envelope.
// Used when a scorer call fails inside a batch so one bad input cannot block
// unrelated subjects.
func ConservativeResult(kind ArtifactKind, reason string) *ClassificationResult {
	result := &ClassificationResult{
		Kind:       kind,
		Provenance: ProvenanceComputed,
		CachedAt:   time.Now(),
	}
	switch kind {
	case KindSpamVerdict:
		result.Spam = ConservativeSpamVerdict(reason)
	default:
		result.Compatibility = &CompatibilityResult{
			Score:          0,
			Recommendation: "needs_review",
			Summary:        reason,
		}
	}
	return result
}

// BatchClassificationResult reports cache effectiveness for a batch run.
type BatchClassificationResult struct {
	Total    int                              `json:"total"`
	Cached   int                              `json:"cached"`
	Computed int                              `json:"computed"`
	Results  map[string]*ClassificationResult `json:"results"`
}
