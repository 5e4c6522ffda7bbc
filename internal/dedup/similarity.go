package dedup

import (
	"strings"

	"applytrack-utils/pkg/models"
)

// Weights combine per-field scores into the overall similarity. They must
// sum to 1.0.
type Weights struct {
	Title       float64
	Company     float64
	Location    float64
	Description float64
}

// DefaultWeights encode that title and company separate genuinely different
// postings more reliably than location or description, which are often
// identical across a company's many openings.
var DefaultWeights = Weights{
	Title:       0.35,
	Company:     0.25,
	Location:    0.20,
	Description: 0.20,
}

// FieldScores holds the per-field and combined similarity between two jobs,
// all on a 0-100 scale.
type FieldScores struct {
	Title       float64
	Company     float64
	Location    float64
	Description float64
	Overall     float64
	Method      models.DetectionMethod
}

// normalizeField case-folds and collapses whitespace before comparison.
func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// StringSimilarity computes a normalized edit-distance similarity between two
// short fields, returning 0-100. Empty-vs-empty is a full match: absence of
// data does not itself signal dissimilarity. Empty-vs-non-empty is 0.
func StringSimilarity(a, b string) float64 {
	a = normalizeField(a)
	b = normalizeField(b)

	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	dist := levenshtein(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}

	return (1 - float64(dist)/float64(maxLen)) * 100
}

// TokenSetSimilarity computes Jaccard similarity over word sets, returning
// 0-100. Long, noisy free text benefits from set overlap rather than
// character edit distance.
func TokenSetSimilarity(a, b string) float64 {
	a = normalizeField(a)
	b = normalizeField(b)

	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	set1 := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		set1[w] = true
	}
	set2 := make(map[string]bool)
	for _, w := range strings.Fields(b) {
		set2[w] = true
	}

	intersection := 0
	union := len(set1)
	for w := range set2 {
		if set1[w] {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union) * 100
}

// CompareJobs scores a pair of job records field by field and combines the
// scores into a weighted overall similarity. Byte-identical posting URLs are
// an authoritative signal and short-circuit to a full match.
func CompareJobs(a, b *models.JobRecord) FieldScores {
	return CompareJobsWeighted(a, b, DefaultWeights)
}

// CompareJobsWeighted is CompareJobs with caller-supplied field weights.
func CompareJobsWeighted(a, b *models.JobRecord, w Weights) FieldScores {
	scores := FieldScores{
		Title:       StringSimilarity(a.Title, b.Title),
		Company:     StringSimilarity(a.Company, b.Company),
		Location:    StringSimilarity(a.Location, b.Location),
		Description: TokenSetSimilarity(a.Description, b.Description),
		Method:      models.DetectionFuzzyMatch,
	}

	if a.PostingURL != "" && a.PostingURL == b.PostingURL {
		scores.Overall = 100
		scores.Method = models.DetectionURLMatch
		return scores
	}

	scores.Overall = scores.Title*w.Title +
		scores.Company*w.Company +
		scores.Location*w.Location +
		scores.Description*w.Description

	return scores
}

// levenshtein computes the edit distance between two strings using a
// two-row rolling buffer.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
