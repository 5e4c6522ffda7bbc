package dedup

import (
	"strings"

	"applytrack-utils/pkg/models"
)

// fallbackBlockKey collects jobs whose company name cannot be normalized.
// The engine compares fallback members against every other job, not just
// among themselves, so an authoritative signal like a shared posting URL is
// never missed because the employer field was empty.
const fallbackBlockKey = "__unblocked__"

// legalSuffixes are stripped from company names before blocking so that
// "Acme Inc" and "Acme, Inc." land in the same block.
var legalSuffixes = []string{
	"inc", "incorporated", "llc", "llp", "ltd", "limited",
	"corp", "corporation", "co", "company", "gmbh", "plc", "sa",
}

// NormalizeCompany produces the block key for a company name: case-folded,
// punctuation-stripped, legal suffixes removed.
func NormalizeCompany(company string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(company) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 1 && isLegalSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}

	return strings.Join(words, " ")
}

func isLegalSuffix(word string) bool {
	for _, s := range legalSuffixes {
		if word == s {
			return true
		}
	}
	return false
}

// BuildBlocks partitions jobs into comparison blocks keyed by normalized
// company name. Blocking reduces the pairwise comparison count from O(n^2)
// over the whole set to O(n^2) within each block, since duplicates only ever
// arise from the same employer scraped through multiple sources. The index is
// built once per run and discarded afterwards.
func BuildBlocks(jobs []*models.JobRecord) map[string][]*models.JobRecord {
	blocks := make(map[string][]*models.JobRecord)
	for _, job := range jobs {
		key := NormalizeCompany(job.Company)
		if key == "" {
			key = fallbackBlockKey
		}
		blocks[key] = append(blocks[key], job)
	}
	return blocks
}
