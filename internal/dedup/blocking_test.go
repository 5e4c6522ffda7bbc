package dedup_test

import (
	"testing"

	"applytrack-utils/internal/dedup"
	"applytrack-utils/pkg/models"
)

// ── NormalizeCompany ───────────────────────────────────────────────────────

func TestNormalizeCompany(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme Inc", "acme"},
		{"Acme, Inc.", "acme"},
		{"ACME INCORPORATED", "acme"},
		{"Acme GmbH", "acme"},
		{"Wayne Enterprises LLC", "wayne enterprises"},
		{"Initech Co Ltd", "initech"},
		{"Globex", "globex"},
		{"  Globex   Corporation  ", "globex"},
		{"", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := dedup.NormalizeCompany(c.in); got != c.want {
			t.Errorf("NormalizeCompany(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeCompany_KeepsLastWordWhenAllSuffixes(t *testing.T) {
	// A company actually named "Inc" must not normalize to nothing.
	if got := dedup.NormalizeCompany("Inc"); got != "inc" {
		t.Errorf("NormalizeCompany(\"Inc\") = %q, want \"inc\"", got)
	}
}

// ── BuildBlocks ────────────────────────────────────────────────────────────

func TestBuildBlocks_GroupsByNormalizedCompany(t *testing.T) {
	jobs := []*models.JobRecord{
		{ID: "1", Company: "Acme Inc"},
		{ID: "2", Company: "Acme, Inc."},
		{ID: "3", Company: "Globex"},
	}

	blocks := dedup.BuildBlocks(jobs)
	if len(blocks) != 2 {
		t.Fatalf("block count = %d, want 2", len(blocks))
	}
	if len(blocks["acme"]) != 2 {
		t.Errorf("acme block size = %d, want 2", len(blocks["acme"]))
	}
	if len(blocks["globex"]) != 1 {
		t.Errorf("globex block size = %d, want 1", len(blocks["globex"]))
	}
}

func TestBuildBlocks_UnparseableCompaniesShareFallback(t *testing.T) {
	jobs := []*models.JobRecord{
		{ID: "1", Company: ""},
		{ID: "2", Company: "???"},
		{ID: "3", Company: "Acme"},
	}

	blocks := dedup.BuildBlocks(jobs)
	var fallback []*models.JobRecord
	for key, block := range blocks {
		if key != "acme" {
			fallback = block
		}
	}
	if len(fallback) != 2 {
		t.Errorf("fallback block size = %d, want 2", len(fallback))
	}
}
