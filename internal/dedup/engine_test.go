package dedup_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"applytrack-utils/internal/config"
	"applytrack-utils/internal/dedup"
	"applytrack-utils/pkg/models"
	"applytrack-utils/pkg/utils"
)

// memStore is an in-memory JobStore + DuplicateStore for engine tests.
type memStore struct {
	jobs map[string]*models.JobRecord
	rels map[string]models.DuplicateRelationship // keyed by duplicate job id
	meta map[string]models.CanonicalMetadata
}

func newMemStore(jobs ...*models.JobRecord) *memStore {
	s := &memStore{
		jobs: make(map[string]*models.JobRecord),
		rels: make(map[string]models.DuplicateRelationship),
		meta: make(map[string]models.CanonicalMetadata),
	}
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return s
}

func (s *memStore) ListActiveJobs(_ context.Context, userID string) ([]*models.JobRecord, error) {
	var out []*models.JobRecord
	for _, job := range s.jobs {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetJob(_ context.Context, jobID string) (*models.JobRecord, error) {
	return s.jobs[jobID], nil
}

func (s *memStore) UpdateCanonicalFlag(_ context.Context, jobID string, canonical bool) error {
	if job, ok := s.jobs[jobID]; ok {
		job.IsCanonical = canonical
	}
	return nil
}

func (s *memStore) UpdateDuplicateCount(_ context.Context, jobID string, count int) error {
	if job, ok := s.jobs[jobID]; ok {
		job.DuplicateCount = count
	}
	return nil
}

func (s *memStore) ListCanonicalJobs(_ context.Context, userID string, page, pageSize int) ([]*models.JobRecord, error) {
	var out []*models.JobRecord
	for _, job := range s.jobs {
		if job.UserID != userID {
			continue
		}
		if _, isDup := s.rels[job.ID]; isDup {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	start := (page - 1) * pageSize
	if start >= len(out) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (s *memStore) InsertRelationship(_ context.Context, rel *models.DuplicateRelationship) error {
	s.rels[rel.DuplicateJobID] = *rel
	return nil
}

func (s *memStore) DeleteRelationship(_ context.Context, canonicalID, duplicateID string) error {
	if rel, ok := s.rels[duplicateID]; ok && rel.CanonicalJobID == canonicalID {
		delete(s.rels, duplicateID)
	}
	return nil
}

func (s *memStore) ListRelationshipsFor(_ context.Context, jobID string) ([]models.DuplicateRelationship, error) {
	var out []models.DuplicateRelationship
	for _, rel := range s.rels {
		if rel.CanonicalJobID == jobID || rel.DuplicateJobID == jobID {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DuplicateJobID < out[j].DuplicateJobID })
	return out, nil
}

func (s *memStore) ListComponentMembers(_ context.Context, jobID string) ([]string, error) {
	canonicalID := jobID
	if rel, ok := s.rels[jobID]; ok {
		canonicalID = rel.CanonicalJobID
	}
	members := []string{canonicalID}
	for _, rel := range s.rels {
		if rel.CanonicalJobID == canonicalID {
			members = append(members, rel.DuplicateJobID)
		}
	}
	sort.Strings(members[1:])
	return members, nil
}

func (s *memStore) UpsertCanonicalMetadata(_ context.Context, meta *models.CanonicalMetadata) error {
	s.meta[meta.JobID] = *meta
	return nil
}

// memLocker is an in-memory UserLocker.
type memLocker struct {
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Acquire(_ context.Context, userID string, _ time.Duration) (bool, error) {
	if l.held[userID] {
		return false, nil
	}
	l.held[userID] = true
	return true, nil
}

func (l *memLocker) Release(_ context.Context, userID string) error {
	delete(l.held, userID)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Dedup.StorageThreshold = 50
	cfg.Dedup.TitleWeight = 0.35
	cfg.Dedup.CompanyWeight = 0.25
	cfg.Dedup.LocationWeight = 0.20
	cfg.Dedup.DescWeight = 0.20
	cfg.Dedup.FreshnessHorizon = 90 * 24 * time.Hour
	cfg.Dedup.LockTTL = 5 * time.Minute
	return cfg
}

func newTestEngine(store *memStore) (*dedup.Engine, *memLocker) {
	locker := newMemLocker()
	return dedup.NewEngine(testConfig(), store, store, locker), locker
}

func acmeJobs(now time.Time) []*models.JobRecord {
	return []*models.JobRecord{
		{
			ID: "j1", UserID: "u1",
			Title: "Senior Backend Engineer", Company: "Acme Inc",
			Location: "Berlin", Description: "build and run go services",
			Source: models.SourceManual, PostedAt: now.Add(-24 * time.Hour),
		},
		{
			ID: "j2", UserID: "u1",
			Title: "Senior Backend Engineer", Company: "Acme, Inc.",
			Location: "Berlin", Description: "build and run go services",
			Source: models.SourceAggregator, PostedAt: now.Add(-48 * time.Hour),
		},
		{
			ID: "j3", UserID: "u1",
			Title: "Office Accountant", Company: "Acme Inc",
			Location: "Munich", Description: "quarterly reporting and payroll",
			Source: models.SourcePrimary, PostedAt: now.Add(-24 * time.Hour),
		},
	}
}

// ── DetectDuplicates ───────────────────────────────────────────────────────

func TestDetectDuplicates_FindsNearDuplicatePair(t *testing.T) {
	now := time.Now()
	store := newMemStore(acmeJobs(now)...)
	engine, _ := newTestEngine(store)

	result, err := engine.DetectDuplicates(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalProcessed != 3 {
		t.Errorf("total processed = %d, want 3", result.TotalProcessed)
	}
	if result.DuplicatesFound != 1 {
		t.Errorf("duplicates found = %d, want 1", result.DuplicatesFound)
	}
	if result.CanonicalIdentified != 1 {
		t.Errorf("canonical components = %d, want 1", result.CanonicalIdentified)
	}

	// The manual source posting wins the election over the aggregator copy.
	rel, ok := store.rels["j2"]
	if !ok {
		t.Fatal("expected j2 to be recorded as a duplicate")
	}
	if rel.CanonicalJobID != "j1" {
		t.Errorf("canonical = %s, want j1", rel.CanonicalJobID)
	}
	if rel.DetectionMethod != models.DetectionFuzzyMatch {
		t.Errorf("detection method = %s, want fuzzy_match", rel.DetectionMethod)
	}
	if rel.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", rel.Confidence)
	}

	if !store.jobs["j1"].IsCanonical || store.jobs["j1"].DuplicateCount != 1 {
		t.Errorf("j1 canonical=%v count=%d, want true/1",
			store.jobs["j1"].IsCanonical, store.jobs["j1"].DuplicateCount)
	}
	if store.jobs["j2"].IsCanonical {
		t.Error("j2 must not be canonical")
	}

	// The unrelated accountant role stays a singleton canonical.
	if !store.jobs["j3"].IsCanonical || store.jobs["j3"].DuplicateCount != 0 {
		t.Errorf("j3 canonical=%v count=%d, want true/0",
			store.jobs["j3"].IsCanonical, store.jobs["j3"].DuplicateCount)
	}
}

func TestDetectDuplicates_URLMatchIsAuthoritative(t *testing.T) {
	now := time.Now()
	store := newMemStore(
		&models.JobRecord{
			ID: "a", UserID: "u1",
			Title: "Platform Engineer", Company: "Globex",
			PostingURL: "https://jobs.example.com/42",
			Source:     models.SourcePrimary, PostedAt: now,
		},
		&models.JobRecord{
			ID: "b", UserID: "u1",
			Title: "Infrastructure Engineer", Company: "Globex Corp",
			PostingURL: "https://jobs.example.com/42",
			Source:     models.SourceAggregator, PostedAt: now.Add(-time.Hour),
		},
	)
	engine, _ := newTestEngine(store)

	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rel, ok := store.rels["b"]
	if !ok {
		t.Fatal("expected b to be recorded as a duplicate")
	}
	if rel.DetectionMethod != models.DetectionURLMatch {
		t.Errorf("detection method = %s, want url_match", rel.DetectionMethod)
	}
	if rel.OverallScore != 100 {
		t.Errorf("overall score = %v, want 100", rel.OverallScore)
	}
	if rel.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", rel.Confidence)
	}
}

func TestDetectDuplicates_FallbackBlockComparedAgainstCompanyBlocks(t *testing.T) {
	now := time.Now()
	store := newMemStore(
		&models.JobRecord{
			ID: "a", UserID: "u1",
			Title: "Platform Engineer", Company: "Globex",
			PostingURL: "https://jobs.example.com/42",
			Source:     models.SourcePrimary, PostedAt: now,
		},
		&models.JobRecord{
			ID: "b", UserID: "u1",
			Title: "Platform Engineer", Company: "",
			PostingURL: "https://jobs.example.com/42",
			Source:     models.SourceAggregator, PostedAt: now.Add(-time.Hour),
		},
	)
	engine, _ := newTestEngine(store)

	result, err := engine.DetectDuplicates(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.DuplicatesFound != 1 {
		t.Fatalf("duplicates found = %d, want 1", result.DuplicatesFound)
	}
	rel, ok := store.rels["b"]
	if !ok {
		t.Fatal("expected the company-less job to be recorded as a duplicate")
	}
	if rel.DetectionMethod != models.DetectionURLMatch {
		t.Errorf("detection method = %s, want url_match", rel.DetectionMethod)
	}
}

func TestDetectDuplicates_OneCanonicalPerComponent(t *testing.T) {
	now := time.Now()
	store := newMemStore(
		&models.JobRecord{
			ID: "a", UserID: "u1", Title: "Data Engineer", Company: "Initech",
			Location: "Remote", Description: "pipelines in go and sql",
			Source: models.SourcePrimary, PostedAt: now,
		},
		&models.JobRecord{
			ID: "b", UserID: "u1", Title: "Data Engineer", Company: "Initech",
			Location: "Remote", Description: "pipelines in go and sql",
			Source: models.SourceSecondary, PostedAt: now,
		},
		&models.JobRecord{
			ID: "c", UserID: "u1", Title: "Data Engineer", Company: "Initech Ltd",
			Location: "Remote", Description: "pipelines in go and sql",
			Source: models.SourceAggregator, PostedAt: now,
		},
	)
	engine, _ := newTestEngine(store)

	result, err := engine.DetectDuplicates(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DuplicatesFound != 2 {
		t.Errorf("duplicates found = %d, want 2", result.DuplicatesFound)
	}

	canonicals := 0
	for _, job := range store.jobs {
		if job.IsCanonical {
			canonicals++
		}
	}
	if canonicals != 1 {
		t.Errorf("canonical count = %d, want exactly 1", canonicals)
	}

	// Both duplicates point at the same canonical.
	targets := make(map[string]bool)
	for _, rel := range store.rels {
		targets[rel.CanonicalJobID] = true
	}
	if len(targets) != 1 {
		t.Errorf("duplicates point at %d distinct canonicals, want 1", len(targets))
	}
}

func TestDetectDuplicates_ConcurrentSweepRejected(t *testing.T) {
	now := time.Now()
	store := newMemStore(acmeJobs(now)...)
	engine, locker := newTestEngine(store)

	locker.held["u1"] = true
	_, err := engine.DetectDuplicates(context.Background(), "u1")
	if !utils.IsConflictError(err) {
		t.Fatalf("expected conflict error while lock held, got %v", err)
	}
}

func TestDetectDuplicates_LockReleasedAfterSweep(t *testing.T) {
	now := time.Now()
	store := newMemStore(acmeJobs(now)...)
	engine, locker := newTestEngine(store)

	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if locker.held["u1"] {
		t.Error("lock still held after sweep completed")
	}
	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
}

func TestDetectDuplicates_RerunIsStable(t *testing.T) {
	now := time.Now()
	store := newMemStore(acmeJobs(now)...)
	engine, _ := newTestEngine(store)

	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	firstCanonical := store.rels["j2"].CanonicalJobID

	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if len(store.rels) != 1 {
		t.Errorf("relationship count after rerun = %d, want 1", len(store.rels))
	}
	if store.rels["j2"].CanonicalJobID != firstCanonical {
		t.Errorf("canonical changed across reruns: %s then %s",
			firstCanonical, store.rels["j2"].CanonicalJobID)
	}
}

func TestDetectDuplicates_EmptyUserID(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)

	_, err := engine.DetectDuplicates(context.Background(), "")
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// ── MergeManually / Unlink ─────────────────────────────────────────────────

func TestMergeManually_RecordsManualEdge(t *testing.T) {
	now := time.Now()
	store := newMemStore(
		&models.JobRecord{
			ID: "a", UserID: "u1", Title: "SRE", Company: "Hooli",
			Source: models.SourceAggregator, PostedAt: now,
		},
		&models.JobRecord{
			ID: "b", UserID: "u1", Title: "Site Reliability Engineer", Company: "Hooli Inc",
			Source: models.SourceManual, PostedAt: now,
		},
	)
	engine, _ := newTestEngine(store)

	// The user picks "a" as canonical even though "b" scores higher quality.
	if err := engine.MergeManually(context.Background(), "a", "b", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rel, ok := store.rels["b"]
	if !ok {
		t.Fatal("expected manual relationship for b")
	}
	if !rel.ManuallyConfirmed || rel.DetectionMethod != models.DetectionManual {
		t.Errorf("edge confirmed=%v method=%s, want true/manual", rel.ManuallyConfirmed, rel.DetectionMethod)
	}
	if rel.ConfirmedBy != "u1" {
		t.Errorf("confirmed by = %q, want u1", rel.ConfirmedBy)
	}

	// The manual choice pins the canonical regardless of quality.
	if !store.jobs["a"].IsCanonical {
		t.Error("manually chosen canonical lost the flag")
	}
	if store.jobs["b"].IsCanonical {
		t.Error("manually merged duplicate still flagged canonical")
	}
}

func TestMergeManually_SurvivesAutoSweep(t *testing.T) {
	now := time.Now()
	store := newMemStore(
		&models.JobRecord{
			ID: "a", UserID: "u1", Title: "SRE", Company: "Hooli",
			Location: "Remote", Description: "keep the lights on",
			Source: models.SourceAggregator, PostedAt: now,
		},
		&models.JobRecord{
			ID: "b", UserID: "u1", Title: "SRE", Company: "Hooli",
			Location: "Remote", Description: "keep the lights on",
			Source: models.SourceManual, PostedAt: now,
		},
	)
	engine, _ := newTestEngine(store)

	if err := engine.MergeManually(context.Background(), "a", "b", "u1"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	rel := store.rels["b"]
	if !rel.ManuallyConfirmed {
		t.Error("auto sweep overwrote the manual relationship")
	}
	if rel.CanonicalJobID != "a" {
		t.Errorf("canonical after sweep = %s, want manually pinned a", rel.CanonicalJobID)
	}
	if !store.jobs["a"].IsCanonical {
		t.Error("auto sweep flipped the manually pinned canonical flag")
	}
}

func TestMergeManually_SelfMergeRejected(t *testing.T) {
	store := newMemStore(&models.JobRecord{ID: "a", UserID: "u1"})
	engine, _ := newTestEngine(store)

	err := engine.MergeManually(context.Background(), "a", "a", "u1")
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMergeManually_ForeignJobRejected(t *testing.T) {
	store := newMemStore(
		&models.JobRecord{ID: "a", UserID: "u1"},
		&models.JobRecord{ID: "b", UserID: "u2"},
	)
	engine, _ := newTestEngine(store)

	err := engine.MergeManually(context.Background(), "a", "b", "u1")
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnlink_RemovesEdgeAndRecomputes(t *testing.T) {
	now := time.Now()
	store := newMemStore(acmeJobs(now)...)
	engine, _ := newTestEngine(store)

	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if err := engine.Unlink(context.Background(), "j1", "j2", "u1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	if _, ok := store.rels["j2"]; ok {
		t.Error("relationship still present after unlink")
	}
	if !store.jobs["j1"].IsCanonical || store.jobs["j1"].DuplicateCount != 0 {
		t.Errorf("j1 canonical=%v count=%d after unlink, want true/0",
			store.jobs["j1"].IsCanonical, store.jobs["j1"].DuplicateCount)
	}
	if !store.jobs["j2"].IsCanonical || store.jobs["j2"].DuplicateCount != 0 {
		t.Errorf("j2 canonical=%v count=%d after unlink, want true/0",
			store.jobs["j2"].IsCanonical, store.jobs["j2"].DuplicateCount)
	}
}

func TestUnlink_MissingEdge(t *testing.T) {
	store := newMemStore(
		&models.JobRecord{ID: "a", UserID: "u1"},
		&models.JobRecord{ID: "b", UserID: "u1"},
	)
	engine, _ := newTestEngine(store)

	err := engine.Unlink(context.Background(), "a", "b", "u1")
	if !utils.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

// ── GetDuplicatesForJob / ListCanonicalOnly ────────────────────────────────

func TestGetDuplicatesForJob_ReturnsFamily(t *testing.T) {
	now := time.Now()
	store := newMemStore(acmeJobs(now)...)
	engine, _ := newTestEngine(store)

	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	family, err := engine.GetDuplicatesForJob(context.Background(), "j1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if family.Job.ID != "j1" {
		t.Errorf("family job = %s, want j1", family.Job.ID)
	}
	if len(family.Duplicates) != 1 || family.Duplicates[0].ID != "j2" {
		t.Fatalf("family duplicates = %v, want [j2]", family.Duplicates)
	}
	if len(family.Relationships) != 1 {
		t.Errorf("relationship count = %d, want 1", len(family.Relationships))
	}

	// Lookup from the duplicate side sees the same family.
	fromDup, err := engine.GetDuplicatesForJob(context.Background(), "j2", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fromDup.Duplicates) != 1 || fromDup.Duplicates[0].ID != "j1" {
		t.Fatalf("family from duplicate side = %v, want [j1]", fromDup.Duplicates)
	}
}

func TestGetDuplicatesForJob_ForeignJobReadsAsMissing(t *testing.T) {
	store := newMemStore(&models.JobRecord{ID: "a", UserID: "u2"})
	engine, _ := newTestEngine(store)

	_, err := engine.GetDuplicatesForJob(context.Background(), "a", "u1")
	if !utils.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListCanonicalOnly_HidesDuplicates(t *testing.T) {
	now := time.Now()
	store := newMemStore(acmeJobs(now)...)
	engine, _ := newTestEngine(store)

	if _, err := engine.DetectDuplicates(context.Background(), "u1"); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	jobs, err := engine.ListCanonicalOnly(context.Background(), "u1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := make(map[string]bool)
	for _, job := range jobs {
		ids[job.ID] = true
	}
	if !ids["j1"] || !ids["j3"] {
		t.Errorf("canonical listing = %v, want j1 and j3", ids)
	}
	if ids["j2"] {
		t.Error("duplicate j2 leaked into the canonical listing")
	}
}
