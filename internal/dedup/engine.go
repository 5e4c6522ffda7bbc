package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"applytrack-utils/internal/config"
	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/models"
	"applytrack-utils/pkg/utils"
)

// Engine orchestrates blocking, pairwise similarity scoring and canonical
// election over a user's job set. Sweeps for the same user are serialized
// through the UserLocker; sweeps for different users are independent.
type Engine struct {
	cfg    *config.Config
	jobs   JobStore
	dups   DuplicateStore
	locker UserLocker
	logger logging.Logger
	now    func() time.Time
}

// scoredPair is a qualifying comparison inside a block.
type scoredPair struct {
	aID, bID string
	scores   FieldScores
}

// NewEngine creates a new deduplication engine instance
func NewEngine(cfg *config.Config, jobs JobStore, dups DuplicateStore, locker UserLocker) *Engine {
	return &Engine{
		cfg:    cfg,
		jobs:   jobs,
		dups:   dups,
		locker: locker,
		logger: logging.GetGlobalLogger(),
		now:    time.Now,
	}
}

func (e *Engine) weights() Weights {
	return Weights{
		Title:       e.cfg.Dedup.TitleWeight,
		Company:     e.cfg.Dedup.CompanyWeight,
		Location:    e.cfg.Dedup.LocationWeight,
		Description: e.cfg.Dedup.DescWeight,
	}
}

// DetectDuplicates runs a full deduplication sweep for a user: block, score
// every pair once within each block, record qualifying relationships, then
// elect one canonical per connected component. Canonical status is only
// recomputed after all pairwise comparisons are known, so no intermediate
// inconsistent state is ever persisted.
func (e *Engine) DetectDuplicates(ctx context.Context, userID string) (*models.DeduplicationResult, error) {
	if userID == "" {
		return nil, utils.NewValidationError("user id is required")
	}

	acquired, err := e.locker.Acquire(ctx, userID, e.cfg.Dedup.LockTTL)
	if err != nil {
		return nil, utils.NewInternalServerError(fmt.Sprintf("failed to acquire dedup lock: %v", err))
	}
	if !acquired {
		return nil, utils.NewConflictError("a deduplication sweep is already running for this user")
	}
	defer func() {
		if err := e.locker.Release(context.WithoutCancel(ctx), userID); err != nil {
			e.logger.Warn("Failed to release dedup lock", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	}()

	start := e.now()

	jobs, err := e.jobs.ListActiveJobs(ctx, userID)
	if err != nil {
		return nil, utils.NewInternalServerError(fmt.Sprintf("failed to load jobs: %v", err))
	}

	jobsByID := make(map[string]*models.JobRecord, len(jobs))
	for _, job := range jobs {
		jobsByID[job.ID] = job
	}

	blocks := BuildBlocks(jobs)
	threshold := e.cfg.Dedup.StorageThreshold
	weights := e.weights()

	var pairs []scoredPair
	uf := newUnionFind(jobs)

	for _, block := range blocks {
		for i := 0; i < len(block); i++ {
			for j := i + 1; j < len(block); j++ {
				scores := CompareJobsWeighted(block[i], block[j], weights)
				if scores.Overall < threshold {
					continue
				}
				pairs = append(pairs, scoredPair{aID: block[i].ID, bID: block[j].ID, scores: scores})
				uf.union(block[i].ID, block[j].ID)
			}
		}
	}

	// Jobs without a usable company name cannot be blocked, so they get
	// compared against every company-keyed job as well. Internal fallback
	// pairs were already scored in the block loop above.
	if fallback := blocks[fallbackBlockKey]; len(fallback) > 0 {
		inFallback := make(map[string]bool, len(fallback))
		for _, f := range fallback {
			inFallback[f.ID] = true
		}
		for _, f := range fallback {
			for _, job := range jobs {
				if inFallback[job.ID] {
					continue
				}
				scores := CompareJobsWeighted(f, job, weights)
				if scores.Overall < threshold {
					continue
				}
				pairs = append(pairs, scoredPair{aID: f.ID, bID: job.ID, scores: scores})
				uf.union(f.ID, job.ID)
			}
		}
	}

	components := uf.components()

	duplicatesFound := 0
	canonicalCount := 0
	for _, member := range components {
		if len(member) < 2 {
			// A job with no duplicates is trivially its own canonical.
			if err := e.markSingleton(ctx, jobsByID[member[0]]); err != nil {
				return nil, err
			}
			continue
		}

		n, err := e.finalizeComponent(ctx, member, jobsByID, pairs)
		if err != nil {
			return nil, err
		}
		duplicatesFound += n
		canonicalCount++
	}

	result := &models.DeduplicationResult{
		TotalProcessed:      len(jobs),
		DuplicatesFound:     duplicatesFound,
		CanonicalIdentified: canonicalCount,
		Duration:            e.now().Sub(start),
	}

	e.logger.Info("Deduplication sweep completed", map[string]interface{}{
		"user_id":          userID,
		"total_processed":  result.TotalProcessed,
		"duplicates_found": result.DuplicatesFound,
		"components":       result.CanonicalIdentified,
		"duration":         utils.FormatDuration(result.Duration),
	})

	return result, nil
}

// markSingleton ensures a job outside any duplicate component carries the
// canonical flag and a zero duplicate count.
func (e *Engine) markSingleton(ctx context.Context, job *models.JobRecord) error {
	if job.IsCanonical && job.DuplicateCount == 0 {
		return nil
	}
	if err := e.jobs.UpdateCanonicalFlag(ctx, job.ID, true); err != nil {
		return utils.NewInternalServerError(fmt.Sprintf("failed to update canonical flag: %v", err))
	}
	if err := e.jobs.UpdateDuplicateCount(ctx, job.ID, 0); err != nil {
		return utils.NewInternalServerError(fmt.Sprintf("failed to update duplicate count: %v", err))
	}
	return nil
}

// finalizeComponent elects the canonical member of a connected component and
// records one relationship per duplicate member. Returns the number of
// relationships written.
func (e *Engine) finalizeComponent(ctx context.Context, memberIDs []string, jobsByID map[string]*models.JobRecord, pairs []scoredPair) (int, error) {
	now := e.now()
	horizon := e.cfg.Dedup.FreshnessHorizon

	members := make([]*models.JobRecord, 0, len(memberIDs))
	quality := make(map[string]models.CanonicalMetadata, len(memberIDs))
	for _, id := range memberIDs {
		job := jobsByID[id]
		members = append(members, job)
		quality[id] = QualityScore(job, now, horizon)
	}

	// Standing manual confirmations win over anything the algorithm would
	// decide: a manually chosen canonical stays pinned, and manual edges are
	// never rewritten.
	inComponent := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		inComponent[id] = true
	}
	manualDups := make(map[string]bool)
	pinnedCanonical := ""
	for _, member := range members {
		existing, err := e.dups.ListRelationshipsFor(ctx, member.ID)
		if err != nil {
			return 0, utils.NewInternalServerError(fmt.Sprintf("failed to list relationships: %v", err))
		}
		if hasManualEdge(existing, member.ID) {
			manualDups[member.ID] = true
		}
		for _, rel := range existing {
			if rel.ManuallyConfirmed && inComponent[rel.CanonicalJobID] {
				pinnedCanonical = rel.CanonicalJobID
			}
		}
	}

	canonical := electCanonical(members, quality)
	if pinnedCanonical != "" {
		canonical = jobsByID[pinnedCanonical]
	}

	written := 0
	for _, member := range members {
		if member.ID == canonical.ID {
			continue
		}
		if manualDups[member.ID] {
			continue
		}

		scores := bestPairScores(member.ID, canonical.ID, pairs)
		rel := &models.DuplicateRelationship{
			ID:               utils.GenerateRequestID(),
			CanonicalJobID:   canonical.ID,
			DuplicateJobID:   member.ID,
			TitleScore:       scores.Title,
			CompanyScore:     scores.Company,
			LocationScore:    scores.Location,
			DescriptionScore: scores.Description,
			OverallScore:     scores.Overall,
			Confidence:       models.ConfidenceForScore(scores.Overall),
			DetectionMethod:  scores.Method,
			DetectedAt:       now,
		}
		if err := e.dups.InsertRelationship(ctx, rel); err != nil {
			return written, utils.NewInternalServerError(fmt.Sprintf("failed to insert relationship: %v", err))
		}
		written++
	}

	if err := e.applyCanonicalState(ctx, members, canonical.ID, quality); err != nil {
		return written, err
	}

	return written, nil
}

// applyCanonicalState persists flags, duplicate counts and quality snapshots
// for every member of a finalized component.
func (e *Engine) applyCanonicalState(ctx context.Context, members []*models.JobRecord, canonicalID string, quality map[string]models.CanonicalMetadata) error {
	dupCount := len(members) - 1
	for _, member := range members {
		isCanonical := member.ID == canonicalID

		if err := e.jobs.UpdateCanonicalFlag(ctx, member.ID, isCanonical); err != nil {
			return utils.NewInternalServerError(fmt.Sprintf("failed to update canonical flag: %v", err))
		}

		count := 0
		if isCanonical {
			count = dupCount
		}
		if err := e.jobs.UpdateDuplicateCount(ctx, member.ID, count); err != nil {
			return utils.NewInternalServerError(fmt.Sprintf("failed to update duplicate count: %v", err))
		}

		meta := quality[member.ID]
		meta.IsCanonical = isCanonical
		meta.DuplicateCount = count
		if err := e.dups.UpsertCanonicalMetadata(ctx, &meta); err != nil {
			return utils.NewInternalServerError(fmt.Sprintf("failed to upsert canonical metadata: %v", err))
		}
	}
	return nil
}

// electCanonical picks the highest-quality member. Exact quality ties break
// by earliest posting date, then higher source reliability, then
// lexicographically smaller id, so repeated runs elect the same member.
func electCanonical(members []*models.JobRecord, quality map[string]models.CanonicalMetadata) *models.JobRecord {
	sorted := make([]*models.JobRecord, len(members))
	copy(sorted, members)

	sort.Slice(sorted, func(i, j int) bool {
		qi, qj := quality[sorted[i].ID], quality[sorted[j].ID]
		if qi.OverallQuality != qj.OverallQuality {
			return qi.OverallQuality > qj.OverallQuality
		}
		if !sorted[i].PostedAt.Equal(sorted[j].PostedAt) {
			return sorted[i].PostedAt.Before(sorted[j].PostedAt)
		}
		if qi.SourceReliability != qj.SourceReliability {
			return qi.SourceReliability > qj.SourceReliability
		}
		return sorted[i].ID < sorted[j].ID
	})

	return sorted[0]
}

// bestPairScores returns the scores for the (member, canonical) pair when
// the two were compared directly, otherwise the member's highest-scoring
// pair in the component.
func bestPairScores(memberID, canonicalID string, pairs []scoredPair) FieldScores {
	var best FieldScores
	found := false
	for _, p := range pairs {
		if (p.aID == memberID && p.bID == canonicalID) || (p.aID == canonicalID && p.bID == memberID) {
			return p.scores
		}
		if p.aID == memberID || p.bID == memberID {
			if !found || p.scores.Overall > best.Overall {
				best = p.scores
				found = true
			}
		}
	}
	return best
}

func hasManualEdge(rels []models.DuplicateRelationship, duplicateID string) bool {
	for _, rel := range rels {
		if rel.DuplicateJobID == duplicateID && rel.ManuallyConfirmed {
			return true
		}
	}
	return false
}

// GetDuplicatesForJob returns a job's duplicate family: the job itself,
// every other member of its relationship component, and the edges between
// them. Ownership-checked.
func (e *Engine) GetDuplicatesForJob(ctx context.Context, jobID, userID string) (*models.DuplicateFamily, error) {
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, utils.NewInternalServerError(fmt.Sprintf("failed to load job: %v", err))
	}
	if job == nil || job.UserID != userID {
		return nil, utils.NewNotFoundError(fmt.Sprintf("job %s not found", jobID))
	}

	memberIDs, err := e.dups.ListComponentMembers(ctx, jobID)
	if err != nil {
		return nil, utils.NewInternalServerError(fmt.Sprintf("failed to load component: %v", err))
	}

	family := &models.DuplicateFamily{Job: job, Duplicates: []*models.JobRecord{}}
	for _, id := range memberIDs {
		if id == jobID {
			continue
		}
		member, err := e.jobs.GetJob(ctx, id)
		if err != nil {
			return nil, utils.NewInternalServerError(fmt.Sprintf("failed to load job: %v", err))
		}
		if member != nil {
			family.Duplicates = append(family.Duplicates, member)
		}
	}

	rels, err := e.dups.ListRelationshipsFor(ctx, jobID)
	if err != nil {
		return nil, utils.NewInternalServerError(fmt.Sprintf("failed to list relationships: %v", err))
	}
	family.Relationships = rels

	return family, nil
}

// MergeManually records a human-confirmed duplicate relationship, bypassing
// the similarity threshold. The caller's judgment fixes both the edge and
// the canonical direction.
func (e *Engine) MergeManually(ctx context.Context, canonicalID, duplicateID, userID string) error {
	if canonicalID == duplicateID {
		return utils.NewValidationError("a job cannot be merged with itself")
	}

	canonical, duplicate, err := e.loadOwnedPair(ctx, canonicalID, duplicateID, userID)
	if err != nil {
		return err
	}

	scores := CompareJobsWeighted(canonical, duplicate, e.weights())
	rel := &models.DuplicateRelationship{
		ID:                utils.GenerateRequestID(),
		CanonicalJobID:    canonicalID,
		DuplicateJobID:    duplicateID,
		TitleScore:        scores.Title,
		CompanyScore:      scores.Company,
		LocationScore:     scores.Location,
		DescriptionScore:  scores.Description,
		OverallScore:      scores.Overall,
		Confidence:        models.ConfidenceForScore(scores.Overall),
		DetectionMethod:   models.DetectionManual,
		ManuallyConfirmed: true,
		ConfirmedBy:       userID,
		DetectedAt:        e.now(),
	}

	if err := e.dups.InsertRelationship(ctx, rel); err != nil {
		return utils.NewInternalServerError(fmt.Sprintf("failed to insert relationship: %v", err))
	}

	e.logger.Info("Manual merge recorded", map[string]interface{}{
		"canonical_job_id": canonicalID,
		"duplicate_job_id": duplicateID,
		"confirmed_by":     userID,
	})

	return e.recomputeComponent(ctx, canonicalID)
}

// Unlink deletes a relationship and re-elects canonicals for what remains on
// both sides of the removed edge.
func (e *Engine) Unlink(ctx context.Context, canonicalID, duplicateID, userID string) error {
	if _, _, err := e.loadOwnedPair(ctx, canonicalID, duplicateID, userID); err != nil {
		return err
	}

	rels, err := e.dups.ListRelationshipsFor(ctx, duplicateID)
	if err != nil {
		return utils.NewInternalServerError(fmt.Sprintf("failed to list relationships: %v", err))
	}
	exists := false
	for _, rel := range rels {
		if rel.CanonicalJobID == canonicalID && rel.DuplicateJobID == duplicateID {
			exists = true
			break
		}
	}
	if !exists {
		return utils.NewNotFoundError("no such duplicate relationship")
	}

	if err := e.dups.DeleteRelationship(ctx, canonicalID, duplicateID); err != nil {
		return utils.NewInternalServerError(fmt.Sprintf("failed to delete relationship: %v", err))
	}

	// The unlinked job may now be a singleton; the rest of the component
	// may need a fresh election if the unlinked edge held the canonical.
	if err := e.recomputeComponent(ctx, duplicateID); err != nil {
		return err
	}
	return e.recomputeComponent(ctx, canonicalID)
}

// ListCanonicalOnly returns the paginated canonical-only job listing used to
// hide duplicates by default.
func (e *Engine) ListCanonicalOnly(ctx context.Context, userID string, page, pageSize int) ([]*models.JobRecord, error) {
	page, pageSize = ClampPaging(page, pageSize)
	jobs, err := e.jobs.ListCanonicalJobs(ctx, userID, page, pageSize)
	if err != nil {
		return nil, utils.NewInternalServerError(fmt.Sprintf("failed to list canonical jobs: %v", err))
	}
	return jobs, nil
}

// ClampPaging floors out-of-range paging inputs to the listing defaults.
// Callers that echo the page back to the client use the same clamp.
func ClampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// recomputeComponent re-runs quality scoring and canonical election for the
// component containing jobID, based on the currently stored relationships.
func (e *Engine) recomputeComponent(ctx context.Context, jobID string) error {
	memberIDs, err := e.dups.ListComponentMembers(ctx, jobID)
	if err != nil {
		return utils.NewInternalServerError(fmt.Sprintf("failed to load component: %v", err))
	}
	if len(memberIDs) == 0 {
		memberIDs = []string{jobID}
	}

	now := e.now()
	members := make([]*models.JobRecord, 0, len(memberIDs))
	quality := make(map[string]models.CanonicalMetadata, len(memberIDs))
	for _, id := range memberIDs {
		job, err := e.jobs.GetJob(ctx, id)
		if err != nil {
			return utils.NewInternalServerError(fmt.Sprintf("failed to load job: %v", err))
		}
		if job == nil {
			continue
		}
		members = append(members, job)
		quality[id] = QualityScore(job, now, e.cfg.Dedup.FreshnessHorizon)
	}
	if len(members) == 0 {
		return nil
	}

	if len(members) == 1 {
		return e.markSingleton(ctx, members[0])
	}

	// A manual edge pins the canonical; otherwise quality decides.
	canonicalID := ""
	rels, err := e.dups.ListRelationshipsFor(ctx, jobID)
	if err != nil {
		return utils.NewInternalServerError(fmt.Sprintf("failed to list relationships: %v", err))
	}
	for _, rel := range rels {
		if rel.ManuallyConfirmed {
			canonicalID = rel.CanonicalJobID
			break
		}
	}
	if canonicalID == "" {
		canonicalID = electCanonical(members, quality).ID
	}

	return e.applyCanonicalState(ctx, members, canonicalID, quality)
}

// loadOwnedPair loads two jobs and verifies both belong to userID.
func (e *Engine) loadOwnedPair(ctx context.Context, aID, bID, userID string) (*models.JobRecord, *models.JobRecord, error) {
	a, err := e.jobs.GetJob(ctx, aID)
	if err != nil {
		return nil, nil, utils.NewInternalServerError(fmt.Sprintf("failed to load job: %v", err))
	}
	if a == nil {
		return nil, nil, utils.NewNotFoundError(fmt.Sprintf("job %s not found", aID))
	}
	b, err := e.jobs.GetJob(ctx, bID)
	if err != nil {
		return nil, nil, utils.NewInternalServerError(fmt.Sprintf("failed to load job: %v", err))
	}
	if b == nil {
		return nil, nil, utils.NewNotFoundError(fmt.Sprintf("job %s not found", bID))
	}
	if a.UserID != userID || b.UserID != userID {
		return nil, nil, utils.NewValidationError("job does not belong to the requesting user")
	}
	return a, b, nil
}

// unionFind groups jobs into duplicate components with path compression.
type unionFind struct {
	parent map[string]string
}

func newUnionFind(jobs []*models.JobRecord) *unionFind {
	uf := &unionFind{parent: make(map[string]string, len(jobs))}
	for _, job := range jobs {
		uf.parent[job.ID] = job.ID
	}
	return uf
}

func (uf *unionFind) find(id string) string {
	root := id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[id] != root {
		uf.parent[id], id = root, uf.parent[id]
	}
	return root
}

func (uf *unionFind) union(a, b string) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[rb] = ra
	}
}

// components returns the member ids grouped by root, in deterministic order.
func (uf *unionFind) components() [][]string {
	groups := make(map[string][]string)
	for id := range uf.parent {
		root := uf.find(id)
		groups[root] = append(groups[root], id)
	}

	roots := make([]string, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	out := make([][]string, 0, len(groups))
	for _, root := range roots {
		member := groups[root]
		sort.Strings(member)
		out = append(out, member)
	}
	return out
}
