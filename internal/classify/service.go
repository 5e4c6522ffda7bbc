package classify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"applytrack-utils/internal/cache"
	"applytrack-utils/internal/config"
	"applytrack-utils/internal/dedup"
	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/models"
	"applytrack-utils/pkg/utils"
)

// ScoreRunner is the slice of the scorer manager the service depends on.
type ScoreRunner interface {
	Score(ctx context.Context, input *models.ScoreInput) (*models.ClassificationResult, error)
}

// Service orchestrates classification: it checks the cache first, falls back
// to the scorer on a miss, and writes fresh verdicts back through the cache.
type Service struct {
	config   *config.Config
	runner   ScoreRunner
	cache    *cache.ClassificationCache
	jobs     dedup.JobStore
	profiles ProfileStore
	logger   logging.Logger
}

// NewService creates a new classification service
func NewService(cfg *config.Config, runner ScoreRunner, classCache *cache.ClassificationCache, jobs dedup.JobStore, profiles ProfileStore) *Service {
	return &Service{
		config:   cfg,
		runner:   runner,
		cache:    classCache,
		jobs:     jobs,
		profiles: profiles,
		logger:   logging.GetGlobalLogger(),
	}
}

// Classify returns the verdict for one (user, job, kind) triple. Cached
// verdicts are returned as-is; on a miss the scorer runs under the configured
// per-call timeout and the result is cached. Scorer failures surface to the
// caller here, unlike in batch mode.
func (s *Service) Classify(ctx context.Context, userID, jobID string, kind models.ArtifactKind) (*models.ClassificationResult, error) {
	key := cache.Key{SubjectID: userID, ArtifactID: jobID, Kind: kind}

	if result, ok := s.cache.Get(ctx, key); ok {
		return result, nil
	}

	input, err := s.buildInput(ctx, userID, jobID, kind)
	if err != nil {
		return nil, err
	}

	result, err := s.scoreOne(ctx, input)
	if err != nil {
		return nil, utils.NewScorerError(fmt.Sprintf("classification failed for job %s: %v", jobID, err))
	}

	s.cache.Put(ctx, key, result)
	return result, nil
}

// ClassifyBatch classifies a set of jobs for one user. Cached verdicts are
// served directly; misses are scored by a bounded worker pool behind a shared
// rate limiter. A failed scorer call yields a conservative needs-review
// verdict for that job only, and conservative verdicts are never cached.
func (s *Service) ClassifyBatch(ctx context.Context, userID string, jobIDs []string, kind models.ArtifactKind) (*models.BatchClassificationResult, error) {
	if len(jobIDs) == 0 {
		return nil, utils.NewValidationError("job_ids must not be empty")
	}
	if len(jobIDs) > s.config.Scorer.BatchLimit {
		return nil, utils.NewValidationError(fmt.Sprintf("batch size %d exceeds limit %d", len(jobIDs), s.config.Scorer.BatchLimit))
	}

	unique := dedupeIDs(jobIDs)

	report := &models.BatchClassificationResult{
		Total:   len(unique),
		Results: make(map[string]*models.ClassificationResult, len(unique)),
	}

	var misses []string
	for _, jobID := range unique {
		key := cache.Key{SubjectID: userID, ArtifactID: jobID, Kind: kind}
		if result, ok := s.cache.Get(ctx, key); ok {
			report.Results[jobID] = result
			report.Cached++
			continue
		}
		misses = append(misses, jobID)
	}

	if len(misses) == 0 {
		return report, nil
	}

	// One profile lookup serves the whole batch.
	var profile *models.UserProfile
	if kind == models.KindCompatibility {
		var err error
		profile, err = s.profiles.GetProfile(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile for user %s: %w", userID, err)
		}
	}

	// A zero or negative rate would make rate.Every divide by zero, and zero
	// workers would drain no misses at all, so both floor to 1.
	ratePerMin := s.config.Scorer.RatePerMin
	if ratePerMin < 1 {
		ratePerMin = 1
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMin)), 1)

	workers := s.config.Scorer.BatchWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(misses) {
		workers = len(misses)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		pending = make(chan string, len(misses))
	)
	for _, jobID := range misses {
		pending <- jobID
	}
	close(pending)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jobID := range pending {
				result := s.scoreMiss(ctx, limiter, userID, jobID, kind, profile)
				mu.Lock()
				report.Results[jobID] = result
				report.Computed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.logger.Info("Batch classification completed", map[string]interface{}{
		"user_id":  userID,
		"kind":     string(kind),
		"total":    report.Total,
		"cached":   report.Cached,
		"computed": report.Computed,
	})

	return report, nil
}

// Invalidate drops cached verdicts for a user. With no job IDs everything
// for the user is cleared.
func (s *Service) Invalidate(ctx context.Context, userID string, jobIDs ...string) error {
	return s.cache.Invalidate(ctx, userID, jobIDs...)
}

// scoreMiss scores a single cache miss for the batch path. Any failure
// degrades to a conservative verdict that is returned but not cached.
func (s *Service) scoreMiss(ctx context.Context, limiter *rate.Limiter, userID, jobID string, kind models.ArtifactKind, profile *models.UserProfile) *models.ClassificationResult {
	if err := limiter.Wait(ctx); err != nil {
		return models.ConservativeResult(kind, "classification cancelled before scoring")
	}

	job, err := s.loadOwnedJob(ctx, userID, jobID)
	if err != nil {
		s.logger.Warn("Skipping unscoreable job in batch", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
		return models.ConservativeResult(kind, fmt.Sprintf("job unavailable: %v", err))
	}

	input := &models.ScoreInput{Kind: kind, Job: job, Profile: profile}

	result, err := s.scoreOne(ctx, input)
	if err != nil {
		s.logger.Warn("Scorer failed for batch item, using conservative verdict", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
		return models.ConservativeResult(kind, "scorer unavailable, queued for review")
	}

	s.cache.Put(ctx, cache.Key{SubjectID: userID, ArtifactID: jobID, Kind: kind}, result)
	return result
}

// scoreOne runs the scorer under the configured per-call timeout and stamps
// the result as freshly computed.
func (s *Service) scoreOne(ctx context.Context, input *models.ScoreInput) (*models.ClassificationResult, error) {
	scoreCtx, cancel := context.WithTimeout(ctx, s.config.Scorer.Timeout)
	defer cancel()

	result, err := s.runner.Score(scoreCtx, input)
	if err != nil {
		return nil, err
	}

	result.Provenance = models.ProvenanceComputed
	result.CachedAt = time.Now()
	return result, nil
}

func (s *Service) buildInput(ctx context.Context, userID, jobID string, kind models.ArtifactKind) (*models.ScoreInput, error) {
	job, err := s.loadOwnedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	input := &models.ScoreInput{Kind: kind, Job: job}

	if kind == models.KindCompatibility {
		profile, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile for user %s: %w", userID, err)
		}
		input.Profile = profile
	}

	return input, nil
}

// loadOwnedJob fetches a job and verifies it belongs to the requesting user.
// A job owned by someone else reads as not found.
func (s *Service) loadOwnedJob(ctx context.Context, userID, jobID string) (*models.JobRecord, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, utils.NewNotFoundError(fmt.Sprintf("job %s not found", jobID))
	}
	return job, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
