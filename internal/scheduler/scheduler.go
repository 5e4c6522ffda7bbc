// Package scheduler wires up the cron job that periodically sweeps every
// active user's job list for duplicates.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"applytrack-utils/internal/dedup"
	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/utils"
)

// UserLister supplies the set of users with jobs worth sweeping.
type UserLister interface {
	ListActiveUsers(ctx context.Context) ([]string, error)
}

// Scheduler wraps robfig/cron and manages the periodic deduplication sweep.
type Scheduler struct {
	cron   *cron.Cron
	engine *dedup.Engine
	users  UserLister
	spec   string
	logger logging.Logger
}

// New creates a Scheduler firing on the given cron spec, e.g. "@every 6h".
func New(engine *dedup.Engine, users UserLister, spec string) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		users:  users,
		spec:   spec,
		logger: logging.GetGlobalLogger(),
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Deduplication scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Deduplication scheduler stopped")
}

// runSweep deduplicates every active user's jobs. A user whose sweep lock is
// held is skipped, not treated as an error; the next tick picks them up.
func (s *Scheduler) runSweep(ctx context.Context) {
	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list users for scheduled sweep", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if len(users) == 0 {
		return
	}

	s.logger.Info("Scheduled deduplication sweep started", map[string]interface{}{
		"users": len(users),
	})

	for _, userID := range users {
		result, err := s.engine.DetectDuplicates(ctx, userID)
		if err != nil {
			if utils.IsConflictError(err) {
				s.logger.Debug("Sweep already running for user, skipping", map[string]interface{}{
					"user_id": userID,
				})
				continue
			}
			s.logger.Error("Scheduled sweep failed for user", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
			continue
		}

		s.logger.Info("Scheduled sweep completed for user", map[string]interface{}{
			"user_id":          userID,
			"total_processed":  result.TotalProcessed,
			"duplicates_found": result.DuplicatesFound,
			"duration":         utils.FormatDuration(result.Duration),
		})
	}
}
