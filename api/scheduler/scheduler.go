package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec runs the purge job hourly
const DefaultSpec = "@every 1h"

// purgeTimeout bounds a single purge run
const purgeTimeout = 5 * time.Minute

// Purger deletes trial sessions last updated before cutoff
type Purger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler handles periodic background jobs for trial sessions
type Scheduler struct {
	cron       *cron.Cron
	purger     Purger
	retention  time.Duration
	spec       string
	now        func() time.Time
	instanceID string
}

// NewScheduler creates a new scheduler instance. Sessions idle for longer
// than retention are removed every time spec fires.
func NewScheduler(purger Purger, retention time.Duration, spec string) *Scheduler {
	// Heroku sets DYNO to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}
	if spec == "" {
		spec = DefaultSpec
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		purger:     purger,
		retention:  retention,
		spec:       spec,
		now:        time.Now,
		instanceID: instanceID,
	}
}

// Start registers the jobs and begins the scheduler
func (s *Scheduler) Start() error {
	if s.retention <= 0 {
		zap.S().Warnw("session retention disabled, purge job not registered", "retention", s.retention)
		s.cron.Start()
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.purgeStaleSessions); err != nil {
		return fmt.Errorf("failed to register purge job: %w", err)
	}

	s.cron.Start()
	zap.S().Infow("Trial session scheduler started", "spec", s.spec, "retention", s.retention, "instance", s.instanceID)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Trial session scheduler stopped")
}

// purgeStaleSessions removes sessions nobody has touched within the retention window
func (s *Scheduler) purgeStaleSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-s.retention)
	deleted, err := s.purger.PurgeStale(ctx, cutoff)
	if err != nil {
		zap.S().Errorw("failed to purge stale sessions", "error", err, "cutoff", cutoff)
		return
	}
	zap.S().Infow("Purged stale trial sessions", "deleted", deleted, "cutoff", cutoff, "instance", s.instanceID)
}
