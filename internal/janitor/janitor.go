// Package janitor runs scheduled housekeeping against the store.
package janitor

import (
	"context"
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"adminpanel/internal/logging"
)

// runTimeout bounds a single purge
const runTimeout = time.Minute

// SessionPurger deletes sessions that expired at or before now
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Janitor purges expired sessions on a cron schedule. Validation never depends
// on it: an expired row is rejected whether or not it has been purged yet.
type Janitor struct {
	cron   *cronlib.Cron
	purger SessionPurger
	logger *logging.Logger
	now    func() time.Time
}

// New schedules the purge. schedule is a standard 5-field cron expression or a
// descriptor such as @hourly.
func New(schedule string, purger SessionPurger, logger *logging.Logger) (*Janitor, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	j := &Janitor{
		cron:   cronlib.New(),
		purger: purger,
		logger: logger,
		now:    time.Now,
	}

	if _, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Error("session purge failed: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	return j, nil
}

// Start runs the scheduler in the background
func (j *Janitor) Start() {
	j.logger.Info("session cleanup scheduled")
	j.cron.Start()
}

// Stop halts the scheduler and waits for a running purge to finish or ctx to end
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		j.logger.Warn("session cleanup still running at shutdown")
	}
}

// RunOnce purges expired sessions immediately
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	n, err := j.purger.PurgeExpiredSessions(ctx, j.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("purged %d expired sessions", n)
	} else {
		j.logger.Debug("no expired sessions to purge")
	}
	return n, nil
}
