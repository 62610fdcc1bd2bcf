// Package janitor periodically deletes token rows that can never be used
// again. Token validity is always decided at use time; the janitor only
// reclaims rows already used, revoked or expired for longer than the
// retention window.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/observability"
)

const (
	DefaultSchedule  = "@hourly"
	DefaultRetention = 24 * time.Hour
)

// Purger deletes terminal tokens older than cutoff.
type Purger interface {
	PurgeTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config for the janitor.
type Config struct {
	Schedule  string
	Retention time.Duration
	Timeout   time.Duration
}

// Janitor runs the purge on a cron schedule.
type Janitor struct {
	purger  Purger
	cfg     Config
	cron    *cron.Cron
	log     logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// New validates cfg and schedules the purge. The schedule accepts standard
// five-field cron expressions and descriptors such as @hourly.
func New(purger Purger, cfg Config, log logrus.FieldLogger, metrics *observability.Metrics) (*Janitor, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	j := &Janitor{
		purger:  purger,
		cfg:     cfg,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		log:     log.WithField("component", "janitor"),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if _, err := j.cron.AddFunc(cfg.Schedule, j.tick); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", cfg.Schedule, err)
	}
	return j, nil
}

func (j *Janitor) tick() {
	defer observability.RecoverPanic(j.log, "janitor.tick")

	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()
	if _, err := j.RunOnce(ctx); err != nil {
		j.log.WithError(err).Error("Token purge failed")
	}
}

// RunOnce purges every terminal token older than the retention window.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.cfg.Retention)
	n, err := j.purger.PurgeTokens(ctx, cutoff)
	// Partial deletes are committed even when a later statement fails.
	j.metrics.TokensPurged(n)
	if err != nil {
		return n, fmt.Errorf("failed to purge tokens: %w", err)
	}
	if n > 0 {
		j.log.WithFields(logrus.Fields{"purged": n, "cutoff": cutoff}).Info("Purged dead tokens")
	} else {
		j.log.Debug("No dead tokens to purge")
	}
	return n, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running purge to finish.
func (j *Janitor) Run(ctx context.Context) error {
	j.cron.Start()
	j.log.WithFields(logrus.Fields{
		"schedule":  j.cfg.Schedule,
		"retention": j.cfg.Retention.String(),
	}).Info("Janitor started")

	<-ctx.Done()

	stopped := j.cron.Stop()
	<-stopped.Done()
	j.log.Info("Janitor stopped")
	return nil
}
