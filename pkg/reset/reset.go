// Package reset runs the calendar-driven monthly credit reset.
//
// This job is a safety net, not the primary reset path: credits normally
// reset when a renewal invoice is paid (see pkg/billing). The two
// mechanisms can both fire in the same period without corrupting state
// because each only ever sets the counter to exactly zero.
package reset

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/formatexp/formatexp/pkg/credits"
)

// DefaultSchedule resets on the 1st of each month at 00:05 UTC.
const DefaultSchedule = "5 0 1 * *"

const defaultRunTimeout = 5 * time.Minute

// Config holds reset job configuration.
type Config struct {
	// Accounts is the account store (required).
	Accounts credits.AccountStore

	// Schedule is a cron expression (default: DefaultSchedule).
	Schedule string

	// RunTimeout bounds a single reset run (default: 5m).
	RunTimeout time.Duration

	// Logger is used for structured logging (default: NoopLogger).
	Logger credits.Logger

	// Metrics tracks reset operations (default: NoopMetrics).
	Metrics credits.Metrics
}

// Job zeroes the credit counter of every account on a monthly schedule.
type Job struct {
	accounts   credits.AccountStore
	schedule   string
	runTimeout time.Duration
	logger     credits.Logger
	metrics    credits.Metrics
	cron       *cron.Cron
}

// NewJob creates a reset job from the given configuration.
func NewJob(config Config) (*Job, error) {
	if config.Accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaultRunTimeout
	}
	if config.Logger == nil {
		config.Logger = &credits.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &credits.NoopMetrics{}
	}
	return &Job{
		accounts:   config.Accounts,
		schedule:   config.Schedule,
		runTimeout: config.RunTimeout,
		logger:     config.Logger,
		metrics:    config.Metrics,
	}, nil
}

// Start schedules the job. It returns an error if the cron expression
// does not parse.
func (j *Job) Start() error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.runTimeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			j.logger.Error("scheduled credit reset failed",
				credits.Field{Key: "error", Value: err.Error()},
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reset schedule %q: %w", j.schedule, err)
	}
	c.Start()
	j.cron = c
	return nil
}

// Stop halts the schedule. Safe to call on a job that was never started.
func (j *Job) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// Run performs one reset pass and returns the number of accounts
// touched. Running twice in a row is harmless: resetting an already-zero
// counter is a no-op.
func (j *Job) Run(ctx context.Context) (int, error) {
	count, err := j.accounts.ResetAllCredits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}
	j.metrics.RecordCreditsReset("scheduled", count)
	j.logger.Info("monthly credit reset complete",
		credits.Field{Key: "accounts", Value: count},
	)
	return count, nil
}
