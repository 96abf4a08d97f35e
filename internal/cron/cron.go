// Package cron runs a single recurring job on a 5-field cron schedule.
//
// The scheduler sleeps in bounded increments so a stop request is observed
// within one poll interval, recovers from failed or panicking runs with a
// cooldown, and takes its notion of time from an injected Clock.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Job defines a periodic background task.
type Job interface {
	// Name returns an identifier used for logging.
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "0 */6 * * *").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// Schedule computes activation times. It is satisfied by robfig/cron
// schedules.
type Schedule interface {
	// Next returns the first activation time strictly after t.
	Next(t time.Time) time.Time
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a standard 5-field cron expression. An expression
// that never fires, such as "0 0 30 2 *", is rejected as well.
func ParseSchedule(expr string) (Schedule, error) {
	return parseScheduleAt(expr, time.Now())
}

func parseScheduleAt(expr string, ref time.Time) (Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}
	if sched.Next(ref).IsZero() {
		return nil, fmt.Errorf("%w: %q never fires", ErrInvalidSchedule, expr)
	}
	return sched, nil
}

// NextRun returns the first activation of expr strictly after ref.
func NextRun(expr string, ref time.Time) (time.Time, error) {
	sched, err := parseScheduleAt(expr, ref)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(ref), nil
}
