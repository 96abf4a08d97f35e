package cron

import "errors"

var (
	// ErrInvalidSchedule is returned when a cron expression cannot be parsed.
	ErrInvalidSchedule = errors.New("cron: invalid schedule")

	// ErrAlreadyRunning is returned by Start when the scheduler is not stopped.
	ErrAlreadyRunning = errors.New("cron: scheduler already running")

	// ErrCycleInProgress is returned by RunOnce when a cycle is executing.
	ErrCycleInProgress = errors.New("cron: cycle already in progress")
)
