package update

import "fmt"

// Stage names a step of the update cycle.
type Stage string

// Cycle stages, in execution order.
const (
	StageFetch  Stage = "fetch"
	StageBackup Stage = "backup"
	StageMerge  Stage = "merge"
	StageWrite  Stage = "write"
)

// StageError reports which stage of a cycle failed. The target file is
// untouched when Stage is StageFetch or StageBackup.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("update: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
