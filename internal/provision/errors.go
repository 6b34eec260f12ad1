package provision

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotReady is returned when the record fails validation.
	ErrRecordNotReady = errors.New("requirements record is not ready")
	// ErrEmptyCompetitorPool is returned when there is nothing to analyse.
	ErrEmptyCompetitorPool = errors.New("competitor pool is empty")
)

// PrerequisiteError reports a failed readiness check. Nothing was written.
type PrerequisiteError struct {
	Check string
	Err   error
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite %s failed: %v", e.Check, e.Err)
}

func (e *PrerequisiteError) Unwrap() error { return e.Err }

// TransactionIntegrityError reports that project creation was rolled back
// because the stored associations did not match the request.
type TransactionIntegrityError struct {
	ProjectName string
	Err         error
}

func (e *TransactionIntegrityError) Error() string {
	return fmt.Sprintf("project %q rolled back: %v", e.ProjectName, e.Err)
}

func (e *TransactionIntegrityError) Unwrap() error { return e.Err }

// StageError wraps an abort-class failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
