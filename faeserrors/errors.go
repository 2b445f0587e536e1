// Package faeserrors collects the error taxonomy shared by the commit
// engine and the migration orchestrator: sentinels for categories that
// carry no extra context, and structured types for the ones that do.
//
// Error codes follow the ELFAES-<AREA>-NNNN scheme used across the runtime
// so that log aggregation and alerting can key off a stable string
// regardless of the Go error type underneath.
package faeserrors

import (
	"errors"
	"fmt"
	"time"
)

// Category sentinels. Use errors.Is against these, not string comparison.
var (
	ErrValidation            = errors.New("validation error")
	ErrConstraintViolated    = errors.New("stream constraint violated")
	ErrOptimisticConcurrency = errors.New("optimistic concurrency conflict")
	ErrTransientStorage      = errors.New("transient storage error")
	ErrSnapshotTypeNotSet    = errors.New("snapshot type info not set")
	ErrLockAcquisitionFailed = errors.New("lock acquisition failed")
	ErrLockLost              = errors.New("lock lost")
	ErrStreamBroken          = errors.New("stream is broken")
	ErrNotImplemented        = errors.New("not implemented")
)

// Code is one of the stable ELFAES-* error codes from spec §6.
type Code string

const (
	CodeCommitFailed        Code = "ELFAES-COMMIT-0001"
	CodeCommitCleanupFailed Code = "ELFAES-COMMIT-0002"
	CodeStreamCreateFailed  Code = "ELFAES-CFG-0003"
)

// CommitFailedError is returned when an append commit fails but the
// failure is recoverable: either the data store was never written to, or
// it was written to and the orphaned events were successfully cleaned up.
// Either way a caller may safely retry with a rebuilt session.
type CommitFailedError struct {
	Code              Code
	StreamIdentifier  string
	EventsMayBeWritten bool
	OriginalVersion   int
	AttemptedVersion  int
	Cause             error
}

func (e *CommitFailedError) Error() string {
	return fmt.Sprintf("%s: commit failed for stream %q (original version %d, attempted %d, events may be written: %v): %v",
		e.Code, e.StreamIdentifier, e.OriginalVersion, e.AttemptedVersion, e.EventsMayBeWritten, e.Cause)
}

func (e *CommitFailedError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, faeserrors.ErrOptimisticConcurrency)-style checks
// to also match the CommitFailed category via a dedicated sentinel.
func (e *CommitFailedError) Is(target error) bool {
	return target == errCommitFailedSentinel
}

var errCommitFailedSentinel = errors.New("commit failed")

// ErrCommitFailed is the sentinel that CommitFailedError.Is matches, for
// callers that only want to classify the error without inspecting fields.
var ErrCommitFailed = errCommitFailedSentinel

// CommitCleanupFailedError is returned when an append commit fails *and*
// the compensating cleanup of the partially-written events also failed.
// The stream is marked broken as a side effect of producing this error.
type CommitCleanupFailedError struct {
	Code                Code
	StreamIdentifier    string
	OriginalVersion     int
	AttemptedVersion    int
	CleanupFromVersion  int
	CleanupToVersion    int
	OriginalCommitError error
	CleanupError        error
}

func (e *CommitCleanupFailedError) Error() string {
	return fmt.Sprintf("%s: commit cleanup failed for stream %q (orphaned range [%d,%d]): original=%v cleanup=%v",
		e.Code, e.StreamIdentifier, e.CleanupFromVersion, e.CleanupToVersion, e.OriginalCommitError, e.CleanupError)
}

func (e *CommitCleanupFailedError) Unwrap() error { return e.CleanupError }

func (e *CommitCleanupFailedError) Is(target error) bool {
	return target == ErrStreamBroken
}

// ConstraintError reports that a Session/Open call's existence constraint
// (New vs Existing) did not hold for the stream's current state.
type ConstraintError struct {
	StreamIdentifier string
	Constraint       string
	CurrentVersion   int
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %q violated for stream %q (current version %d)",
		e.Constraint, e.StreamIdentifier, e.CurrentVersion)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraintViolated }

// LockAcquisitionError wraps a failed attempt to acquire the distributed
// lock guarding a migration's source stream.
type LockAcquisitionError struct {
	LockKey string
	Timeout time.Duration
	Cause   error
}

func (e *LockAcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to acquire lock %q within %s: %v", e.LockKey, e.Timeout, e.Cause)
	}
	return fmt.Sprintf("failed to acquire lock %q within %s", e.LockKey, e.Timeout)
}

func (e *LockAcquisitionError) Unwrap() error { return ErrLockAcquisitionFailed }

// MigrationPhaseError carries the phase name a migration saga failed in,
// alongside the underlying cause. The saga decides, per phase, whether
// this triggers compensation.
type MigrationPhaseError struct {
	Phase string
	Cause error
}

func (e *MigrationPhaseError) Error() string {
	return fmt.Sprintf("migration phase %q failed: %v", e.Phase, e.Cause)
}

func (e *MigrationPhaseError) Unwrap() error { return e.Cause }
