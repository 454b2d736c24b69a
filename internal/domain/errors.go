package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExamNotFound is returned when the requested exam does not exist.
	ErrExamNotFound = errors.New("exam not found")
	// ErrUserNotFound is returned when the requesting user is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrAttemptNotFound is returned when a review is requested before any submission.
	ErrAttemptNotFound = errors.New("no attempt found")
	// ErrAlreadySubmitted is returned when a second attempt is made for the same exam.
	ErrAlreadySubmitted = errors.New("already submitted")
	// ErrDuplicateAttempt is the storage-level uniqueness violation on
	// (user, exam). The attempt ledger translates it to ErrAlreadySubmitted.
	ErrDuplicateAttempt = errors.New("duplicate attempt")
)

// StateError rejects an operation because of the exam's phase. The
// reason is part of the contract: "not-started" and "ended" must stay
// distinguishable for the caller.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "exam " + e.Reason
}

var (
	ErrExamNotStarted = &StateError{Reason: "not-started"}
	ErrExamEnded      = &StateError{Reason: "ended"}
)

// ValidationError rejects malformed input before it reaches the ledger.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
