// Package businessflow contains the call-center use cases: pool reads, the assignment ledger, load balancing, call outcomes and queues
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lookup errors
	ErrVoterNotFound      = errors.New("voter not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrCallNotFound       = errors.New("call not found")

	// Ledger errors
	ErrDuplicateAssignment     = errors.New("voter already has an open assignment in this campaign")
	ErrInvalidTransition       = errors.New("invalid assignment status transition")
	ErrAssignmentVoterMismatch = errors.New("assignment does not belong to voter")
	ErrSameCaller              = errors.New("source and target caller must differ")

	// Load balancing errors
	ErrNoCallersAvailable = errors.New("no callers available")
	ErrLockNotAcquired    = errors.New("another batch is already loading for this caller")

	// Call outcome errors
	ErrInvalidCallResult = errors.New("invalid call result")
	ErrInvalidDuration   = errors.New("call duration must not be negative")
	ErrCallAlreadyEnded  = errors.New("call has already ended")

	// Validation errors
	ErrInvalidPriority  = errors.New("invalid assignment priority")
	ErrInvalidQueueSize = errors.New("invalid queue size")
	ErrBatchTooLarge    = errors.New("batch exceeds the maximum size")
)

// Business error codes surfaced to API clients
const (
	CodeVoterNotFound           = "VOTER_NOT_FOUND"
	CodeAssignmentNotFound      = "ASSIGNMENT_NOT_FOUND"
	CodeCallNotFound            = "CALL_NOT_FOUND"
	CodeDuplicateAssignment     = "DUPLICATE_ASSIGNMENT"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeAssignmentVoterMismatch = "ASSIGNMENT_VOTER_MISMATCH"
	CodeSameCaller              = "SAME_CALLER"
	CodeNoCallersAvailable      = "NO_CALLERS_AVAILABLE"
	CodeLockNotAcquired         = "BATCH_LOCKED"
	CodeInvalidCallResult       = "INVALID_CALL_RESULT"
	CodeInvalidDuration         = "INVALID_DURATION"
	CodeCallAlreadyEnded        = "CALL_ALREADY_ENDED"
	CodeInvalidPriority         = "INVALID_PRIORITY"
	CodeInvalidQueueSize        = "INVALID_QUEUE_SIZE"
	CodeBatchTooLarge           = "BATCH_TOO_LARGE"
	CodeInternal                = "INTERNAL_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ErrorCode extracts the business code of err, or CodeInternal
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeInternal
}

func IsVoterNotFound(err error) bool {
	return errors.Is(err, ErrVoterNotFound)
}

func IsAssignmentNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound)
}

func IsCallNotFound(err error) bool {
	return errors.Is(err, ErrCallNotFound)
}

// IsNotFound reports any of the lookup failures
func IsNotFound(err error) bool {
	return IsVoterNotFound(err) || IsAssignmentNotFound(err) || IsCallNotFound(err)
}

func IsDuplicateAssignment(err error) bool {
	return errors.Is(err, ErrDuplicateAssignment)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsAssignmentVoterMismatch(err error) bool {
	return errors.Is(err, ErrAssignmentVoterMismatch)
}

func IsSameCaller(err error) bool {
	return errors.Is(err, ErrSameCaller)
}

func IsNoCallersAvailable(err error) bool {
	return errors.Is(err, ErrNoCallersAvailable)
}

func IsLockNotAcquired(err error) bool {
	return errors.Is(err, ErrLockNotAcquired)
}

func IsInvalidCallResult(err error) bool {
	return errors.Is(err, ErrInvalidCallResult)
}

func IsInvalidDuration(err error) bool {
	return errors.Is(err, ErrInvalidDuration)
}

func IsCallAlreadyEnded(err error) bool {
	return errors.Is(err, ErrCallAlreadyEnded)
}

func IsInvalidPriority(err error) bool {
	return errors.Is(err, ErrInvalidPriority)
}

func IsInvalidQueueSize(err error) bool {
	return errors.Is(err, ErrInvalidQueueSize)
}

func IsBatchTooLarge(err error) bool {
	return errors.Is(err, ErrBatchTooLarge)
}

// IsValidationError reports errors caused by bad input rather than state
func IsValidationError(err error) bool {
	return IsInvalidCallResult(err) || IsInvalidDuration(err) || IsInvalidPriority(err) ||
		IsInvalidQueueSize(err) || IsBatchTooLarge(err) ||
		IsSameCaller(err) || IsNoCallersAvailable(err) || IsAssignmentVoterMismatch(err)
}
