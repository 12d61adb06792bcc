package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

type AppError struct {
	Code    string
	Reason  string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	code := e.Code
	if e.Reason != "" {
		code = e.Code + "/" + e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code, and on reason when the target has one.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func (e *AppError) WithReason(reason string) *AppError {
	cp := *e
	cp.Reason = reason
	return &cp
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error codes
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodePreconditionFailed    = "PRECONDITION_FAILED"
	ErrCodeInsufficientResources = "INSUFFICIENT_RESOURCES"
	ErrCodeInvariantViolation    = "INVARIANT_VIOLATION"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// Precondition reasons
const (
	ReasonAlreadyResearching   = "ALREADY_RESEARCHING"
	ReasonNodeLocked           = "NODE_LOCKED"
	ReasonNodeCompleted        = "NODE_COMPLETED"
	ReasonNodeNotInProgress    = "NODE_NOT_IN_PROGRESS"
	ReasonPrerequisitesMissing = "PREREQUISITES_MISSING"
	ReasonNotYetDue            = "NOT_YET_DUE"
	ReasonPrerequisiteMissing  = "PREREQUISITE_MISSING"
	ReasonInstanceLimitReached = "INSTANCE_LIMIT_REACHED"
	ReasonPositionOccupied     = "POSITION_OCCUPIED"
	ReasonMaxLevelReached      = "MAX_LEVEL_REACHED"
	ReasonVillageLevelTooLow   = "VILLAGE_LEVEL_TOO_LOW"
	ReasonInvalidTransition    = "INVALID_TRANSITION"
	ReasonCharacterOnMission   = "CHARACTER_ON_MISSION"
	ReasonCharacterDown        = "CHARACTER_INCAPACITATED"
	ReasonPlayerCharacter      = "PLAYER_CHARACTER"
	ReasonNotEnoughStatPoints  = "NOT_ENOUGH_STAT_POINTS"
	ReasonNotOwner             = "NOT_OWNER"
	ReasonSlotEmpty            = "SLOT_EMPTY"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation            = New(ErrCodeValidation, "validation failed")
	ErrNotFound              = New(ErrCodeNotFound, "not found")
	ErrPreconditionFailed    = New(ErrCodePreconditionFailed, "precondition failed")
	ErrInsufficientResources = New(ErrCodeInsufficientResources, "insufficient resources")
	ErrInvariantViolation    = New(ErrCodeInvariantViolation, "invariant violation")

	ErrAlreadyResearching  = ErrPreconditionFailed.WithReason(ReasonAlreadyResearching)
	ErrNodeLocked          = ErrPreconditionFailed.WithReason(ReasonNodeLocked)
	ErrNodeCompleted       = ErrPreconditionFailed.WithReason(ReasonNodeCompleted)
	ErrNotYetDue           = ErrPreconditionFailed.WithReason(ReasonNotYetDue)
	ErrInstanceLimit       = ErrPreconditionFailed.WithReason(ReasonInstanceLimitReached)
	ErrPositionOccupied    = ErrPreconditionFailed.WithReason(ReasonPositionOccupied)
	ErrPrerequisiteMissing = ErrPreconditionFailed.WithReason(ReasonPrerequisiteMissing)
	ErrMaxLevel            = ErrPreconditionFailed.WithReason(ReasonMaxLevelReached)
	ErrInvalidTransition   = ErrPreconditionFailed.WithReason(ReasonInvalidTransition)
	ErrNotOwner            = ErrPreconditionFailed.WithReason(ReasonNotOwner)
	ErrSlotEmpty           = ErrPreconditionFailed.WithReason(ReasonSlotEmpty)
)

func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

func Precondition(reason, message string) *AppError {
	return &AppError{Code: ErrCodePreconditionFailed, Reason: reason, Message: message}
}

func Invariant(message string) *AppError {
	return New(ErrCodeInvariantViolation, message)
}

// InsufficientResources carries the shortfall per resource kind.
func InsufficientResources(missing map[string]int64) *AppError {
	return New(ErrCodeInsufficientResources, fmt.Sprintf("insufficient resources: missing %v", missing)).
		WithDetail("missing", missing)
}

// NotYetDue carries the time left until the deadline.
func NotYetDue(remaining time.Duration) *AppError {
	return Precondition(ReasonNotYetDue, fmt.Sprintf("not yet due, %s remaining", remaining.Round(time.Second))).
		WithDetail("remaining", remaining)
}

// CodeOf returns the code of the first AppError in the chain, or INTERNAL_ERROR.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func MissingResources(err error) map[string]int64 {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return nil
	}
	missing, _ := appErr.Details["missing"].(map[string]int64)
	return missing
}

func Detail(err error, key string) (interface{}, bool) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return nil, false
	}
	v, ok := appErr.Details[key]
	return v, ok
}
