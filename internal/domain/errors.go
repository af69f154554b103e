package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrContestNotFound indicates the contest does not exist.
	ErrContestNotFound = errors.New("contest not found")
	// ErrQuestionNotFound indicates a referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrContestNotActive is returned when the kill-switch is off or the
	// current time is outside the contest window.
	ErrContestNotActive = errors.New("contest not active")
	// ErrAttemptsExhausted is returned when the user has used up the
	// contest's attempt quota.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrForeignQuestion is returned when a submitted question belongs to a
	// different contest. The whole submission is rejected.
	ErrForeignQuestion = errors.New("question does not belong to this contest")
	// ErrNotCelebrity is returned when a non-celebrity tries to create a
	// contest.
	ErrNotCelebrity = errors.New("only celebrities can create contests")
	// ErrScoreFinalized guards against finalizing an attempt's score twice.
	// Attempts are single-shot, so hitting this is a programming error.
	ErrScoreFinalized = errors.New("attempt score already finalized")
)

// FieldError is a single invalid field with a human-readable message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates per-field problems with a request. Failures of
// this class are guaranteed to have had no side effects.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func NewValidationError() *ValidationError {
	return &ValidationError{}
}

func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
