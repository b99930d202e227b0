package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrQuestionNotFound   = fmt.Errorf("%w: question", ErrNotFound)
	ErrColumnNotFound     = fmt.Errorf("%w: data column", ErrNotFound)
	ErrRunNotFound        = fmt.Errorf("%w: run", ErrNotFound)
	ErrCheckpointNotFound = fmt.Errorf("%w: checkpoint", ErrNotFound)

	// Configuration errors - fatal before any question is processed
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrBannerSource     = fmt.Errorf("%w: banner source column", ErrConfigInvalid)
	ErrCompositeSource  = fmt.Errorf("%w: composite source questions", ErrConfigInvalid)
	ErrItemWeights      = fmt.Errorf("%w: composite item weights", ErrConfigInvalid)
	ErrFilterExpression = fmt.Errorf("%w: filter expression", ErrConfigInvalid)

	// Per-question data errors - question is skipped, run becomes PARTIAL
	ErrQuestionData     = errors.New("question data unavailable")
	ErrTypeMismatch     = errors.New("question type incompatible with data")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Determinism errors
	ErrFingerprintMismatch = errors.New("run fingerprint mismatch")
	ErrHashMismatch        = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewConfigError(section string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfigInvalid, section, reason)
}

func NewQuestionDataError(code QuestionCode, err error) error {
	return fmt.Errorf("%w for question %s: %v", ErrQuestionData, code, err)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}

func IsQuestionDataError(err error) bool {
	return errors.Is(err, ErrQuestionData) ||
		errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrInsufficientData)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrFingerprintMismatch) ||
		errors.Is(err, ErrHashMismatch)
}
