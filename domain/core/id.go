package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID         ID
	QuestionCode  ID
	OptionCode    ID
	GroupCode     ID
	CompositeCode ID
	WaveID        ID
)

// String conversions for domain IDs
func (id RunID) String() string           { return ID(id).String() }
func (code QuestionCode) String() string  { return ID(code).String() }
func (code OptionCode) String() string    { return ID(code).String() }
func (code GroupCode) String() string     { return ID(code).String() }
func (code CompositeCode) String() string { return ID(code).String() }
func (id WaveID) String() string          { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseQuestionCode parses a string into QuestionCode
func ParseQuestionCode(s string) (QuestionCode, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("question code cannot be empty")
	}
	return QuestionCode(strings.TrimSpace(s)), nil
}

// ParseGroupCode parses a string into GroupCode
func ParseGroupCode(s string) (GroupCode, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("banner group code cannot be empty")
	}
	return GroupCode(strings.TrimSpace(s)), nil
}

// ParseCompositeCode parses a string into CompositeCode
func ParseCompositeCode(s string) (CompositeCode, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("composite code cannot be empty")
	}
	return CompositeCode(strings.TrimSpace(s)), nil
}

// ParseWaveID parses a string into WaveID
func ParseWaveID(s string) (WaveID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("wave ID cannot be empty")
	}
	return WaveID(strings.TrimSpace(s)), nil
}
