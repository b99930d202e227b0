package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	// Generate many IDs
	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDString tests ID string conversion
func TestIDString(t *testing.T) {
	id := ID("test-123")
	if id.String() != "test-123" {
		t.Errorf("Expected String() to return 'test-123', got '%s'", id.String())
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseQuestionCode tests question code parsing
func TestParseQuestionCode(t *testing.T) {
	tests := []struct {
		input    string
		expected QuestionCode
		hasError bool
	}{
		{"Q1", QuestionCode("Q1"), false},
		{"  Q2_SAT  ", QuestionCode("Q2_SAT"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseQuestionCode(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{"run-123", RunID("run-123"), false},
		{"", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestComputeConfigHashDeterminism tests that config hashing is order-independent
func TestComputeConfigHashDeterminism(t *testing.T) {
	a := ComputeConfigHash(map[string]string{"alpha": "0.05", "weight_variable": "Weight", "minimum_base": "30"})
	b := ComputeConfigHash(map[string]string{"minimum_base": "30", "alpha": "0.05", "weight_variable": "Weight"})
	if a != b {
		t.Errorf("Expected identical hashes for identical configs, got %s vs %s", a, b)
	}

	c := ComputeConfigHash(map[string]string{"alpha": "0.01", "weight_variable": "Weight", "minimum_base": "30"})
	if a == c {
		t.Error("Expected different hashes for different configs")
	}
}

// TestComputeDataHashShape tests that data hashing reacts to shape changes
func TestComputeDataHashShape(t *testing.T) {
	a := ComputeDataHash([]string{"Gender", "Age", "Q1"}, 500)
	b := ComputeDataHash([]string{"Q1", "Gender", "Age"}, 500)
	if a != b {
		t.Error("Expected column order to be irrelevant to the data hash")
	}

	c := ComputeDataHash([]string{"Gender", "Age", "Q1"}, 501)
	if a == c {
		t.Error("Expected row count change to alter the data hash")
	}
}
