package run

import (
	"crypto/sha256"
	"fmt"

	"gotabs/domain/core"
)

// State is the lifecycle state of a tabulation run
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StatePass       State = "pass"    // every question produced a table
	StatePartial    State = "partial" // at least one question was skipped
)

// IsTerminal reports whether the run has finished
func (s State) IsTerminal() bool {
	return s == StatePass || s == StatePartial
}

// Fingerprint ensures a resumed run sees the same configuration and data
type Fingerprint struct {
	ConfigHash  core.ConfigHash `json:"config_hash"`
	DataHash    core.DataHash   `json:"data_hash"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"` // Hash of all above
}

// NewFingerprint creates a fingerprint from determinism parameters
func NewFingerprint(configHash core.ConfigHash, dataHash core.DataHash, codeVersion string) Fingerprint {
	return Fingerprint{
		ConfigHash:  configHash,
		DataHash:    dataHash,
		CodeVersion: codeVersion,
		Fingerprint: computeFingerprint(configHash, dataHash, codeVersion),
	}
}

// computeFingerprint generates a deterministic hash from all determinism parameters
func computeFingerprint(configHash core.ConfigHash, dataHash core.DataHash, codeVersion string) core.Hash {
	data := fmt.Sprintf("config:%s|data:%s|code:%s", configHash, dataHash, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// Matches reports whether another fingerprint describes the same inputs
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.Fingerprint == other.Fingerprint
}
