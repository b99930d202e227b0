package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ConfigHash Hash
	DataHash   Hash
)

// Constructors
func NewConfigHash(data []byte) ConfigHash { return ConfigHash(NewHash(data)) }
func NewDataHash(data []byte) DataHash     { return DataHash(NewHash(data)) }

// String conversions
func (h ConfigHash) String() string { return Hash(h).String() }
func (h DataHash) String() string   { return Hash(h).String() }

// ComputeConfigHash hashes a key-value view of the run configuration in
// deterministic key order, so identical configs always hash identically.
func ComputeConfigHash(fields map[string]string) ConfigHash {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fields[key])
		data.WriteString("|")
	}

	return NewConfigHash([]byte(data.String()))
}

// ComputeDataHash hashes the shape of a respondent table (column names in
// sorted order plus the row count). Cheap to compute and sufficient to detect
// a checkpoint being resumed against different data.
func ComputeDataHash(columnNames []string, rowCount int) DataHash {
	names := make([]string, len(columnNames))
	copy(names, columnNames)
	sort.Strings(names)

	var data strings.Builder
	for _, name := range names {
		data.WriteString(name)
		data.WriteString("|")
	}
	data.WriteString(fmt.Sprintf("rows=%d", rowCount))

	return NewDataHash([]byte(data.String()))
}
