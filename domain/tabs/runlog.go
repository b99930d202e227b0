package tabs

import (
	"sync"

	"gotabs/domain/core"
)

// Severity grades a diagnostic log entry
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Category groups log entries by the concern that produced them
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryData       Category = "data"
	CategoryStatistics Category = "statistics"
	CategoryWeights    Category = "weights"
	CategoryCheckpoint Category = "checkpoint"
)

// LogEntry is one structured diagnostic record of a run
type LogEntry struct {
	Source   string            `json:"source"` // component or question code
	Category Category          `json:"category"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details,omitempty"`
	At       core.Timestamp    `json:"at"`
}

// RunLog collects diagnostic entries for one run. Safe for concurrent use
// so parallel question workers can share a single log.
type RunLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewRunLog creates an empty run log
func NewRunLog() *RunLog {
	return &RunLog{entries: []LogEntry{}}
}

// Restore rebuilds a log from previously persisted entries
func Restore(entries []LogEntry) *RunLog {
	log := NewRunLog()
	log.entries = append(log.entries, entries...)
	return log
}

// Info records an informational entry
func (l *RunLog) Info(category Category, source, message string, details map[string]string) {
	l.add(SeverityInfo, category, source, message, details)
}

// Warn records a warning entry
func (l *RunLog) Warn(category Category, source, message string, details map[string]string) {
	l.add(SeverityWarning, category, source, message, details)
}

// Error records an error entry
func (l *RunLog) Error(category Category, source, message string, details map[string]string) {
	l.add(SeverityError, category, source, message, details)
}

func (l *RunLog) add(severity Severity, category Category, source, message string, details map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{
		Source:   source,
		Category: category,
		Severity: severity,
		Message:  message,
		Details:  details,
		At:       core.Now(),
	})
}

// Entries returns a copy of all entries in insertion order
func (l *RunLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Warnings returns entries at warning severity or above
func (l *RunLog) Warnings() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.entries {
		if e.Severity == SeverityWarning || e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of entries recorded so far
func (l *RunLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
