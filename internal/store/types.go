package store

import "time"

// Outcome values of an export row.
const (
	OutcomeRunning   = "running"
	OutcomeDone      = "done"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Export is one orchestrator run against a target.
type Export struct {
	ID          string
	Target      string
	Style       string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Outcome     string
	FailedPhase string
	PackagingOK bool
	Warnings    int
	Error       string
}

// PhaseEvent records a phase entered or finished during an export.
type PhaseEvent struct {
	ExportID   string
	Phase      string
	Status     string // "ok", "skipped", "warning", "failed"
	Detail     string
	RecordedAt time.Time
}

// BackupEvent records one backup or restore action on a tracked file.
type BackupEvent struct {
	ID        int64
	Target    string
	File      string
	Action    string
	Timestamp time.Time
}
