package model

import "time"

// RunStatus tracks the lifecycle of a generation run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run describes one invocation of the generator.
type Run struct {
	StartedAt       time.Time
	FinishedAt      *time.Time
	ID              string
	SourceSystem    string
	OutputDir       string
	Status          RunStatus
	Error           string
	TablesGenerated int
	TablesSkipped   int
}

// FallbackType is a base type that had no mapping and fell back to the default.
type FallbackType struct {
	BaseType    string `json:"base_type"`
	TargetType  string `json:"target_type"`
	Occurrences int    `json:"occurrences"`
}
