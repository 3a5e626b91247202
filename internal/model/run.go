package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one CLI analysis and the columns it produced.
type Run struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Input     string         `json:"input"`
	Params    map[string]any `json:"params,omitempty"`
	Status    RunStatus      `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
