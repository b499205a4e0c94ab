// Package store records assignment runs, their assignments and the boundary
// layers they used in a local SQLite database.
package store

import (
	"time"

	"github.com/sells-group/region-cli/internal/batch"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one execution of the assign command.
type Run struct {
	ID        string       `json:"id"`
	Input     string       `json:"input"`
	Layers    []string     `json:"layers"`
	Status    RunStatus    `json:"status"`
	Stats     *batch.Stats `json:"stats,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// AssignmentRow is one stored (point, layer) assignment.
type AssignmentRow struct {
	PointID   string `json:"point_id"`
	Layer     string `json:"layer"`
	Code      string `json:"code"`
	Match     string `json:"match"`
	Longitude string `json:"longitude"`
	Latitude  string `json:"latitude"`
}
