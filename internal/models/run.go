package models

import (
	"fmt"
	"time"
)

// TaskState is the lifecycle state of a background pass.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskSuccess TaskState = "success"
	TaskFailure TaskState = "failure"
	TaskRevoked TaskState = "revoked"
)

// Done reports whether the task can no longer change state.
func (s TaskState) Done() bool {
	return s == TaskSuccess || s == TaskFailure || s == TaskRevoked
}

// Run is the history record of one background pass.
type Run struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"sequence"`
	TaskID       string     `json:"task_id"`
	Action       Action     `json:"action"`
	Module       string     `json:"module"`
	Status       TaskState  `json:"status"`
	Processed    int        `json:"processed"`
	Failed       int        `json:"failed"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewRun creates a pending run for a task.
func NewRun(taskID string, action Action, module string) *Run {
	now := time.Now()
	return &Run{
		TaskID:    taskID,
		Action:    action,
		Module:    module,
		Status:    TaskPending,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Finish records the final state and counters of the run.
func (r *Run) Finish(status TaskState, processed, failed int, err error) {
	now := time.Now()
	r.Status = status
	r.Processed = processed
	r.Failed = failed
	r.FinishedAt = &now
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Duration returns the run time, up to now for unfinished runs.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Validate checks the fields stored in the runs table.
func (r *Run) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("task id is required")
	}
	if _, err := ParseAction(string(r.Action)); err != nil {
		return err
	}
	if r.Module == "" {
		return fmt.Errorf("module is required")
	}
	switch r.Status {
	case TaskPending, TaskRunning, TaskSuccess, TaskFailure, TaskRevoked:
	default:
		return fmt.Errorf("unknown task state %q", r.Status)
	}
	if r.Processed < 0 || r.Failed < 0 || r.Failed > r.Processed {
		return fmt.Errorf("invalid counters: processed %d, failed %d", r.Processed, r.Failed)
	}
	return nil
}
