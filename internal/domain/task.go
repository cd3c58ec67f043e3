package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusSuspended TaskStatus = "SUSPENDED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusAssigned, TaskStatusSuspended,
		TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Task is a unit of work, either standalone or owned by a process instance.
// Assignee and Owner are empty when unset. Variables holds only the projected
// subset requested by the caller, never the full stored set.
type Task struct {
	ID                uuid.UUID  `json:"id"`
	ProcessInstanceID *uuid.UUID `json:"process_instance_id"`
	DefinitionKey     string     `json:"definition_key"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Status            TaskStatus `json:"status"`
	Assignee          string     `json:"assignee"`
	Owner             string     `json:"owner"`
	Priority          int        `json:"priority"`
	ParentTaskID      *uuid.UUID `json:"parent_task_id"`
	CreatedAt         time.Time  `json:"created_at"`
	DueDate           *time.Time `json:"due_date"`
	Variables         []Variable `json:"variables,omitempty"`
}

// Standalone reports whether the task belongs to no process instance.
func (t Task) Standalone() bool {
	return t.ProcessInstanceID == nil
}
