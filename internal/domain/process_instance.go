package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessInstanceStatus describes the lifecycle state of a process instance.
type ProcessInstanceStatus string

const (
	ProcessInstanceStatusRunning   ProcessInstanceStatus = "RUNNING"
	ProcessInstanceStatusSuspended ProcessInstanceStatus = "SUSPENDED"
	ProcessInstanceStatusCompleted ProcessInstanceStatus = "COMPLETED"
	ProcessInstanceStatusCancelled ProcessInstanceStatus = "CANCELLED"
)

// Valid reports whether s is a known process instance status.
func (s ProcessInstanceStatus) Valid() bool {
	switch s {
	case ProcessInstanceStatusRunning, ProcessInstanceStatusSuspended,
		ProcessInstanceStatusCompleted, ProcessInstanceStatusCancelled:
		return true
	}
	return false
}

// ProcessInstance is one running execution of a process definition.
// ServiceName and ServiceFullName identify the runtime service the definition
// was deployed to; access policies match against them.
type ProcessInstance struct {
	ID              uuid.UUID             `json:"id"`
	DefinitionKey   string                `json:"definition_key"`
	ServiceName     string                `json:"service_name"`
	ServiceFullName string                `json:"service_full_name"`
	Name            string                `json:"name"`
	Initiator       string                `json:"initiator"`
	Status          ProcessInstanceStatus `json:"status"`
	StartedAt       time.Time             `json:"started_at"`
	Variables       []Variable            `json:"variables,omitempty"`
}
