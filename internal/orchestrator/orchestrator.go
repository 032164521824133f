package orchestrator

import "context"

// ServiceStatus is the observed state of a collaborator.
type ServiceStatus string

const (
	StatusHealthy     ServiceStatus = "healthy"
	StatusUnreachable ServiceStatus = "unreachable"
	StatusMissing     ServiceStatus = "missing"
	StatusUnknown     ServiceStatus = "unknown"
)

// ServiceInfo holds the current state of a collaborator.
type ServiceInfo struct {
	Name     string        `json:"name"`
	Status   ServiceStatus `json:"status"`
	Category string        `json:"category"`
	Detail   string        `json:"detail,omitempty"`
}

// Checker reports collaborator health.
type Checker interface {
	Status(ctx context.Context, name string) (*ServiceInfo, error)
	StatusAll(ctx context.Context) ([]ServiceInfo, error)
}
