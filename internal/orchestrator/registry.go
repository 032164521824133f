// Package orchestrator keeps the list of external collaborators the gateway
// depends on and probes whether each is usable.
package orchestrator

import "sort"

// ServiceMeta holds static metadata for a collaborator.
type ServiceMeta struct {
	Category  string // "render", "tts", "llm", "lipsync", "session"
	HealthURL string // URL to probe for readiness
	Binary    string // local executable that must be on PATH
}

// Registry is the set of collaborators the gateway reports on.
type Registry struct {
	services map[string]ServiceMeta
}

// NewRegistry creates a registry from a map of service metadata.
func NewRegistry(services map[string]ServiceMeta) *Registry {
	return &Registry{services: services}
}

// Lookup returns metadata for a service, or false if not registered.
func (r *Registry) Lookup(name string) (ServiceMeta, bool) {
	m, ok := r.services[name]
	return m, ok
}

// Names returns all registered service names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.services))
	for k := range r.services {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
