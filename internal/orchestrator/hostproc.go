package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"
)

// Prober checks collaborators by HTTP health URL or by executable lookup.
type Prober struct {
	httpClient *http.Client
	registry   *Registry
	lookPath   func(string) (string, error)
}

// NewProber creates a prober over registry.
func NewProber(registry *Registry) *Prober {
	return &Prober{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		registry:   registry,
		lookPath:   exec.LookPath,
	}
}

// Status returns the current state of one collaborator.
func (p *Prober) Status(ctx context.Context, name string) (*ServiceInfo, error) {
	meta, ok := p.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("service %q not in registry", name)
	}
	info := &ServiceInfo{Name: name, Category: meta.Category, Status: StatusUnknown}

	if meta.Binary != "" {
		path, err := p.lookPath(meta.Binary)
		if err != nil {
			info.Status = StatusMissing
			info.Detail = err.Error()
			return info, nil
		}
		info.Status = StatusHealthy
		info.Detail = path
	}

	if meta.HealthURL == "" {
		return info, nil
	}
	if err := p.probeHealth(ctx, meta.HealthURL); err != nil {
		info.Status = StatusUnreachable
		info.Detail = err.Error()
		return info, nil
	}
	info.Status = StatusHealthy
	return info, nil
}

// StatusAll returns the status of every registered collaborator.
func (p *Prober) StatusAll(ctx context.Context) ([]ServiceInfo, error) {
	names := p.registry.Names()
	results := make([]ServiceInfo, 0, len(names))
	for _, name := range names {
		info, err := p.Status(ctx, name)
		if err != nil {
			return nil, err
		}
		results = append(results, *info)
	}
	return results, nil
}

func (p *Prober) probeHealth(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
