package svcclient

import (
	"fmt"
	"time"

	"github.com/dropDatabas3/reentry/internal/config"
)

// Entry is one resolved service registry entry: the credential URL the
// pipeline composes requests against, plus per-service call options.
type Entry struct {
	ID         string
	URL        string
	Credential string
	Mock       bool
	Timeout    time.Duration
	FilterKeys []string
}

// Registry resolves configured outbound services by ID.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry builds a Registry from the configured service entries.
func NewRegistry(entries []config.ServiceEntry) *Registry {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		timeout := time.Duration(0)
		if e.Timeout != "" {
			// validated at config load
			timeout, _ = time.ParseDuration(e.Timeout)
		}
		r.entries[e.ID] = Entry{
			ID:         e.ID,
			URL:        e.URL,
			Credential: e.Credential,
			Mock:       e.Mock,
			Timeout:    timeout,
			FilterKeys: e.FilterKeys,
		}
	}
	return r
}

// Lookup returns the entry for id or an error when the service is not
// configured.
func (r *Registry) Lookup(id string) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("service %q not configured", id)
	}
	return e, nil
}
