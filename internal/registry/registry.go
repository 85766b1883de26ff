// Package registry is the named collection of monitors with lifecycle
// operations, per §4.6.
package registry

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/brinkwave/hlswatch/internal/engine"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

const maxIDLen = 128

// ErrMonitorIDConflict is returned by Create when id is already registered.
type ErrMonitorIDConflict struct{ ID string }

func (e *ErrMonitorIDConflict) Error() string {
	return fmt.Sprintf("monitor id %q already exists", e.ID)
}

// ErrInvalidID is returned by Create when a caller-provided id fails
// validation.
type ErrInvalidID struct {
	ID     string
	Reason string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("invalid monitor id %q: %s", e.ID, e.Reason)
}

// ErrMonitorNotFound is returned by Get/Delete when id is unknown.
type ErrMonitorNotFound struct{ ID string }

func (e *ErrMonitorNotFound) Error() string {
	return fmt.Sprintf("monitor %q not found", e.ID)
}

// Registry maps monitor id to *engine.Monitor.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*engine.Monitor
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{monitors: make(map[string]*engine.Monitor)}
}

// Create validates id (generating one if empty), builds a Monitor from cfg,
// and registers it. It fails with ErrMonitorIDConflict if id is already
// taken or ErrInvalidID if a caller-provided id is malformed.
func (r *Registry) Create(id string, cfg engine.Config) (*engine.Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = generateID()
	} else if err := validateID(id); err != nil {
		return nil, err
	}

	if _, exists := r.monitors[id]; exists {
		return nil, &ErrMonitorIDConflict{ID: id}
	}

	m := engine.New(id, cfg)
	r.monitors[id] = m
	return m, nil
}

func validateID(id string) error {
	if len(id) == 0 {
		return &ErrInvalidID{ID: id, Reason: "must be non-empty"}
	}
	if len(id) > maxIDLen {
		return &ErrInvalidID{ID: id, Reason: fmt.Sprintf("exceeds maximum length %d", maxIDLen)}
	}
	if !idPattern.MatchString(id) {
		return &ErrInvalidID{ID: id, Reason: "must match [A-Za-z0-9_.-]+"}
	}
	return nil
}

// generateID mints a short token for auto-generated monitor ids. The first
// 12 hex characters of uuid.New, with the format's hyphens stripped, give
// ample collision resistance for a single registry's lifetime without the
// visual noise of a full UUID.
func generateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// Get returns the monitor registered under id.
func (r *Registry) Get(id string) (*engine.Monitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[id]
	if !ok {
		return nil, &ErrMonitorNotFound{ID: id}
	}
	return m, nil
}

// List returns every registered monitor id, unordered.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.monitors))
	for id := range r.monitors {
		ids = append(ids, id)
	}
	return ids
}

// Delete stops and removes the monitor registered under id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	m, ok := r.monitors[id]
	if !ok {
		r.mu.Unlock()
		return &ErrMonitorNotFound{ID: id}
	}
	delete(r.monitors, id)
	r.mu.Unlock()

	m.Stop()
	return nil
}

// DeleteAll stops and removes every registered monitor.
func (r *Registry) DeleteAll() {
	r.mu.Lock()
	monitors := make([]*engine.Monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		monitors = append(monitors, m)
	}
	r.monitors = make(map[string]*engine.Monitor)
	r.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
	}
}
