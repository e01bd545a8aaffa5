package prefs

import (
	"context"
	"sync"
)

// Memory is an in-memory preference store, used when no database is
// configured.
type Memory struct {
	mu    sync.Mutex
	flags map[string][]string
}

// NewMemory creates an empty in-memory preference store.
func NewMemory() *Memory {
	return &Memory{flags: make(map[string][]string)}
}

// Get returns the flagged patient identifiers for a user.
func (m *Memory) Get(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.flags[userID]...), nil
}

// Set replaces the flagged patient list for a user.
func (m *Memory) Set(ctx context.Context, userID string, patientIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[userID] = append([]string{}, patientIDs...)
	return nil
}
