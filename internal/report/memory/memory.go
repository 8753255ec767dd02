// Package memory is an in-process report writer for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendly/internal/report"
)

type Store struct {
	mu    sync.Mutex
	items []report.Entry
}

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e report.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []report.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Entry(nil), s.items...)
}
