// Package memory keeps scenario snapshots in process, for tests and for
// running the worker without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashplan/internal/export"
	ports "cashplan/internal/sheets"
)

// Snapshot is one published scenario.
type Snapshot struct {
	ScenarioID   string
	ScenarioName string
	Tabs         map[string][][]interface{}
	WrittenAt    time.Time
}

type Store struct {
	mu        sync.Mutex
	snapshots []Snapshot
	failWith  error
}

var _ ports.SnapshotWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// FailWith makes subsequent writes return err; nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// WriteSnapshot stores the tables of d and returns a synthetic reference.
func (s *Store) WriteSnapshot(ctx context.Context, d export.Data) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return "", s.failWith
	}

	tabs := make(map[string][][]interface{})
	for _, t := range export.Tables(d) {
		tabs[ports.TabTitle(d.Scenario.Name, t.Name)] = t.Rows
	}
	s.snapshots = append(s.snapshots, Snapshot{
		ScenarioID:   d.Scenario.ID,
		ScenarioName: d.Scenario.Name,
		Tabs:         tabs,
		WrittenAt:    time.Now().UTC(),
	})
	return fmt.Sprintf("mem:%d", len(s.snapshots)), nil
}

// Snapshots returns a copy of everything written so far.
func (s *Store) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snapshots...)
}
