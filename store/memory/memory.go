// Package memory provides in-memory store implementations (tests/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// MEMORY STORE - Implements every leave store interface
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	employees   map[leave.EmployeeID]leave.Employee
	events      map[leave.EmployeeID][]leave.Event
	expirations map[leave.EmployeeID][]leave.ExpirationRecord
	snapshots   map[snapKey]leave.Snapshot
	overrides   map[leave.EmployeeID][]leave.MonthlyOverride
}

type snapKey struct {
	ID   leave.EmployeeID
	Year int
}

func New() *Store {
	return &Store{
		employees:   make(map[leave.EmployeeID]leave.Employee),
		events:      make(map[leave.EmployeeID][]leave.Event),
		expirations: make(map[leave.EmployeeID][]leave.ExpirationRecord),
		snapshots:   make(map[snapKey]leave.Snapshot),
		overrides:   make(map[leave.EmployeeID][]leave.MonthlyOverride),
	}
}

// Interface checks
var (
	_ leave.Directory       = (*Store)(nil)
	_ leave.EventStore      = (*Store)(nil)
	_ leave.ExpirationStore = (*Store)(nil)
	_ leave.SnapshotStore   = (*Store)(nil)
	_ leave.OverrideStore   = (*Store)(nil)
)

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) Employee(_ context.Context, id leave.EmployeeID) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[id]
	if !ok {
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	return emp, nil
}

func (s *Store) Employees(_ context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]leave.Employee, 0, len(s.employees))
	for _, emp := range s.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) SaveEmployee(_ context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[emp.ID] = emp
	return nil
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) RecordEvent(_ context.Context, ev leave.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.events[ev.EmployeeID]
	i := sort.Search(len(evs), func(i int) bool { return evs[i].Date.After(ev.Date) })
	evs = append(evs, leave.Event{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	s.events[ev.EmployeeID] = evs
	return nil
}

func (s *Store) Events(_ context.Context, id leave.EmployeeID, from, to calendar.Date) ([]leave.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []leave.Event
	for _, ev := range s.events[id] {
		if ev.Date.AfterOrEqual(from) && ev.Date.Before(to) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (s *Store) DeleteEvent(_ context.Context, ev leave.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.events[ev.EmployeeID]
	for i, existing := range evs {
		if existing.Date.Equal(ev.Date) && existing.Kind == ev.Kind {
			s.events[ev.EmployeeID] = append(evs[:i], evs[i+1:]...)
			return nil
		}
	}
	return nil
}

// =============================================================================
// EXPIRATION STORE
// =============================================================================

func (s *Store) RecordExpiration(_ context.Context, rec leave.ExpirationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.expirations[rec.EmployeeID] {
		if existing.Kind == rec.Kind && existing.ExpiredAt.Equal(rec.ExpiredAt) {
			return leave.ErrDuplicateExpiration
		}
	}

	recs := s.expirations[rec.EmployeeID]
	i := sort.Search(len(recs), func(i int) bool { return recs[i].ExpiredAt.After(rec.ExpiredAt) })
	recs = append(recs, leave.ExpirationRecord{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	s.expirations[rec.EmployeeID] = recs
	return nil
}

func (s *Store) HasExpiration(_ context.Context, id leave.EmployeeID, kind leave.ExpirationKind, boundary calendar.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.expirations[id] {
		if rec.Kind == kind && rec.ExpiredAt.Equal(boundary) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Expirations(_ context.Context, id leave.EmployeeID, from, to calendar.Date) ([]leave.ExpirationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []leave.ExpirationRecord
	for _, rec := range s.expirations[id] {
		if rec.ExpiredAt.AfterOrEqual(from) && rec.ExpiredAt.BeforeOrEqual(to) {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (s *Store) DeleteExpirations(_ context.Context, id leave.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expirations, id)
	return nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (s *Store) SaveSnapshot(_ context.Context, snap leave.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapKey{ID: snap.EmployeeID, Year: snap.Year}] = snap
	return nil
}

func (s *Store) Snapshot(_ context.Context, id leave.EmployeeID, year int) (leave.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapKey{ID: id, Year: year}]
	if !ok {
		return leave.Snapshot{}, leave.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *Store) DeleteSnapshots(_ context.Context, id leave.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.snapshots {
		if key.ID == id {
			delete(s.snapshots, key)
		}
	}
	return nil
}

// =============================================================================
// OVERRIDE STORE
// =============================================================================

func (s *Store) UpsertOverride(_ context.Context, ov leave.MonthlyOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ovs := s.overrides[ov.EmployeeID]
	for i, existing := range ovs {
		if existing.Year == ov.Year && existing.Month == ov.Month {
			ovs[i] = ov
			return nil
		}
	}
	s.overrides[ov.EmployeeID] = append(ovs, ov)
	return nil
}

func (s *Store) Overrides(_ context.Context, id leave.EmployeeID, year int) ([]leave.MonthlyOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []leave.MonthlyOverride
	for _, ov := range s.overrides[id] {
		if ov.Year == year {
			result = append(result, ov)
		}
	}
	return result, nil
}
