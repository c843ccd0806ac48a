package registry

import (
	"context"
	"sync"
	"sync/atomic"
)

// Registry exposes the currently published registry snapshot. Callers must
// take one snapshot per decision and use it for every lookup in that
// decision.
type Registry interface {
	Current() *Snapshot
}

// Store holds the published snapshot behind an atomic pointer. Readers never
// lock; Reload builds a complete snapshot and swaps it in, so readers see
// either the old registry or the new one, never a mix.
type Store struct {
	current atomic.Pointer[Snapshot]
	report  atomic.Pointer[LoadReport]

	loader   *Loader
	reloadMu sync.Mutex
	onReload func(LoadReport)
}

// NewStore creates a Store publishing snap. loader may be nil for stores
// that are only ever swapped by hand (tests, fixtures).
func NewStore(snap *Snapshot, loader *Loader) *Store {
	if snap == nil {
		snap = Empty()
	}
	s := &Store{loader: loader}
	s.current.Store(snap)
	return s
}

// OnReload registers a callback invoked after every successful reload.
// It must be set before the store is shared.
func (s *Store) OnReload(fn func(LoadReport)) {
	s.onReload = fn
}

// Current implements Registry.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Swap publishes snap and returns the previous snapshot.
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	if snap == nil {
		snap = Empty()
	}
	return s.current.Swap(snap)
}

// Reload re-reads both sources and publishes the result. A source that
// fails keeps its collection from the current snapshot; the report still
// shows it as degraded. Concurrent reloads are serialised and in-flight
// validations keep the snapshot they already hold.
func (s *Store) Reload(ctx context.Context) LoadReport {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.loader == nil {
		return LoadReport{}
	}
	snap, report := s.loader.LoadOver(ctx, s.Current())
	s.current.Store(snap)
	s.report.Store(&report)
	if s.onReload != nil {
		s.onReload(report)
	}
	return report
}

// LastReport returns the report from the most recent Reload, if any.
func (s *Store) LastReport() (LoadReport, bool) {
	r := s.report.Load()
	if r == nil {
		return LoadReport{}, false
	}
	return *r, true
}
