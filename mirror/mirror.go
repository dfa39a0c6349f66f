// Package mirror keeps a local copy of the mod registry listing and
// applies optimistic, reversible enable/disable mutations against it.
// The registry service stays the single source of truth: every mutation
// is followed by a full refresh, and local flips are only hints until
// that refresh lands.
package mirror

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Service is the capability surface the mirror needs from the registry
// service. One Service instance is scoped to one game root.
type Service interface {
	// Rescan asks the service to re-discover mods on disk and merge the
	// findings into its registry.
	Rescan(ctx context.Context) error
	// ListMods returns all archive-installed mods.
	ListMods(ctx context.Context) ([]ModRecord, error)
	// ListSkins returns all registered loose-folder skin mods.
	ListSkins(ctx context.Context) ([]SkinModRecord, error)
	// SetEnabled enables or disables the mod or skin with the given key.
	SetEnabled(ctx context.Context, key string, enabled bool) error
}

// Scanner gives the registry service a chance to pick up mods added or
// removed directly on disk before a listing is trusted.
type Scanner struct {
	svc Service
	log *zap.SugaredLogger
}

func NewScanner(svc Service, log *zap.SugaredLogger) *Scanner {
	return &Scanner{svc: svc, log: log}
}

// Reconcile triggers a filesystem rescan. Failures are reported to the
// caller but never block a subsequent listing; a stale discovery beats no
// listing at all.
func (s *Scanner) Reconcile(ctx context.Context) error {
	if err := s.svc.Rescan(ctx); err != nil {
		s.log.Warnw("Registry rescan failed", zap.Error(err))
		return fmt.Errorf("registry rescan: %w", err)
	}
	return nil
}

// togglePhase tracks one optimistic mutation through its lifecycle.
type togglePhase int

const (
	togglePending togglePhase = iota
	toggleConfirmed
	toggleRolledBack
)

type toggleState struct {
	phase togglePhase
	prior bool // enabled value before the optimistic flip
}

// ToggleResult reports how one SetEnabled call settled.
type ToggleResult struct {
	Key      string
	Enabled  bool // local enabled value after settling
	Reverted bool
	Err      error
}

// Mirror holds the authoritative-as-of-last-sync snapshot of mods and
// skins for one game root.
type Mirror struct {
	svc     Service
	scanner *Scanner
	log     *zap.SugaredLogger

	mu           sync.Mutex
	snap         Snapshot
	hasSnap      bool
	issued       uint64 // refresh generations handed out
	applied      uint64 // newest generation that committed
	pending      map[string]*toggleState
	reconcileErr error // from the most recent refresh's rescan step
}

func New(svc Service, scanner *Scanner, log *zap.SugaredLogger) *Mirror {
	return &Mirror{
		svc:     svc,
		scanner: scanner,
		log:     log,
		pending: make(map[string]*toggleState),
	}
}

// Snapshot returns the last known-good listing. The boolean is false
// until the first successful Refresh. The entries are a copy; callers
// may sort or mutate them without affecting the mirror.
func (m *Mirror) Snapshot() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone(), m.hasSnap
}

// LastReconcileError returns the rescan error from the most recent
// Refresh, surfaced separately from listing errors.
func (m *Mirror) LastReconcileError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconcileErr
}

// IsPending reports whether an optimistic toggle for key is still
// awaiting service confirmation.
func (m *Mirror) IsPending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.pending[key]
	return ok && st.phase == togglePending
}

// Refresh rescans and re-lists the registry, replacing the snapshot
// wholesale. On any failure the previous snapshot stays in place and is
// returned alongside the error so callers can keep rendering while
// offering a retry. Overlapping refreshes resolve last-issued-wins: a
// slow listing never overwrites a newer one.
func (m *Mirror) Refresh(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	m.issued++
	gen := m.issued
	m.mu.Unlock()

	reconcileErr := m.scanner.Reconcile(ctx)
	if reconcileErr != nil {
		// Stale discovery is better than no listing; carry on.
		m.log.Warnw("Reconciliation failed, listing anyway", zap.Error(reconcileErr))
	}

	mods, err := m.svc.ListMods(ctx)
	if err != nil {
		return m.keep(gen, reconcileErr), fmt.Errorf("list mods: %w", err)
	}

	skins, err := m.svc.ListSkins(ctx)
	if err != nil {
		return m.keep(gen, reconcileErr), fmt.Errorf("list skins: %w", err)
	}

	snap, err := buildSnapshot(mods, skins)
	if err != nil {
		return m.keep(gen, reconcileErr), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen < m.applied {
		// A refresh issued after this one already committed; our data is
		// stale and gets discarded, reconcile status included.
		m.log.Debugw("Discarding stale refresh", zap.Uint64("generation", gen), zap.Uint64("applied", m.applied))
		return m.snap.clone(), nil
	}
	m.reconcileErr = reconcileErr
	m.applied = gen
	m.snap = snap
	m.hasSnap = true
	m.log.Infow("Mirror refreshed", zap.Int("entries", len(snap.Entries)))
	return snap.clone(), nil
}

// keep records the reconcile outcome and returns the retained snapshot
// after a failed refresh.
func (m *Mirror) keep(gen uint64, reconcileErr error) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen >= m.applied {
		m.reconcileErr = reconcileErr
	}
	return m.snap.clone()
}

// SetEnabled applies an optimistic two-phase toggle: the local snapshot
// flips synchronously, the service call runs asynchronously, and the
// result arrives on the returned channel once the mutation settles.
// On service failure the local value is reverted to its pre-call state.
// Either way a refresh follows, because even a reported failure may have
// partially applied on disk.
func (m *Mirror) SetEnabled(ctx context.Context, key string, enabled bool) (<-chan ToggleResult, error) {
	m.mu.Lock()
	if !m.hasSnap {
		m.mu.Unlock()
		return nil, fmt.Errorf("no snapshot yet: refresh before toggling")
	}
	idx := -1
	for i := range m.snap.Entries {
		if m.snap.Entries[i].Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("unknown mod %q", key)
	}
	if st, ok := m.pending[key]; ok && st.phase == togglePending {
		m.mu.Unlock()
		return nil, fmt.Errorf("toggle for %q still pending", key)
	}

	prior := m.snap.Entries[idx].Enabled
	m.snap.Entries[idx].Enabled = enabled
	m.pending[key] = &toggleState{phase: togglePending, prior: prior}
	m.mu.Unlock()

	done := make(chan ToggleResult, 1)
	go m.settleToggle(ctx, key, enabled, prior, done)
	return done, nil
}

func (m *Mirror) settleToggle(ctx context.Context, key string, enabled, prior bool, done chan<- ToggleResult) {
	err := m.svc.SetEnabled(ctx, key, enabled)

	m.mu.Lock()
	st := m.pending[key]
	result := ToggleResult{Key: key, Enabled: enabled}
	if err != nil {
		// Roll back the hint; the registry never confirmed it.
		if st != nil {
			st.phase = toggleRolledBack
		}
		for i := range m.snap.Entries {
			if m.snap.Entries[i].Key == key {
				m.snap.Entries[i].Enabled = prior
				break
			}
		}
		result.Enabled = prior
		result.Reverted = true
		result.Err = fmt.Errorf("set enabled %q: %w", key, err)
		m.log.Errorw("Toggle rejected by registry, reverted", zap.String("key", key), zap.Error(err))
	} else {
		if st != nil {
			st.phase = toggleConfirmed
		}
		m.log.Infow("Toggle confirmed", zap.String("key", key), zap.Bool("enabled", enabled))
	}
	delete(m.pending, key)
	m.mu.Unlock()

	// Ground truth follows either way: on success the service may have
	// adjusted the final state, on failure it may have partially applied.
	if _, refreshErr := m.Refresh(ctx); refreshErr != nil {
		m.log.Warnw("Post-toggle refresh failed", zap.String("key", key), zap.Error(refreshErr))
	}

	done <- result
}
