// Package memory implements store.Store in process memory. It backs tests
// and STORE_DRIVER=memory. Transactions stage writes and apply them on
// commit, so a failed TxFunc leaves no trace.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
	"github.com/pixelcoders/roadmap-progress/pkg/keylock"
)

var errClosed = shared.WrapError("memory", "Store", shared.ErrUnavailable, "store is closed", errors.New("closed"))

type pairKey struct {
	user    string
	roadmap string
}

type progressRow struct {
	id          string
	userID      string
	roadmapID   string
	nodes       []string
	startedAt   time.Time
	lastUpdated time.Time
}

func (r progressRow) clone() progressRow {
	r.nodes = append([]string(nil), r.nodes...)
	return r
}

func (r progressRow) has(nodeID string) bool {
	for _, n := range r.nodes {
		if n == nodeID {
			return true
		}
	}
	return false
}

func (r progressRow) record() *progress.Record {
	return progress.Restore(progress.RestoreParams{
		ID:             r.id,
		UserID:         r.userID,
		RoadmapID:      r.roadmapID,
		CompletedNodes: r.nodes,
		StartedAt:      r.startedAt,
		LastUpdated:    r.lastUpdated,
	})
}

// Store is the in-memory backend.
type Store struct {
	mu       sync.RWMutex
	progress map[pairKey]progressRow
	states   map[string]gamification.GameState
	unlocks  map[string][]gamification.Unlock
	closed   bool

	locks *keylock.Locker
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		progress: make(map[pairKey]progressRow),
		states:   make(map[string]gamification.GameState),
		unlocks:  make(map[string][]gamification.Unlock),
		locks:    keylock.New(),
	}
}

func (s *Store) Progress() progress.Repository { return progressRepo{s: s} }

func (s *Store) GameStates() gamification.GameStateRepository { return stateRepo{s: s} }

func (s *Store) Unlocks() gamification.UnlockRepository { return unlockRepo{s: s} }

// Ping reports ErrUnavailable once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed. Subsequent calls fail with ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// WithinUserTx serializes fn per user and applies its writes only if it
// returns nil.
func (s *Store) WithinUserTx(ctx context.Context, userID string, fn store.TxFunc) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.Ping(ctx); err != nil {
		return err
	}

	tx := &txState{
		progress: make(map[pairKey]progressRow),
		states:   make(map[string]gamification.GameState),
		unlocks:  make(map[string][]gamification.Unlock),
	}
	if err := fn(ctx, txUnit{s: s, tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *txState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for k, row := range tx.progress {
		s.progress[k] = row
	}
	for id, st := range tx.states {
		s.states[id] = st
	}
	for user, us := range tx.unlocks {
		s.unlocks[user] = append(s.unlocks[user], us...)
	}
	return nil
}

// txState holds writes staged by one transaction.
type txState struct {
	progress map[pairKey]progressRow
	states   map[string]gamification.GameState
	unlocks  map[string][]gamification.Unlock
}

type txUnit struct {
	s  *Store
	tx *txState
}

func (u txUnit) Progress() progress.Repository { return progressRepo{s: u.s, tx: u.tx} }

func (u txUnit) GameStates() gamification.GameStateRepository { return stateRepo{s: u.s, tx: u.tx} }

func (u txUnit) Unlocks() gamification.UnlockRepository { return unlockRepo{s: u.s, tx: u.tx} }

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type progressRepo struct {
	s  *Store
	tx *txState
}

func (r progressRepo) lookup(k pairKey) (progressRow, bool) {
	if r.tx != nil {
		if row, ok := r.tx.progress[k]; ok {
			return row, true
		}
	}
	row, ok := r.s.progress[k]
	return row, ok
}

func (r progressRepo) Get(_ context.Context, userID, roadmapID string) (*progress.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	row, ok := r.lookup(pairKey{userID, roadmapID})
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return row.record(), nil
}

func (r progressRepo) ListByUser(_ context.Context, userID string) ([]*progress.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}

	rows := make(map[string]progressRow)
	for k, row := range r.s.progress {
		if k.user == userID {
			rows[k.roadmap] = row
		}
	}
	if r.tx != nil {
		for k, row := range r.tx.progress {
			if k.user == userID {
				rows[k.roadmap] = row
			}
		}
	}

	records := make([]*progress.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	progress.SortByRoadmap(records)
	return records, nil
}

func (r progressRepo) AppendNode(_ context.Context, p progress.AppendParams) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return false, errClosed
	}

	k := pairKey{p.UserID, p.RoadmapID}
	row, ok := r.lookup(k)
	if ok && row.has(p.NodeID) {
		return false, nil
	}
	if ok {
		row = row.clone()
	} else {
		row = progressRow{id: p.ProgressID, userID: p.UserID, roadmapID: p.RoadmapID, startedAt: p.At}
	}
	row.nodes = append(row.nodes, p.NodeID)
	row.lastUpdated = p.At

	if r.tx != nil {
		r.tx.progress[k] = row
	} else {
		r.s.progress[k] = row
	}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME STATE
// ══════════════════════════════════════════════════════════════════════════════

type stateRepo struct {
	s  *Store
	tx *txState
}

func (r stateRepo) Get(_ context.Context, userID string) (*gamification.GameState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	if r.tx != nil {
		if st, ok := r.tx.states[userID]; ok {
			return &st, nil
		}
	}
	st, ok := r.s.states[userID]
	if !ok {
		return nil, shared.ErrGameStateNotFound
	}
	return &st, nil
}

func (r stateRepo) Save(_ context.Context, st *gamification.GameState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return errClosed
	}
	if r.tx != nil {
		r.tx.states[st.UserID] = *st
		return nil
	}
	r.s.states[st.UserID] = *st
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCKS
// ══════════════════════════════════════════════════════════════════════════════

type unlockRepo struct {
	s  *Store
	tx *txState
}

func (r unlockRepo) all(userID string) []gamification.Unlock {
	out := append([]gamification.Unlock(nil), r.s.unlocks[userID]...)
	if r.tx != nil {
		out = append(out, r.tx.unlocks[userID]...)
	}
	return out
}

func (r unlockRepo) Insert(_ context.Context, u gamification.Unlock) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return false, errClosed
	}
	for _, existing := range r.all(u.UserID) {
		if existing.AchievementID == u.AchievementID {
			return false, nil
		}
	}
	if r.tx != nil {
		r.tx.unlocks[u.UserID] = append(r.tx.unlocks[u.UserID], u)
	} else {
		r.s.unlocks[u.UserID] = append(r.s.unlocks[u.UserID], u)
	}
	return true, nil
}

func (r unlockRepo) ListByUser(_ context.Context, userID string) ([]gamification.Unlock, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	out := r.all(userID)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].AchievementID < out[j].AchievementID
		}
		return out[i].EarnedAt.Before(out[j].EarnedAt)
	})
	return out, nil
}
