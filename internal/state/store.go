// ./internal/state/store.go
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

var (
	ErrPoolExists   = errors.New("pool yield state already initialized")
	ErrPoolNotFound = errors.New("pool yield state not found")
)

// Store holds the live PoolYieldState records. Lifecycle operations follow a
// copy-commit discipline: Get hands out a deep copy, the operation mutates
// it privately, and Commit replaces the stored record only when the whole
// operation succeeded. An aborted operation therefore leaves no trace.
//
// The mutex protects the map itself. Atomicity of a whole Get-mutate-Commit
// sequence is the caller's responsibility; the controller holds a per-pool
// operation lock across each one.
type Store struct {
	mu    sync.Mutex
	pools map[types.PoolID]types.PoolYieldState
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{pools: make(map[types.PoolID]types.PoolYieldState)}
}

// Create registers a pool exactly once. A second creation for the same pool
// is a host contract violation.
func (s *Store) Create(st types.PoolYieldState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[st.PoolID]; exists {
		return fmt.Errorf("%w: %s", ErrPoolExists, st.PoolID)
	}
	s.pools[st.PoolID] = st.Clone()
	return nil
}

// Get returns a deep copy of the pool's record.
func (s *Store) Get(poolID types.PoolID) (types.PoolYieldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pools[poolID]
	if !ok {
		return types.PoolYieldState{}, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	return st.Clone(), nil
}

// Commit replaces the stored record with the operation's mutated copy.
func (s *Store) Commit(st types.PoolYieldState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[st.PoolID]; !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, st.PoolID)
	}
	s.pools[st.PoolID] = st.Clone()
	return nil
}

// Snapshot returns deep copies of all records, ordered by pool ID.
func (s *Store) Snapshot() []types.PoolYieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PoolYieldState, 0, len(s.pools))
	for _, st := range s.pools {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out
}
