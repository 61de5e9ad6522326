// Package memory provides an in-memory data-container store used for tests,
// ephemeral environments, and as the working set of the SQL-backed stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"unitofwork/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.StorageProvider = (*Store)(nil)

func mustApply(label string, err error) {
	if err != nil {
		panic(fmt.Errorf("memory store %s: %w", label, err))
	}
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Containers []domain.DataContainer `json:"containers"`
}

// Changeset lists the rows a successful save writes. Upserts carry the
// timestamps the containers will be stored with.
type Changeset struct {
	Upserts []domain.DataContainer
	Deletes []domain.ObjectID
}

// IsEmpty reports whether the changeset writes nothing.
func (c Changeset) IsEmpty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0
}

// PersistFunc mirrors a changeset into durable storage before the in-memory
// state is swapped. Returning an error leaves the store untouched.
type PersistFunc func(ctx context.Context, changes Changeset) error

type memoryState map[domain.ObjectID]domain.DataContainer

func (s memoryState) clone() memoryState {
	out := make(memoryState, len(s))
	for id, c := range s {
		out[id] = c.Clone()
	}
	return out
}

// Store keeps data containers keyed by object identifier and applies save
// batches atomically under optimistic concurrency.
type Store struct {
	mu    sync.RWMutex
	state memoryState
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: make(memoryState)}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{Containers: make([]domain.DataContainer, 0, len(s.state))}
	for _, c := range s.state {
		out.Containers = append(out.Containers, c.Clone())
	}
	domain.SortContainers(out.Containers)
	return out
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := make(memoryState, len(snapshot.Containers))
	for _, c := range snapshot.Containers {
		if c.ID.IsZero() {
			mustApply("import", fmt.Errorf("container without identifier"))
		}
		state[c.ID] = c.Clone()
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Len returns the number of stored containers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// LoadDataContainer returns the stored container for id.
func (s *Store) LoadDataContainer(_ context.Context, id domain.ObjectID) (domain.DataContainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state[id]
	if !ok {
		return domain.DataContainer{}, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, id)
	}
	return c.Clone(), nil
}

// LoadRelatedDataContainers returns every container whose foreign key
// property points at owner, ordered by identifier.
func (s *Store) LoadRelatedDataContainers(_ context.Context, property domain.PropertyID, owner domain.ObjectID) ([]domain.DataContainer, error) {
	if owner.IsZero() {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DataContainer
	for _, c := range s.state {
		if c.ID.Class != property.Class() {
			continue
		}
		if c.ForeignKey(property) == owner {
			out = append(out, c.Clone())
		}
	}
	domain.SortContainers(out)
	return out, nil
}

// Save applies the batch in memory only.
func (s *Store) Save(ctx context.Context, batch domain.SaveBatch) error {
	return s.SaveWith(ctx, batch, nil)
}

// SaveWith validates the batch against the current state, hands the resulting
// changeset to persist, and swaps state once persist succeeds. Nothing is
// written when any container fails its concurrency check.
func (s *Store) SaveWith(ctx context.Context, batch domain.SaveBatch, persist PersistFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	var changes Changeset
	for _, c := range batch.Inserts {
		if c.ID.IsZero() {
			return domain.InvalidOperationf("insert container without identifier")
		}
		if _, exists := next[c.ID]; exists {
			return fmt.Errorf("%w: %s already exists", domain.ErrConcurrencyViolation, c.ID)
		}
		stored := c.Clone()
		stored.Timestamp = c.Timestamp + 1
		next[c.ID] = stored
		changes.Upserts = append(changes.Upserts, stored)
	}
	for _, c := range batch.Updates {
		if err := checkTimestamp(next, c); err != nil {
			return err
		}
		stored := c.Clone()
		stored.Timestamp = c.Timestamp + 1
		next[c.ID] = stored
		changes.Upserts = append(changes.Upserts, stored)
	}
	for _, c := range batch.Deletes {
		if err := checkTimestamp(next, c); err != nil {
			return err
		}
		delete(next, c.ID)
		changes.Deletes = append(changes.Deletes, c.ID)
	}
	domain.SortContainers(changes.Upserts)
	sort.Slice(changes.Deletes, func(i, j int) bool { return changes.Deletes[i].Less(changes.Deletes[j]) })

	if persist != nil && !changes.IsEmpty() {
		if err := persist(ctx, changes); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

func checkTimestamp(state memoryState, c domain.DataContainer) error {
	stored, ok := state[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s no longer exists", domain.ErrConcurrencyViolation, c.ID)
	}
	if stored.Timestamp != c.Timestamp {
		return fmt.Errorf("%w: %s timestamp %d, stored %d", domain.ErrConcurrencyViolation, c.ID, c.Timestamp, stored.Timestamp)
	}
	return nil
}
