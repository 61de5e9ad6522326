package domain

import (
	"context"
	"sort"
)

// ObjectState describes the lifecycle of a domain object within one transaction.
type ObjectState string

const (
	StateNew       ObjectState = "new"
	StateUnchanged ObjectState = "unchanged"
	StateChanged   ObjectState = "changed"
	StateDeleted   ObjectState = "deleted"
	// StateDiscarded objects no longer exist in the transaction: new objects
	// that were deleted or rolled back, and deleted objects after commit.
	StateDiscarded ObjectState = "discarded"
)

// DataContainer is the persisted form of a domain object as seen by the
// relation engine: its identity, optimistic timestamp, and foreign keys.
type DataContainer struct {
	ID          ObjectID                `json:"id"`
	Timestamp   int64                   `json:"timestamp"`
	ForeignKeys map[PropertyID]ObjectID `json:"foreign_keys,omitempty"`
}

// Clone returns a deep copy of the container.
func (c DataContainer) Clone() DataContainer {
	out := DataContainer{ID: c.ID, Timestamp: c.Timestamp}
	if c.ForeignKeys != nil {
		out.ForeignKeys = make(map[PropertyID]ObjectID, len(c.ForeignKeys))
		for k, v := range c.ForeignKeys {
			out.ForeignKeys[k] = v
		}
	}
	return out
}

// ForeignKey returns the related object stored under property.
func (c DataContainer) ForeignKey(property PropertyID) ObjectID {
	return c.ForeignKeys[property]
}

// SaveBatch groups the container mutations committed by one transaction.
type SaveBatch struct {
	Inserts []DataContainer
	Updates []DataContainer
	Deletes []DataContainer
}

// IsEmpty reports whether the batch carries no mutation.
func (b SaveBatch) IsEmpty() bool {
	return len(b.Inserts) == 0 && len(b.Updates) == 0 && len(b.Deletes) == 0
}

// StorageProvider is the physical persistence collaborator. Updates and
// deletes must carry the timestamp last read; a mismatch yields
// ErrConcurrencyViolation and nothing is written. Saved containers are
// stored with Timestamp+1.
type StorageProvider interface {
	LoadDataContainer(ctx context.Context, id ObjectID) (DataContainer, error)
	LoadRelatedDataContainers(ctx context.Context, property PropertyID, owner ObjectID) ([]DataContainer, error)
	Save(ctx context.Context, batch SaveBatch) error
}

// SortContainers orders containers by identifier.
func SortContainers(containers []DataContainer) {
	sort.Slice(containers, func(i, j int) bool { return containers[i].ID.Less(containers[j].ID) })
}
