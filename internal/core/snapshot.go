package core

import (
	"fmt"

	"unitofwork/internal/relations"
	"unitofwork/pkg/domain"
)

// ObjectSnapshot is the persisted form of one object record.
type ObjectSnapshot struct {
	Container domain.DataContainer `json:"container"`
	State     domain.ObjectState   `json:"state"`
}

// Snapshot captures a transaction's uncommitted state so another process
// can resume it.
type Snapshot struct {
	TransactionID string                        `json:"transaction_id"`
	Objects       []ObjectSnapshot              `json:"objects"`
	EndPoints     []relations.FlattenedEndPoint `json:"end_points"`
	Changes       []domain.Change               `json:"changes,omitempty"`
}

// Snapshot flattens the transaction. Event subscriptions are not captured.
func (t *ClientTransaction) Snapshot() Snapshot {
	records := t.sortedRecords()
	snap := Snapshot{
		TransactionID: t.id,
		Objects:       make([]ObjectSnapshot, 0, len(records)),
		EndPoints:     t.endPoints.Flatten(),
		Changes:       t.changes.Changes(),
	}
	for _, rec := range records {
		snap.Objects = append(snap.Objects, ObjectSnapshot{Container: rec.container.Clone(), State: rec.state})
	}
	return snap
}

// RestoreClientTransaction rebuilds a transaction from snap. The restored
// transaction keeps the snapshot's identifier.
func RestoreClientTransaction(snap Snapshot, storage domain.StorageProvider, schema domain.SchemaProvider, opts ...Option) (*ClientTransaction, error) {
	opts = append(opts, WithTransactionID(snap.TransactionID))
	t := NewClientTransaction(storage, schema, opts...)
	for _, obj := range snap.Objects {
		id := obj.Container.ID
		if id.IsZero() {
			return nil, domain.InvalidOperationf("snapshot object without identifier")
		}
		switch obj.State {
		case domain.StateNew, domain.StateUnchanged, domain.StateDeleted, domain.StateDiscarded:
		default:
			return nil, domain.InvalidOperationf("snapshot object %s has state %q", id, obj.State)
		}
		if _, dup := t.objects[id]; dup {
			return nil, domain.InvalidOperationf("snapshot object %s appears twice", id)
		}
		t.addRecord(obj.Container, obj.State)
	}
	if err := t.endPoints.Restore(snap.EndPoints); err != nil {
		return nil, fmt.Errorf("restore end points: %w", err)
	}
	t.changes.restore(snap.Changes)
	t.logger.Debug("transaction restored", "tx", t.id, "objects", len(snap.Objects), "end_points", len(snap.EndPoints))
	return t, nil
}
