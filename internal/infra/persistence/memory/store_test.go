package memory

import (
	"context"
	"errors"
	"testing"

	"unitofwork/pkg/domain"
)

const orderCustomer domain.PropertyID = "Order.Customer"

func order(value string, customer domain.ObjectID) domain.DataContainer {
	c := domain.DataContainer{ID: domain.ObjectID{Class: "Order", Value: value}}
	if !customer.IsZero() {
		c.ForeignKeys = map[domain.PropertyID]domain.ObjectID{orderCustomer: customer}
	}
	return c
}

func TestStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	customer := domain.ObjectID{Class: "Customer", Value: "c1"}

	err := store.Save(ctx, domain.SaveBatch{Inserts: []domain.DataContainer{
		order("b", customer),
		order("a", customer),
		order("z", domain.ObjectID{}),
		{ID: customer},
	}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.Len() != 4 {
		t.Fatalf("expected 4 containers, got %d", store.Len())
	}

	loaded, err := store.LoadDataContainer(ctx, domain.ObjectID{Class: "Order", Value: "a"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Timestamp != 1 {
		t.Fatalf("expected stored timestamp 1, got %d", loaded.Timestamp)
	}
	if loaded.ForeignKey(orderCustomer) != customer {
		t.Fatalf("expected foreign key to customer, got %v", loaded.ForeignKey(orderCustomer))
	}

	related, err := store.LoadRelatedDataContainers(ctx, orderCustomer, customer)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 2 || related[0].ID.Value != "a" || related[1].ID.Value != "b" {
		t.Fatalf("expected orders a,b sorted, got %+v", related)
	}
	if none, _ := store.LoadRelatedDataContainers(ctx, orderCustomer, domain.ObjectID{}); len(none) != 0 {
		t.Fatalf("expected no containers for zero owner")
	}

	if _, err := store.LoadDataContainer(ctx, domain.ObjectID{Class: "Order", Value: "missing"}); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestStoreLoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	customer := domain.ObjectID{Class: "Customer", Value: "c1"}
	if err := store.Save(ctx, domain.SaveBatch{Inserts: []domain.DataContainer{order("a", customer)}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, _ := store.LoadDataContainer(ctx, domain.ObjectID{Class: "Order", Value: "a"})
	loaded.ForeignKeys[orderCustomer] = domain.ObjectID{Class: "Customer", Value: "other"}

	again, _ := store.LoadDataContainer(ctx, loaded.ID)
	if again.ForeignKey(orderCustomer) != customer {
		t.Fatalf("mutating a loaded container leaked into the store")
	}
}

func TestStoreOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := order("a", domain.ObjectID{})
	b := order("b", domain.ObjectID{})
	if err := store.Save(ctx, domain.SaveBatch{Inserts: []domain.DataContainer{a, b}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	stale := a
	stale.Timestamp = 0
	err := store.Save(ctx, domain.SaveBatch{
		Deletes: []domain.DataContainer{{ID: b.ID, Timestamp: 1}},
		Updates: []domain.DataContainer{stale},
	})
	if !errors.Is(err, domain.ErrConcurrencyViolation) {
		t.Fatalf("expected concurrency violation, got %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("failed save must not delete anything")
	}

	if err := store.Save(ctx, domain.SaveBatch{Inserts: []domain.DataContainer{a}}); !errors.Is(err, domain.ErrConcurrencyViolation) {
		t.Fatalf("expected duplicate insert to fail, got %v", err)
	}
	missing := order("missing", domain.ObjectID{})
	if err := store.Save(ctx, domain.SaveBatch{Deletes: []domain.DataContainer{missing}}); !errors.Is(err, domain.ErrConcurrencyViolation) {
		t.Fatalf("expected delete of missing container to fail, got %v", err)
	}

	current := a
	current.Timestamp = 1
	if err := store.Save(ctx, domain.SaveBatch{Updates: []domain.DataContainer{current}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	loaded, _ := store.LoadDataContainer(ctx, a.ID)
	if loaded.Timestamp != 2 {
		t.Fatalf("expected timestamp 2 after update, got %d", loaded.Timestamp)
	}
}

func TestStoreSaveWithPersistFailureLeavesState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("boom")
	var seen Changeset
	err := store.SaveWith(ctx, domain.SaveBatch{Inserts: []domain.DataContainer{order("a", domain.ObjectID{})}}, func(_ context.Context, changes Changeset) error {
		seen = changes
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no containers after failed persist")
	}
	if len(seen.Upserts) != 1 || seen.Upserts[0].Timestamp != 1 {
		t.Fatalf("expected one upsert stamped 1, got %+v", seen.Upserts)
	}

	called := false
	if err := store.SaveWith(ctx, domain.SaveBatch{}, func(context.Context, Changeset) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("empty save: %v", err)
	}
	if called {
		t.Fatalf("persist must not run for an empty changeset")
	}
}

func TestStoreSaveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewStore().Save(ctx, domain.SaveBatch{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestStoreExportImport(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.Save(ctx, domain.SaveBatch{Inserts: []domain.DataContainer{order("b", domain.ObjectID{}), order("a", domain.ObjectID{})}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	snapshot := store.ExportState()
	if len(snapshot.Containers) != 2 || snapshot.Containers[0].ID.Value != "a" {
		t.Fatalf("expected sorted snapshot, got %+v", snapshot.Containers)
	}
	store.ImportState(Snapshot{})
	if store.Len() != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if store.Len() != 2 {
		t.Fatalf("expected restored state")
	}
}

func TestImportStatePanicsOnBrokenSnapshot(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for container without identifier")
		}
	}()
	NewStore().ImportState(Snapshot{Containers: []domain.DataContainer{{}}})
}
