// Package core hosts the client transaction: the unit of work that loads
// objects from a StorageProvider, keeps both sides of every loaded relation
// consistent through the end point map, and commits or rolls back the
// accumulated relation changes.
package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"unitofwork/internal/infra/persistence/memory"
	"unitofwork/internal/relations"
	"unitofwork/pkg/domain"
)

const (
	opNewObject            = "new_object"
	opGetObject            = "get_object"
	opSetRelatedObject     = "set_related_object"
	opInsertRelatedObject  = "insert_related_object"
	opAddRelatedObject     = "add_related_object"
	opRemoveRelatedObject  = "remove_related_object"
	opReplaceRelatedObject = "replace_related_object"
	opSetRelatedObjects    = "set_related_objects"
	opDelete               = "delete_object"
	opCommit               = "commit"
	opRollback             = "rollback"
)

var (
	_ relations.Host       = (*ClientTransaction)(nil)
	_ relations.LazyLoader = (*ClientTransaction)(nil)
	_ domain.RuleView      = (*ClientTransaction)(nil)
)

// objectRecord tracks one object known to the transaction. state holds the
// lifecycle state; StateChanged is derived from the end points on demand.
type objectRecord struct {
	object    *DomainObject
	state     domain.ObjectState
	container domain.DataContainer
	events    domain.ObjectEventSink
}

// ClientTransaction is a single-threaded unit of work. It is not safe for
// concurrent use.
type ClientTransaction struct {
	id        string
	storage   domain.StorageProvider
	schema    domain.SchemaProvider
	endPoints *relations.Map
	objects   map[domain.ObjectID]*objectRecord
	listener  *fanoutListener
	changes   *changeRecorder
	rules     *domain.RulesEngine

	collectionEvents map[domain.RelationEndPointID]domain.CollectionEventSink

	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewClientTransaction constructs an empty transaction over storage. A nil
// storage falls back to an in-memory store; a nil schema to an empty one.
func NewClientTransaction(storage domain.StorageProvider, schema domain.SchemaProvider, opts ...Option) *ClientTransaction {
	options := defaultTransactionOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if storage == nil {
		storage = memory.NewStore()
	}
	if schema == nil {
		schema = domain.NewSchema()
	}
	id := options.id
	if id == "" {
		id = uuid.NewString()
	}
	changes := newChangeRecorder()
	listeners := make([]domain.TransactionListener, 0, len(options.listeners)+1)
	listeners = append(listeners, options.listeners...)
	listeners = append(listeners, changes)

	t := &ClientTransaction{
		id:               id,
		storage:          storage,
		schema:           schema,
		objects:          make(map[domain.ObjectID]*objectRecord),
		listener:         &fanoutListener{listeners: listeners},
		changes:          changes,
		rules:            options.rules,
		collectionEvents: make(map[domain.RelationEndPointID]domain.CollectionEventSink),
		clock:            options.clock,
		logger:           options.logger,
		audit:            options.audit,
		metrics:          options.metrics,
		tracer:           options.tracer,
	}
	t.endPoints = relations.NewMap(t, schema, t, relations.WithLogger(options.logger))
	return t
}

// ID returns the transaction identifier.
func (t *ClientTransaction) ID() string { return t.id }

// TransactionID implements relations.Host.
func (t *ClientTransaction) TransactionID() string { return t.id }

// Listener implements relations.Host.
func (t *ClientTransaction) Listener() domain.TransactionListener { return t.listener }

// ObjectEvents implements relations.Host.
func (t *ClientTransaction) ObjectEvents(id domain.ObjectID) domain.ObjectEventSink {
	rec, ok := t.objects[id]
	if !ok || rec.events == nil {
		return nil
	}
	return rec.events
}

// CollectionEvents implements relations.Host.
func (t *ClientTransaction) CollectionEvents(id domain.RelationEndPointID) domain.CollectionEventSink {
	sink, ok := t.collectionEvents[id]
	if !ok {
		return nil
	}
	return sink
}

// EndPoints exposes the end point map for diagnostics.
func (t *ClientTransaction) EndPoints() *relations.Map { return t.endPoints }

// Schema returns the relation metadata the transaction was built with.
func (t *ClientTransaction) Schema() domain.SchemaProvider { return t.schema }

// Changes lists the relation changes and deletions recorded since the last
// commit or rollback.
func (t *ClientTransaction) Changes() []domain.Change { return t.changes.Changes() }

// State reports the lifecycle state of id. Objects the transaction has not
// loaded are reported as unchanged.
func (t *ClientTransaction) State(id domain.ObjectID) domain.ObjectState {
	rec, ok := t.objects[id]
	if !ok {
		return domain.StateUnchanged
	}
	return t.stateOf(rec)
}

// IsDiscarded reports whether id can no longer be used in this transaction.
func (t *ClientTransaction) IsDiscarded(id domain.ObjectID) bool {
	rec, ok := t.objects[id]
	return ok && rec.state == domain.StateDiscarded
}

// Objects lists the handles of every object known to the transaction, ordered by id.
func (t *ClientTransaction) Objects() []*DomainObject {
	out := make([]*DomainObject, 0, len(t.objects))
	for _, rec := range t.sortedRecords() {
		out = append(out, rec.object)
	}
	return out
}

func (t *ClientTransaction) stateOf(rec *objectRecord) domain.ObjectState {
	if rec.state != domain.StateUnchanged {
		return rec.state
	}
	for _, ep := range t.endPoints.EndPointsOf(rec.object.id) {
		if ep.HasChanged() {
			return domain.StateChanged
		}
	}
	return domain.StateUnchanged
}

func (t *ClientTransaction) sortedRecords() []*objectRecord {
	out := make([]*objectRecord, 0, len(t.objects))
	for _, rec := range t.objects {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].object.id.Less(out[j].object.id) })
	return out
}

// NewObject creates a new object of class with every end point registered empty.
func (t *ClientTransaction) NewObject(ctx context.Context, class string) (*DomainObject, error) {
	var created *DomainObject
	err := t.run(ctx, opNewObject, domain.ObjectID{Class: class}, func(context.Context) error {
		if !t.schema.HasClass(class) {
			return domain.InvalidOperationf("unknown class %q", class)
		}
		id := domain.NewObjectID(class)
		rec := t.addRecord(domain.DataContainer{ID: id}, domain.StateNew)
		for _, def := range t.schema.EndPointDefinitions(class) {
			epid := domain.NewRelationEndPointID(id, def.Property)
			var err error
			if def.Cardinality == domain.CardinalityMany {
				_, err = t.endPoints.RegisterCollection(epid, nil)
			} else {
				_, err = t.endPoints.RegisterReference(epid, domain.ObjectID{})
			}
			if err != nil {
				return fmt.Errorf("register %s: %w", epid, err)
			}
		}
		created = rec.object
		return nil
	})
	return created, err
}

// GetObject returns the handle for id, loading it from storage when needed.
func (t *ClientTransaction) GetObject(ctx context.Context, id domain.ObjectID) (*DomainObject, error) {
	var found *DomainObject
	err := t.run(ctx, opGetObject, id, func(ctx context.Context) error {
		rec, err := t.loadObject(ctx, id)
		if err != nil {
			return err
		}
		if err := checkState(rec); err != nil {
			return err
		}
		found = rec.object
		return nil
	})
	return found, err
}

func (t *ClientTransaction) addRecord(c domain.DataContainer, state domain.ObjectState) *objectRecord {
	rec := &objectRecord{
		object:    &DomainObject{id: c.ID, tx: t},
		state:     state,
		container: c.Clone(),
	}
	t.objects[c.ID] = rec
	return rec
}

func checkState(rec *objectRecord) error {
	switch rec.state {
	case domain.StateDeleted, domain.StateDiscarded:
		return domain.ObjectStateError{ObjectID: rec.object.id, State: rec.state}
	}
	return nil
}
