package core

import (
	"fmt"

	"unitofwork/pkg/domain"
)

// DomainObject is a handle to one object inside the transaction that created
// it. Handles from one transaction are rejected by every other transaction.
type DomainObject struct {
	id domain.ObjectID
	tx *ClientTransaction
}

// ID returns the object identifier.
func (o *DomainObject) ID() domain.ObjectID { return o.id }

// Transaction returns the owning transaction.
func (o *DomainObject) Transaction() *ClientTransaction { return o.tx }

// State returns the object's lifecycle state in its transaction.
func (o *DomainObject) State() domain.ObjectState { return o.tx.State(o.id) }

func (o *DomainObject) String() string { return o.id.String() }

// Subscribe installs the object-local event sink. A nil sink unsubscribes.
func (o *DomainObject) Subscribe(sink domain.ObjectEventSink) {
	rec, ok := o.tx.objects[o.id]
	if !ok {
		return
	}
	rec.events = sink
}

// SubscribeCollection installs the item-level sink for one of the object's
// collection properties. A nil sink unsubscribes.
func (o *DomainObject) SubscribeCollection(property domain.PropertyID, sink domain.CollectionEventSink) error {
	def, ok := o.tx.schema.Definition(property)
	if !ok || def.Class != o.id.Class {
		return fmt.Errorf("%w: %s on %s", domain.ErrUnknownProperty, property, o.id.Class)
	}
	if def.Cardinality != domain.CardinalityMany {
		return domain.InvalidOperationf("property %s is not a collection", property)
	}
	key := domain.NewRelationEndPointID(o.id, property)
	if sink == nil {
		delete(o.tx.collectionEvents, key)
		return nil
	}
	o.tx.collectionEvents[key] = sink
	return nil
}
