// Package relations keeps both sides of every loaded association consistent
// within one transaction. It owns the relation end points, the per-transaction
// end point map, and the modification commands that turn a single mutation
// into the ordered set of primitive changes it implies.
package relations

import (
	"context"

	"unitofwork/pkg/domain"
)

// Host is the transaction scope an end point map belongs to. ObjectEvents and
// CollectionEvents may return nil when nobody subscribed.
type Host interface {
	TransactionID() string
	Listener() domain.TransactionListener
	ObjectEvents(id domain.ObjectID) domain.ObjectEventSink
	CollectionEvents(id domain.RelationEndPointID) domain.CollectionEventSink
}

// LazyLoader loads end points that are not yet registered. Implementations
// must register the requested end point before returning.
type LazyLoader interface {
	LoadReferenceEndPoint(ctx context.Context, id domain.RelationEndPointID) error
	LoadCollectionEndPoint(ctx context.Context, id domain.RelationEndPointID) error
}

// Logger is the subset of structured logging used by the map.
type Logger interface {
	Debug(msg string, args ...any)
}

// EndPoint is one side of one association for one object. The concrete
// shapes are *ReferenceEndPoint, *CollectionEndPoint, *NullReferenceEndPoint
// and *NullCollectionEndPoint; the set is closed.
type EndPoint interface {
	ID() domain.RelationEndPointID
	ObjectID() domain.ObjectID
	Definition() domain.RelationEndPointDefinition
	IsNull() bool
	HasChanged() bool
	HasBeenTouched() bool
	Touch()
	Commit() error
	Rollback() error
	CheckMandatory() error
	// OppositeObjectIDs lists the objects currently related through this end point.
	OppositeObjectIDs() []domain.ObjectID
	CreateRemoveCommand(removed domain.ObjectID) (Command, error)
	CreateDeleteCommand() (Command, error)

	sealed()
}

// ReferenceEnd is an end point of cardinality one, real or null.
type ReferenceEnd interface {
	EndPoint
	OppositeObjectID() domain.ObjectID
	OriginalOppositeObjectID() domain.ObjectID
	CreateSetCommand(newRelated domain.ObjectID) (Command, error)
}

// CollectionEnd is an end point of cardinality many, real or null.
type CollectionEnd interface {
	EndPoint
	Collection() *ObjectCollection
	CreateInsertCommand(index int, inserted domain.ObjectID) (Command, error)
	CreateAddCommand(added domain.ObjectID) (Command, error)
	CreateReplaceCommand(index int, replacement domain.ObjectID) (Command, error)
	CreateSetCollectionCommand(collection *ObjectCollection) (Command, error)
}

var (
	_ ReferenceEnd  = (*ReferenceEndPoint)(nil)
	_ ReferenceEnd  = (*NullReferenceEndPoint)(nil)
	_ CollectionEnd = (*CollectionEndPoint)(nil)
	_ CollectionEnd = (*NullCollectionEndPoint)(nil)
)

// NewNullEndPoint returns the sentinel end point matching def's cardinality.
func NewNullEndPoint(def domain.RelationEndPointDefinition) EndPoint {
	if def.Cardinality == domain.CardinalityMany {
		return &NullCollectionEndPoint{def: def}
	}
	return &NullReferenceEndPoint{def: def}
}

func nullEndPointError(id domain.RelationEndPointID, op string) error {
	return domain.InvalidOperationf("%s is not valid on null end point %s", op, id)
}
