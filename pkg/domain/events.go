package domain

// TransactionListener receives transaction-wide notifications. Returning an
// error from a "-ing" hook vetoes the operation before any state is mutated.
type TransactionListener interface {
	RelationChanging(owner ObjectID, property PropertyID, oldRelated, newRelated ObjectID) error
	RelationChanged(owner ObjectID, property PropertyID)
	ObjectDeleting(id ObjectID) error
	ObjectDeleted(id ObjectID)
	EndPointRegistered(id RelationEndPointID)
	EndPointUnregistered(id RelationEndPointID)
}

// ObjectEventSink receives notifications local to one domain object.
type ObjectEventSink interface {
	BeginRelationChange(property PropertyID, oldRelated, newRelated ObjectID) error
	EndRelationChange(property PropertyID)
	Deleting() error
	Deleted()
}

// CollectionEventSink receives item-level notifications for one collection end point.
type CollectionEventSink interface {
	Adding(id ObjectID) error
	Added(id ObjectID)
	Removing(id ObjectID) error
	Removed(id ObjectID)
}

// NopTransactionListener implements TransactionListener with no-ops. Embed it
// to override a subset of hooks.
type NopTransactionListener struct{}

var _ TransactionListener = NopTransactionListener{}

func (NopTransactionListener) RelationChanging(ObjectID, PropertyID, ObjectID, ObjectID) error {
	return nil
}
func (NopTransactionListener) RelationChanged(ObjectID, PropertyID) {}
func (NopTransactionListener) ObjectDeleting(ObjectID) error { return nil }
func (NopTransactionListener) ObjectDeleted(ObjectID) {}
func (NopTransactionListener) EndPointRegistered(RelationEndPointID) {}
func (NopTransactionListener) EndPointUnregistered(RelationEndPointID) {}
