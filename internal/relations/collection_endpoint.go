package relations

import "unitofwork/pkg/domain"

// CollectionEndPoint holds an ordered collection of opposite objects. It
// remembers both the original collection instance and its original members
// so a whole-collection replacement can be undone.
type CollectionEndPoint struct {
	m                  *Map
	id                 domain.RelationEndPointID
	def                domain.RelationEndPointDefinition
	collection         *ObjectCollection
	originalCollection *ObjectCollection
	originalData       []domain.ObjectID
	touched            bool
}

func newCollectionEndPoint(m *Map, id domain.RelationEndPointID, def domain.RelationEndPointDefinition, collection *ObjectCollection) *CollectionEndPoint {
	ep := &CollectionEndPoint{
		m:                  m,
		id:                 id,
		def:                def,
		collection:         collection,
		originalCollection: collection,
		originalData:       collection.IDs(),
	}
	collection.attach(ep)
	return ep
}

func (ep *CollectionEndPoint) sealed() {}

func (ep *CollectionEndPoint) ID() domain.RelationEndPointID { return ep.id }

func (ep *CollectionEndPoint) ObjectID() domain.ObjectID { return ep.id.ObjectID }

func (ep *CollectionEndPoint) Definition() domain.RelationEndPointDefinition { return ep.def }

func (ep *CollectionEndPoint) IsNull() bool { return false }

// Collection returns the live collection.
func (ep *CollectionEndPoint) Collection() *ObjectCollection { return ep.collection }

// OriginalCollection returns the collection instance as of load or last commit.
func (ep *CollectionEndPoint) OriginalCollection() *ObjectCollection { return ep.originalCollection }

// OriginalIDs returns the members as of load or last commit.
func (ep *CollectionEndPoint) OriginalIDs() []domain.ObjectID {
	out := make([]domain.ObjectID, len(ep.originalData))
	copy(out, ep.originalData)
	return out
}

func (ep *CollectionEndPoint) HasChanged() bool {
	return ep.collection != ep.originalCollection || !sameMembers(ep.collection.ids, ep.originalData)
}

func (ep *CollectionEndPoint) HasBeenTouched() bool { return ep.touched }

func (ep *CollectionEndPoint) Touch() { ep.touched = true }

// Commit and Rollback also act on touched collections whose members were only
// reordered, which HasChanged ignores.
func (ep *CollectionEndPoint) Commit() error {
	if ep.touched || ep.HasChanged() {
		ep.originalData = ep.collection.IDs()
		ep.originalCollection = ep.collection
	}
	ep.touched = false
	return nil
}

func (ep *CollectionEndPoint) Rollback() error {
	if ep.touched || ep.HasChanged() {
		if ep.collection != ep.originalCollection {
			ep.collection.detach()
			ep.originalCollection.attach(ep)
			ep.collection = ep.originalCollection
		}
		ep.collection.replaceData(ep.originalData)
	}
	ep.touched = false
	return nil
}

func (ep *CollectionEndPoint) CheckMandatory() error {
	if ep.def.Mandatory && ep.collection.Len() == 0 {
		return domain.MandatoryRelationError{EndPointID: ep.id}
	}
	return nil
}

func (ep *CollectionEndPoint) OppositeObjectIDs() []domain.ObjectID { return ep.collection.IDs() }

func (ep *CollectionEndPoint) CreateInsertCommand(index int, inserted domain.ObjectID) (Command, error) {
	return NewCollectionEndPointInsertCommand(ep, index, inserted)
}

// CreateAddCommand appends at the end of the collection.
func (ep *CollectionEndPoint) CreateAddCommand(added domain.ObjectID) (Command, error) {
	return NewCollectionEndPointInsertCommand(ep, ep.collection.Len(), added)
}

func (ep *CollectionEndPoint) CreateRemoveCommand(removed domain.ObjectID) (Command, error) {
	return NewCollectionEndPointRemoveCommand(ep, removed)
}

// CreateReplaceCommand yields the same-value command when replacement is
// already stored at index.
func (ep *CollectionEndPoint) CreateReplaceCommand(index int, replacement domain.ObjectID) (Command, error) {
	if index >= 0 && index < ep.collection.Len() && ep.collection.At(index) == replacement {
		return NewCollectionEndPointReplaceSameCommand(ep, index)
	}
	return NewCollectionEndPointReplaceCommand(ep, index, replacement)
}

func (ep *CollectionEndPoint) CreateSetCollectionCommand(collection *ObjectCollection) (Command, error) {
	return NewCollectionEndPointSetCollectionCommand(ep, collection)
}

func (ep *CollectionEndPoint) CreateDeleteCommand() (Command, error) {
	return NewCollectionEndPointDeleteCommand(ep)
}

func (ep *CollectionEndPoint) setCollection(collection *ObjectCollection) {
	ep.collection.detach()
	collection.attach(ep)
	ep.collection = collection
}

// NullCollectionEndPoint stands in for an absent multi-valued end point,
// including the anonymous far side of a unidirectional relation.
type NullCollectionEndPoint struct {
	def domain.RelationEndPointDefinition
}

func (ep *NullCollectionEndPoint) sealed() {}

func (ep *NullCollectionEndPoint) ID() domain.RelationEndPointID {
	return domain.RelationEndPointID{Property: ep.def.Property}
}

func (ep *NullCollectionEndPoint) ObjectID() domain.ObjectID { return domain.ObjectID{} }

func (ep *NullCollectionEndPoint) Definition() domain.RelationEndPointDefinition { return ep.def }

func (ep *NullCollectionEndPoint) IsNull() bool { return true }

// Collection returns an empty detached collection.
func (ep *NullCollectionEndPoint) Collection() *ObjectCollection { return &ObjectCollection{} }

func (ep *NullCollectionEndPoint) HasChanged() bool { return false }

func (ep *NullCollectionEndPoint) HasBeenTouched() bool { return false }

func (ep *NullCollectionEndPoint) Touch() {}

func (ep *NullCollectionEndPoint) Commit() error { return nullEndPointError(ep.ID(), "commit") }

func (ep *NullCollectionEndPoint) Rollback() error { return nullEndPointError(ep.ID(), "rollback") }

func (ep *NullCollectionEndPoint) CheckMandatory() error {
	return nullEndPointError(ep.ID(), "mandatory check")
}

func (ep *NullCollectionEndPoint) OppositeObjectIDs() []domain.ObjectID { return nil }

func (ep *NullCollectionEndPoint) CreateInsertCommand(int, domain.ObjectID) (Command, error) {
	return NewNullModificationCommand(ep), nil
}

func (ep *NullCollectionEndPoint) CreateAddCommand(domain.ObjectID) (Command, error) {
	return NewNullModificationCommand(ep), nil
}

func (ep *NullCollectionEndPoint) CreateRemoveCommand(domain.ObjectID) (Command, error) {
	return NewNullModificationCommand(ep), nil
}

func (ep *NullCollectionEndPoint) CreateReplaceCommand(int, domain.ObjectID) (Command, error) {
	return NewNullModificationCommand(ep), nil
}

func (ep *NullCollectionEndPoint) CreateSetCollectionCommand(*ObjectCollection) (Command, error) {
	return NewNullModificationCommand(ep), nil
}

func (ep *NullCollectionEndPoint) CreateDeleteCommand() (Command, error) {
	return nil, nullEndPointError(ep.ID(), "delete")
}
