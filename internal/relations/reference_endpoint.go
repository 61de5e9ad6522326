package relations

import "unitofwork/pkg/domain"

// ReferenceEndPoint holds a single opposite object identifier.
type ReferenceEndPoint struct {
	m        *Map
	id       domain.RelationEndPointID
	def      domain.RelationEndPointDefinition
	current  domain.ObjectID
	original domain.ObjectID
	touched  bool
}

func newReferenceEndPoint(m *Map, id domain.RelationEndPointID, def domain.RelationEndPointDefinition, opposite domain.ObjectID) *ReferenceEndPoint {
	return &ReferenceEndPoint{m: m, id: id, def: def, current: opposite, original: opposite}
}

func (ep *ReferenceEndPoint) sealed() {}

func (ep *ReferenceEndPoint) ID() domain.RelationEndPointID { return ep.id }

func (ep *ReferenceEndPoint) ObjectID() domain.ObjectID { return ep.id.ObjectID }

func (ep *ReferenceEndPoint) Definition() domain.RelationEndPointDefinition { return ep.def }

func (ep *ReferenceEndPoint) IsNull() bool { return false }

// OppositeObjectID returns the currently related object.
func (ep *ReferenceEndPoint) OppositeObjectID() domain.ObjectID { return ep.current }

// OriginalOppositeObjectID returns the related object as of load or last commit.
func (ep *ReferenceEndPoint) OriginalOppositeObjectID() domain.ObjectID { return ep.original }

func (ep *ReferenceEndPoint) HasChanged() bool { return ep.current != ep.original }

func (ep *ReferenceEndPoint) HasBeenTouched() bool { return ep.touched }

func (ep *ReferenceEndPoint) Touch() { ep.touched = true }

func (ep *ReferenceEndPoint) Commit() error {
	if ep.HasChanged() {
		ep.original = ep.current
	}
	ep.touched = false
	return nil
}

func (ep *ReferenceEndPoint) Rollback() error {
	if ep.HasChanged() {
		ep.current = ep.original
	}
	ep.touched = false
	return nil
}

func (ep *ReferenceEndPoint) CheckMandatory() error {
	if ep.def.Mandatory && ep.current.IsZero() {
		return domain.MandatoryRelationError{EndPointID: ep.id}
	}
	return nil
}

func (ep *ReferenceEndPoint) OppositeObjectIDs() []domain.ObjectID {
	if ep.current.IsZero() {
		return nil
	}
	return []domain.ObjectID{ep.current}
}

// CreateSetCommand picks the set command matching the relation shape.
func (ep *ReferenceEndPoint) CreateSetCommand(newRelated domain.ObjectID) (Command, error) {
	if newRelated == ep.current {
		return NewObjectEndPointSetSameCommand(ep)
	}
	opposite := ep.m.schema.OppositeDefinition(ep.def)
	switch {
	case opposite.IsAnonymous():
		return NewObjectEndPointSetUnidirectionalCommand(ep, newRelated)
	case opposite.Cardinality == domain.CardinalityOne:
		return NewObjectEndPointSetOneOneCommand(ep, newRelated)
	default:
		return NewObjectEndPointSetOneManyCommand(ep, newRelated)
	}
}

// CreateRemoveCommand clears the reference; removed must be the current value.
func (ep *ReferenceEndPoint) CreateRemoveCommand(removed domain.ObjectID) (Command, error) {
	if removed != ep.current {
		return nil, domain.InvalidOperationf("cannot remove %s from %s: current value is %s", removed, ep.id, ep.current)
	}
	return ep.CreateSetCommand(domain.ObjectID{})
}

func (ep *ReferenceEndPoint) CreateDeleteCommand() (Command, error) {
	return NewObjectEndPointDeleteCommand(ep)
}

func (ep *ReferenceEndPoint) setOppositeObjectID(id domain.ObjectID) {
	ep.current = id
	ep.touched = true
}

// NullReferenceEndPoint stands in for an absent single-valued end point.
type NullReferenceEndPoint struct {
	def domain.RelationEndPointDefinition
}

func (ep *NullReferenceEndPoint) sealed() {}

func (ep *NullReferenceEndPoint) ID() domain.RelationEndPointID {
	return domain.RelationEndPointID{Property: ep.def.Property}
}

func (ep *NullReferenceEndPoint) ObjectID() domain.ObjectID { return domain.ObjectID{} }

func (ep *NullReferenceEndPoint) Definition() domain.RelationEndPointDefinition { return ep.def }

func (ep *NullReferenceEndPoint) IsNull() bool { return true }

func (ep *NullReferenceEndPoint) OppositeObjectID() domain.ObjectID { return domain.ObjectID{} }

func (ep *NullReferenceEndPoint) OriginalOppositeObjectID() domain.ObjectID { return domain.ObjectID{} }

func (ep *NullReferenceEndPoint) HasChanged() bool { return false }

func (ep *NullReferenceEndPoint) HasBeenTouched() bool { return false }

func (ep *NullReferenceEndPoint) Touch() {}

func (ep *NullReferenceEndPoint) Commit() error { return nullEndPointError(ep.ID(), "commit") }

func (ep *NullReferenceEndPoint) Rollback() error { return nullEndPointError(ep.ID(), "rollback") }

func (ep *NullReferenceEndPoint) CheckMandatory() error {
	return nullEndPointError(ep.ID(), "mandatory check")
}

func (ep *NullReferenceEndPoint) OppositeObjectIDs() []domain.ObjectID { return nil }

func (ep *NullReferenceEndPoint) CreateSetCommand(domain.ObjectID) (Command, error) {
	return NewNullModificationCommand(ep), nil
}

func (ep *NullReferenceEndPoint) CreateRemoveCommand(domain.ObjectID) (Command, error) {
	return NewNullModificationCommand(ep), nil
}

func (ep *NullReferenceEndPoint) CreateDeleteCommand() (Command, error) {
	return nil, nullEndPointError(ep.ID(), "delete")
}
