package relations

import (
	"context"

	"unitofwork/pkg/domain"
)

var (
	_ Command = (*ObjectEndPointSetSameCommand)(nil)
	_ Command = (*ObjectEndPointSetOneOneCommand)(nil)
	_ Command = (*ObjectEndPointSetOneManyCommand)(nil)
	_ Command = (*ObjectEndPointSetUnidirectionalCommand)(nil)
	_ Command = (*ObjectEndPointDeleteCommand)(nil)
)

// ObjectEndPointSetSameCommand assigns a reference its current value. No
// notification fires; the end point and, for bidirectional relations, the
// current opposite are touched.
type ObjectEndPointSetSameCommand struct {
	silent
	endPoint *ReferenceEndPoint
}

func NewObjectEndPointSetSameCommand(ep ReferenceEnd) (*ObjectEndPointSetSameCommand, error) {
	ref, err := realReference(ep)
	if err != nil {
		return nil, err
	}
	return &ObjectEndPointSetSameCommand{endPoint: ref}, nil
}

func (c *ObjectEndPointSetSameCommand) Perform() { c.endPoint.Touch() }

func (c *ObjectEndPointSetSameCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	if !c.endPoint.def.IsBidirectional() {
		return NewCompositeCommand(c), nil
	}
	opposite, err := c.endPoint.m.GetOppositeEndPoint(ctx, c.endPoint, c.endPoint.current)
	if err != nil {
		return nil, err
	}
	return NewCompositeCommand(c, NewTouchCommand(opposite)), nil
}

// referenceSet is the shared state of the set-different commands.
type referenceSet struct {
	relationChange
	endPoint *ReferenceEndPoint
}

func newReferenceSet(ep ReferenceEnd, newRelated domain.ObjectID) (referenceSet, error) {
	ref, err := realReference(ep)
	if err != nil {
		return referenceSet{}, err
	}
	if newRelated == ref.current {
		return referenceSet{}, sameValueError(ref.id, newRelated)
	}
	return referenceSet{
		relationChange: relationChange{
			host:       ref.m.host,
			owner:      ref.ObjectID(),
			property:   ref.def.Property,
			oldRelated: ref.current,
			newRelated: newRelated,
		},
		endPoint: ref,
	}, nil
}

func (c *referenceSet) NotifyClientTransactionOfBegin() error { return c.notifyBegin() }
func (c *referenceSet) Begin() error                          { return c.begin() }
func (c *referenceSet) Perform()                              { c.endPoint.setOppositeObjectID(c.newRelated) }
func (c *referenceSet) NotifyClientTransactionOfEnd()         { c.notifyEnd() }
func (c *referenceSet) End()                                  { c.end() }

// EndPoint returns the modified end point.
func (c *referenceSet) EndPoint() *ReferenceEndPoint { return c.endPoint }

// OldRelatedObject returns the value captured at construction.
func (c *referenceSet) OldRelatedObject() domain.ObjectID { return c.oldRelated }

// NewRelatedObject returns the value Perform writes.
func (c *referenceSet) NewRelatedObject() domain.ObjectID { return c.newRelated }

// ObjectEndPointSetOneOneCommand changes one side of a one-to-one relation.
type ObjectEndPointSetOneOneCommand struct {
	referenceSet
}

func NewObjectEndPointSetOneOneCommand(ep ReferenceEnd, newRelated domain.ObjectID) (*ObjectEndPointSetOneOneCommand, error) {
	base, err := newReferenceSet(ep, newRelated)
	if err != nil {
		return nil, err
	}
	return &ObjectEndPointSetOneOneCommand{referenceSet: base}, nil
}

// ExpandToAllRelatedObjects yields this change, the old opposite's clear, the
// new opposite's back-reference, and the clear of whatever the new opposite
// pointed at before.
func (c *ObjectEndPointSetOneOneCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	m := c.endPoint.m
	owner := c.owner
	var e expansion
	e.add(c, nil)

	oldOpposite, err := m.oppositeReference(ctx, c.endPoint, c.oldRelated)
	if err != nil {
		return nil, err
	}
	e.add(oldOpposite.CreateRemoveCommand(owner))

	newOpposite, err := m.oppositeReference(ctx, c.endPoint, c.newRelated)
	if err != nil {
		return nil, err
	}
	e.add(newOpposite.CreateSetCommand(owner))

	previous, err := m.GetOppositeEndPoint(ctx, newOpposite, newOpposite.OppositeObjectID())
	if err != nil {
		return nil, err
	}
	e.add(previous.CreateRemoveCommand(c.newRelated))
	return e.result()
}

// ObjectEndPointSetOneManyCommand changes the reference side of a
// one-to-many relation.
type ObjectEndPointSetOneManyCommand struct {
	referenceSet
}

func NewObjectEndPointSetOneManyCommand(ep ReferenceEnd, newRelated domain.ObjectID) (*ObjectEndPointSetOneManyCommand, error) {
	base, err := newReferenceSet(ep, newRelated)
	if err != nil {
		return nil, err
	}
	return &ObjectEndPointSetOneManyCommand{referenceSet: base}, nil
}

// ExpandToAllRelatedObjects yields this change, the append to the new owner's
// collection, and the removal from the old owner's collection.
func (c *ObjectEndPointSetOneManyCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	m := c.endPoint.m
	var e expansion
	e.add(c, nil)

	newOwner, err := m.oppositeCollection(ctx, c.endPoint, c.newRelated)
	if err != nil {
		return nil, err
	}
	e.add(newOwner.CreateAddCommand(c.owner))

	oldOwner, err := m.oppositeCollection(ctx, c.endPoint, c.oldRelated)
	if err != nil {
		return nil, err
	}
	e.add(oldOwner.CreateRemoveCommand(c.owner))
	return e.result()
}

// ObjectEndPointSetUnidirectionalCommand changes a reference whose far side
// is not navigable.
type ObjectEndPointSetUnidirectionalCommand struct {
	referenceSet
}

func NewObjectEndPointSetUnidirectionalCommand(ep ReferenceEnd, newRelated domain.ObjectID) (*ObjectEndPointSetUnidirectionalCommand, error) {
	base, err := newReferenceSet(ep, newRelated)
	if err != nil {
		return nil, err
	}
	return &ObjectEndPointSetUnidirectionalCommand{referenceSet: base}, nil
}

func (c *ObjectEndPointSetUnidirectionalCommand) ExpandToAllRelatedObjects(context.Context) (*CompositeCommand, error) {
	return NewCompositeCommand(c), nil
}

// ObjectEndPointDeleteCommand clears a reference owned by an object being
// deleted. The owning ObjectDeleteCommand raises the notifications.
type ObjectEndPointDeleteCommand struct {
	silent
	endPoint   *ReferenceEndPoint
	oldRelated domain.ObjectID
}

func NewObjectEndPointDeleteCommand(ep ReferenceEnd) (*ObjectEndPointDeleteCommand, error) {
	ref, err := realReference(ep)
	if err != nil {
		return nil, err
	}
	return &ObjectEndPointDeleteCommand{endPoint: ref, oldRelated: ref.current}, nil
}

func (c *ObjectEndPointDeleteCommand) Perform() {
	c.endPoint.setOppositeObjectID(domain.ObjectID{})
}

func (c *ObjectEndPointDeleteCommand) ExpandToAllRelatedObjects(context.Context) (*CompositeCommand, error) {
	return NewCompositeCommand(c), nil
}
