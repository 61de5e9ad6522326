package relations

import (
	"context"
	"fmt"

	"unitofwork/pkg/domain"
)

var (
	_ Command = (*CollectionEndPointInsertCommand)(nil)
	_ Command = (*CollectionEndPointRemoveCommand)(nil)
	_ Command = (*CollectionEndPointReplaceCommand)(nil)
	_ Command = (*CollectionEndPointReplaceSameCommand)(nil)
	_ Command = (*CollectionEndPointSetCollectionCommand)(nil)
	_ Command = (*CollectionEndPointDeleteCommand)(nil)
)

// collectionChange adds the collection-level sink to relationChange.
type collectionChange struct {
	relationChange
	endPoint *CollectionEndPoint
}

func newCollectionChange(ep *CollectionEndPoint, oldRelated, newRelated domain.ObjectID) collectionChange {
	return collectionChange{
		relationChange: relationChange{
			host:       ep.m.host,
			owner:      ep.ObjectID(),
			property:   ep.def.Property,
			oldRelated: oldRelated,
			newRelated: newRelated,
		},
		endPoint: ep,
	}
}

func (c collectionChange) sink() domain.CollectionEventSink {
	return c.host.CollectionEvents(c.endPoint.id)
}

// beginItems raises the object hook, then the removing and adding hooks.
func (c collectionChange) beginItems() error {
	if err := c.begin(); err != nil {
		return err
	}
	sink := c.sink()
	if sink == nil {
		return nil
	}
	if !c.oldRelated.IsZero() {
		if err := sink.Removing(c.oldRelated); err != nil {
			return err
		}
	}
	if !c.newRelated.IsZero() {
		if err := sink.Adding(c.newRelated); err != nil {
			return err
		}
	}
	return nil
}

// endItems raises the removed and added hooks, then the object hook.
func (c collectionChange) endItems() {
	if sink := c.sink(); sink != nil {
		if !c.oldRelated.IsZero() {
			sink.Removed(c.oldRelated)
		}
		if !c.newRelated.IsZero() {
			sink.Added(c.newRelated)
		}
	}
	c.end()
}

func (c *collectionChange) NotifyClientTransactionOfBegin() error { return c.notifyBegin() }
func (c *collectionChange) Begin() error                          { return c.beginItems() }
func (c *collectionChange) NotifyClientTransactionOfEnd()         { c.notifyEnd() }
func (c *collectionChange) End()                                  { c.endItems() }

// EndPoint returns the modified collection end point.
func (c *collectionChange) EndPoint() *CollectionEndPoint { return c.endPoint }

// CollectionEndPointInsertCommand inserts an object at a position.
type CollectionEndPointInsertCommand struct {
	collectionChange
	index int
}

func NewCollectionEndPointInsertCommand(ep CollectionEnd, index int, inserted domain.ObjectID) (*CollectionEndPointInsertCommand, error) {
	coll, err := realCollection(ep)
	if err != nil {
		return nil, err
	}
	if inserted.IsZero() {
		return nil, domain.InvalidOperationf("cannot insert an empty object into %s", coll.id)
	}
	if coll.collection.Contains(inserted) {
		return nil, domain.InvalidOperationf("%s already contains %s", coll.id, inserted)
	}
	if index < 0 || index > coll.collection.Len() {
		return nil, domain.IndexError{Index: index, Len: coll.collection.Len()}
	}
	return &CollectionEndPointInsertCommand{
		collectionChange: newCollectionChange(coll, domain.ObjectID{}, inserted),
		index:            index,
	}, nil
}

func (c *CollectionEndPointInsertCommand) Perform() {
	c.endPoint.collection.insert(c.index, c.newRelated)
	c.endPoint.Touch()
}

// ExpandToAllRelatedObjects yields the inserted object's back-reference, the
// insert, and the removal from the object's previous owner.
func (c *CollectionEndPointInsertCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	m := c.endPoint.m
	ref, err := m.oppositeReference(ctx, c.endPoint, c.newRelated)
	if err != nil {
		return nil, err
	}
	previousOwner, err := m.GetOppositeEndPoint(ctx, ref, ref.OppositeObjectID())
	if err != nil {
		return nil, err
	}
	var e expansion
	e.add(ref.CreateSetCommand(c.owner))
	e.add(c, nil)
	e.add(previousOwner.CreateRemoveCommand(c.newRelated))
	return e.result()
}

// CollectionEndPointRemoveCommand removes a member.
type CollectionEndPointRemoveCommand struct {
	collectionChange
}

func NewCollectionEndPointRemoveCommand(ep CollectionEnd, removed domain.ObjectID) (*CollectionEndPointRemoveCommand, error) {
	coll, err := realCollection(ep)
	if err != nil {
		return nil, err
	}
	if !coll.collection.Contains(removed) {
		return nil, domain.InvalidOperationf("%s does not contain %s", coll.id, removed)
	}
	return &CollectionEndPointRemoveCommand{
		collectionChange: newCollectionChange(coll, removed, domain.ObjectID{}),
	}, nil
}

func (c *CollectionEndPointRemoveCommand) Perform() {
	c.endPoint.collection.remove(c.oldRelated)
	c.endPoint.Touch()
}

// ExpandToAllRelatedObjects yields the removed object's cleared reference and
// the removal.
func (c *CollectionEndPointRemoveCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	ref, err := c.endPoint.m.oppositeReference(ctx, c.endPoint, c.oldRelated)
	if err != nil {
		return nil, err
	}
	var e expansion
	e.add(ref.CreateRemoveCommand(c.owner))
	e.add(c, nil)
	return e.result()
}

// CollectionEndPointReplaceCommand swaps the member at a position for a
// different object.
type CollectionEndPointReplaceCommand struct {
	collectionChange
	index int
}

func NewCollectionEndPointReplaceCommand(ep CollectionEnd, index int, replacement domain.ObjectID) (*CollectionEndPointReplaceCommand, error) {
	coll, err := realCollection(ep)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= coll.collection.Len() {
		return nil, domain.IndexError{Index: index, Len: coll.collection.Len()}
	}
	replaced := coll.collection.At(index)
	if replaced == replacement {
		return nil, sameValueError(coll.id, replacement)
	}
	if replacement.IsZero() {
		return nil, domain.InvalidOperationf("cannot store an empty object in %s", coll.id)
	}
	if coll.collection.Contains(replacement) {
		return nil, domain.InvalidOperationf("%s already contains %s", coll.id, replacement)
	}
	return &CollectionEndPointReplaceCommand{
		collectionChange: newCollectionChange(coll, replaced, replacement),
		index:            index,
	}, nil
}

func (c *CollectionEndPointReplaceCommand) Perform() {
	c.endPoint.collection.replace(c.index, c.newRelated)
	c.endPoint.Touch()
}

// ExpandToAllRelatedObjects yields the replaced object's cleared reference,
// the replace, the replacement's new back-reference, and its removal from its
// previous owner.
func (c *CollectionEndPointReplaceCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	m := c.endPoint.m
	oldRef, err := m.oppositeReference(ctx, c.endPoint, c.oldRelated)
	if err != nil {
		return nil, err
	}
	newRef, err := m.oppositeReference(ctx, c.endPoint, c.newRelated)
	if err != nil {
		return nil, err
	}
	previousOwner, err := m.GetOppositeEndPoint(ctx, newRef, newRef.OppositeObjectID())
	if err != nil {
		return nil, err
	}
	var e expansion
	e.add(oldRef.CreateRemoveCommand(c.owner))
	e.add(c, nil)
	e.add(newRef.CreateSetCommand(c.owner))
	e.add(previousOwner.CreateRemoveCommand(c.newRelated))
	return e.result()
}

// CollectionEndPointReplaceSameCommand replaces a member with itself. It only
// touches.
type CollectionEndPointReplaceSameCommand struct {
	silent
	endPoint *CollectionEndPoint
	member   domain.ObjectID
}

func NewCollectionEndPointReplaceSameCommand(ep CollectionEnd, index int) (*CollectionEndPointReplaceSameCommand, error) {
	coll, err := realCollection(ep)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= coll.collection.Len() {
		return nil, domain.IndexError{Index: index, Len: coll.collection.Len()}
	}
	return &CollectionEndPointReplaceSameCommand{endPoint: coll, member: coll.collection.At(index)}, nil
}

func (c *CollectionEndPointReplaceSameCommand) Perform() { c.endPoint.Touch() }

func (c *CollectionEndPointReplaceSameCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	ref, err := c.endPoint.m.GetOppositeEndPoint(ctx, c.endPoint, c.member)
	if err != nil {
		return nil, err
	}
	return NewCompositeCommand(c, NewTouchCommand(ref)), nil
}

// CollectionEndPointSetCollectionCommand swaps the whole collection instance.
// Members leaving or joining get their own remove and insert hooks.
type CollectionEndPointSetCollectionCommand struct {
	relationChange
	endPoint      *CollectionEndPoint
	oldCollection *ObjectCollection
	newCollection *ObjectCollection
	removed       []domain.ObjectID
	added         []domain.ObjectID
}

func NewCollectionEndPointSetCollectionCommand(ep CollectionEnd, collection *ObjectCollection) (*CollectionEndPointSetCollectionCommand, error) {
	coll, err := realCollection(ep)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, domain.InvalidOperationf("nil collection for %s", coll.id)
	}
	if collection == coll.collection {
		return nil, fmt.Errorf("%w: %s already holds this collection", domain.ErrSameValue, coll.id)
	}
	if collection.IsAttached() {
		return nil, domain.InvalidOperationf("collection is already attached to another end point")
	}
	cmd := &CollectionEndPointSetCollectionCommand{
		relationChange: relationChange{
			host:     coll.m.host,
			owner:    coll.ObjectID(),
			property: coll.def.Property,
		},
		endPoint:      coll,
		oldCollection: coll.collection,
		newCollection: collection,
	}
	for _, id := range coll.collection.ids {
		if !collection.Contains(id) {
			cmd.removed = append(cmd.removed, id)
		}
	}
	for _, id := range collection.ids {
		if !coll.collection.Contains(id) {
			cmd.added = append(cmd.added, id)
		}
	}
	return cmd, nil
}

// Removed lists members that leave the relation.
func (c *CollectionEndPointSetCollectionCommand) Removed() []domain.ObjectID {
	return append([]domain.ObjectID(nil), c.removed...)
}

// Added lists members that join the relation.
func (c *CollectionEndPointSetCollectionCommand) Added() []domain.ObjectID {
	return append([]domain.ObjectID(nil), c.added...)
}

func (c *CollectionEndPointSetCollectionCommand) items() []collectionChange {
	out := make([]collectionChange, 0, len(c.removed)+len(c.added))
	for _, id := range c.removed {
		out = append(out, newCollectionChange(c.endPoint, id, domain.ObjectID{}))
	}
	for _, id := range c.added {
		out = append(out, newCollectionChange(c.endPoint, domain.ObjectID{}, id))
	}
	return out
}

func (c *CollectionEndPointSetCollectionCommand) NotifyClientTransactionOfBegin() error {
	for _, item := range c.items() {
		if err := item.notifyBegin(); err != nil {
			return err
		}
	}
	return nil
}

func (c *CollectionEndPointSetCollectionCommand) Begin() error {
	for _, item := range c.items() {
		if err := item.beginItems(); err != nil {
			return err
		}
	}
	return nil
}

// Perform detaches the old collection and attaches the new one.
func (c *CollectionEndPointSetCollectionCommand) Perform() {
	c.endPoint.setCollection(c.newCollection)
	c.endPoint.Touch()
}

func (c *CollectionEndPointSetCollectionCommand) NotifyClientTransactionOfEnd() {
	for _, item := range c.items() {
		item.notifyEnd()
	}
}

func (c *CollectionEndPointSetCollectionCommand) End() {
	for _, item := range c.items() {
		item.endItems()
	}
}

// ExpandToAllRelatedObjects yields the swap, a cleared reference per leaving
// member, and per joining member its back-reference followed by its removal
// from its previous owner.
func (c *CollectionEndPointSetCollectionCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	m := c.endPoint.m
	var e expansion
	e.add(c, nil)
	for _, id := range c.removed {
		ref, err := m.oppositeReference(ctx, c.endPoint, id)
		if err != nil {
			return nil, err
		}
		e.add(ref.CreateRemoveCommand(c.owner))
	}
	for _, id := range c.added {
		ref, err := m.oppositeReference(ctx, c.endPoint, id)
		if err != nil {
			return nil, err
		}
		previousOwner, err := m.GetOppositeEndPoint(ctx, ref, ref.OppositeObjectID())
		if err != nil {
			return nil, err
		}
		e.add(ref.CreateSetCommand(c.owner))
		e.add(previousOwner.CreateRemoveCommand(id))
	}
	return e.result()
}

// CollectionEndPointDeleteCommand empties a collection owned by an object
// being deleted.
type CollectionEndPointDeleteCommand struct {
	silent
	endPoint *CollectionEndPoint
}

func NewCollectionEndPointDeleteCommand(ep CollectionEnd) (*CollectionEndPointDeleteCommand, error) {
	coll, err := realCollection(ep)
	if err != nil {
		return nil, err
	}
	return &CollectionEndPointDeleteCommand{endPoint: coll}, nil
}

func (c *CollectionEndPointDeleteCommand) Perform() {
	c.endPoint.collection.clear()
	c.endPoint.Touch()
}

func (c *CollectionEndPointDeleteCommand) ExpandToAllRelatedObjects(context.Context) (*CompositeCommand, error) {
	return NewCompositeCommand(c), nil
}
