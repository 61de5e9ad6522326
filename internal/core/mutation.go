package core

import (
	"context"
	"fmt"

	"unitofwork/internal/relations"
	"unitofwork/pkg/domain"
)

// SetRelatedObject assigns related to the reference property of obj. A nil
// related clears the relation.
func (t *ClientTransaction) SetRelatedObject(ctx context.Context, obj *DomainObject, property domain.PropertyID, related *DomainObject) error {
	return t.run(ctx, opSetRelatedObject, subjectOf(obj), func(ctx context.Context) error {
		def, err := t.checkProperty(obj, property, domain.CardinalityOne)
		if err != nil {
			return err
		}
		var newRelated domain.ObjectID
		if related != nil {
			if err := t.checkRelated(def, related); err != nil {
				return err
			}
			newRelated = related.id
		}
		ep, err := t.endPoints.GetReferenceEnd(ctx, domain.NewRelationEndPointID(obj.id, property))
		if err != nil {
			return err
		}
		cmd, err := ep.CreateSetCommand(newRelated)
		return t.execute(ctx, cmd, err)
	})
}

// InsertRelatedObject inserts related into the collection property of obj at index.
func (t *ClientTransaction) InsertRelatedObject(ctx context.Context, obj *DomainObject, property domain.PropertyID, index int, related *DomainObject) error {
	return t.run(ctx, opInsertRelatedObject, subjectOf(obj), func(ctx context.Context) error {
		coll, err := t.collectionFor(ctx, obj, property, related)
		if err != nil {
			return err
		}
		cmd, err := coll.CreateInsertCommand(index, related.id)
		return t.execute(ctx, cmd, err)
	})
}

// AddRelatedObject appends related to the collection property of obj.
func (t *ClientTransaction) AddRelatedObject(ctx context.Context, obj *DomainObject, property domain.PropertyID, related *DomainObject) error {
	return t.run(ctx, opAddRelatedObject, subjectOf(obj), func(ctx context.Context) error {
		coll, err := t.collectionFor(ctx, obj, property, related)
		if err != nil {
			return err
		}
		cmd, err := coll.CreateAddCommand(related.id)
		return t.execute(ctx, cmd, err)
	})
}

// RemoveRelatedObject removes related from the collection property of obj.
func (t *ClientTransaction) RemoveRelatedObject(ctx context.Context, obj *DomainObject, property domain.PropertyID, related *DomainObject) error {
	return t.run(ctx, opRemoveRelatedObject, subjectOf(obj), func(ctx context.Context) error {
		coll, err := t.collectionFor(ctx, obj, property, related)
		if err != nil {
			return err
		}
		cmd, err := coll.CreateRemoveCommand(related.id)
		return t.execute(ctx, cmd, err)
	})
}

// ReplaceRelatedObject stores replacement at index of the collection property of obj.
func (t *ClientTransaction) ReplaceRelatedObject(ctx context.Context, obj *DomainObject, property domain.PropertyID, index int, replacement *DomainObject) error {
	return t.run(ctx, opReplaceRelatedObject, subjectOf(obj), func(ctx context.Context) error {
		coll, err := t.collectionFor(ctx, obj, property, replacement)
		if err != nil {
			return err
		}
		cmd, err := coll.CreateReplaceCommand(index, replacement.id)
		return t.execute(ctx, cmd, err)
	})
}

// SetRelatedObjects replaces the whole collection property of obj with related, in order.
func (t *ClientTransaction) SetRelatedObjects(ctx context.Context, obj *DomainObject, property domain.PropertyID, related []*DomainObject) error {
	return t.run(ctx, opSetRelatedObjects, subjectOf(obj), func(ctx context.Context) error {
		def, err := t.checkProperty(obj, property, domain.CardinalityMany)
		if err != nil {
			return err
		}
		ids := make([]domain.ObjectID, 0, len(related))
		for _, r := range related {
			if err := t.checkRelated(def, r); err != nil {
				return err
			}
			ids = append(ids, r.id)
		}
		replacement, err := relations.NewObjectCollection(ids...)
		if err != nil {
			return err
		}
		coll, err := t.endPoints.GetCollectionEnd(ctx, domain.NewRelationEndPointID(obj.id, property))
		if err != nil {
			return err
		}
		cmd, err := coll.CreateSetCollectionCommand(replacement)
		return t.execute(ctx, cmd, err)
	})
}

// Delete removes obj and every relation pointing at it. New objects are
// discarded at once; loaded objects are deleted from storage on commit.
func (t *ClientTransaction) Delete(ctx context.Context, obj *DomainObject) error {
	return t.run(ctx, opDelete, subjectOf(obj), func(ctx context.Context) error {
		rec, err := t.checkObject(obj)
		if err != nil {
			return err
		}
		cmd, err := relations.NewObjectDeleteCommand(ctx, t.endPoints, obj.id, func() { t.markDeleted(rec) })
		return t.execute(ctx, cmd, err)
	})
}

func (t *ClientTransaction) markDeleted(rec *objectRecord) {
	if rec.state == domain.StateNew {
		rec.state = domain.StateDiscarded
		t.endPoints.UnregisterObject(rec.object.id)
		return
	}
	rec.state = domain.StateDeleted
}

// execute expands cmd and drives it through its notification protocol.
func (t *ClientTransaction) execute(ctx context.Context, cmd relations.Command, err error) error {
	if err != nil {
		return err
	}
	err = relations.Execute(ctx, cmd)
	t.changes.settle()
	return err
}

func (t *ClientTransaction) collectionFor(ctx context.Context, obj *DomainObject, property domain.PropertyID, related *DomainObject) (relations.CollectionEnd, error) {
	def, err := t.checkProperty(obj, property, domain.CardinalityMany)
	if err != nil {
		return nil, err
	}
	if err := t.checkRelated(def, related); err != nil {
		return nil, err
	}
	return t.endPoints.GetCollectionEnd(ctx, domain.NewRelationEndPointID(obj.id, property))
}

// checkObject rejects foreign, deleted and discarded objects.
func (t *ClientTransaction) checkObject(obj *DomainObject) (*objectRecord, error) {
	if obj == nil || obj.tx == nil {
		return nil, domain.InvalidOperationf("domain object is nil")
	}
	if obj.tx != t {
		return nil, domain.CrossTransactionError{ObjectID: obj.id, Owner: obj.tx.id, Current: t.id}
	}
	rec, ok := t.objects[obj.id]
	if !ok {
		return nil, domain.InvalidOperationf("object %s is not registered", obj.id)
	}
	if err := checkState(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// checkProperty validates obj and resolves a property it declares with the
// expected cardinality.
func (t *ClientTransaction) checkProperty(obj *DomainObject, property domain.PropertyID, cardinality domain.Cardinality) (domain.RelationEndPointDefinition, error) {
	if _, err := t.checkObject(obj); err != nil {
		return domain.RelationEndPointDefinition{}, err
	}
	def, ok := t.schema.Definition(property)
	if !ok || def.IsAnonymous() {
		return def, fmt.Errorf("%w: %s", domain.ErrUnknownProperty, property)
	}
	if def.Class != obj.id.Class {
		return def, fmt.Errorf("%w: %s is not declared by %s", domain.ErrUnknownProperty, property, obj.id.Class)
	}
	if def.Cardinality != cardinality {
		return def, domain.InvalidOperationf("property %s has cardinality %s", property, def.Cardinality)
	}
	return def, nil
}

func (t *ClientTransaction) checkRelated(def domain.RelationEndPointDefinition, related *DomainObject) error {
	if _, err := t.checkObject(related); err != nil {
		return err
	}
	if related.id.Class != def.OppositeClass {
		return domain.TypeMismatchError{Property: def.Property, Expected: def.OppositeClass, Actual: related.id.Class}
	}
	return nil
}

func subjectOf(obj *DomainObject) domain.ObjectID {
	if obj == nil {
		return domain.ObjectID{}
	}
	return obj.id
}
