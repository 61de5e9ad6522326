package core

import (
	"context"

	"unitofwork/pkg/domain"
)

// GetRelatedObject returns the object referenced by property of obj, or nil
// when the relation is empty.
func (t *ClientTransaction) GetRelatedObject(ctx context.Context, obj *DomainObject, property domain.PropertyID) (*DomainObject, error) {
	if _, err := t.checkProperty(obj, property, domain.CardinalityOne); err != nil {
		return nil, err
	}
	id, err := t.RelatedObject(ctx, obj.id, property)
	if err != nil || id.IsZero() {
		return nil, err
	}
	rec, err := t.loadObject(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.object, nil
}

// GetRelatedObjects returns the members of the collection property of obj, in order.
func (t *ClientTransaction) GetRelatedObjects(ctx context.Context, obj *DomainObject, property domain.PropertyID) ([]*DomainObject, error) {
	if _, err := t.checkProperty(obj, property, domain.CardinalityMany); err != nil {
		return nil, err
	}
	ids, err := t.RelatedObjects(ctx, obj.id, property)
	if err != nil {
		return nil, err
	}
	out := make([]*DomainObject, 0, len(ids))
	for _, id := range ids {
		rec, err := t.loadObject(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.object)
	}
	return out, nil
}

// RelatedObject implements domain.RuleView without object guards.
func (t *ClientTransaction) RelatedObject(ctx context.Context, owner domain.ObjectID, property domain.PropertyID) (domain.ObjectID, error) {
	ep, err := t.endPoints.GetReferenceEnd(ctx, domain.NewRelationEndPointID(owner, property))
	if err != nil {
		return domain.ObjectID{}, err
	}
	return ep.OppositeObjectID(), nil
}

// RelatedObjects implements domain.RuleView without object guards.
func (t *ClientTransaction) RelatedObjects(ctx context.Context, owner domain.ObjectID, property domain.PropertyID) ([]domain.ObjectID, error) {
	ep, err := t.endPoints.GetCollectionEnd(ctx, domain.NewRelationEndPointID(owner, property))
	if err != nil {
		return nil, err
	}
	return ep.Collection().IDs(), nil
}
