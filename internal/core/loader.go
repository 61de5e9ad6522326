package core

import (
	"context"
	"fmt"

	"unitofwork/internal/relations"
	"unitofwork/pkg/domain"
)

// loadObject returns the record for id, reading its data container from
// storage the first time.
func (t *ClientTransaction) loadObject(ctx context.Context, id domain.ObjectID) (*objectRecord, error) {
	if id.IsZero() {
		return nil, domain.InvalidOperationf("cannot load an object without identifier")
	}
	if rec, ok := t.objects[id]; ok {
		return rec, nil
	}
	if !t.schema.HasClass(id.Class) {
		return nil, domain.InvalidOperationf("unknown class %q", id.Class)
	}
	c, err := t.storage.LoadDataContainer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return t.registerLoaded(c)
}

// registerLoaded records a container read from storage and registers the
// object's foreign-key end points from it.
func (t *ClientTransaction) registerLoaded(c domain.DataContainer) (*objectRecord, error) {
	if rec, ok := t.objects[c.ID]; ok {
		return rec, nil
	}
	rec := t.addRecord(c, domain.StateUnchanged)
	for _, def := range t.schema.EndPointDefinitions(c.ID.Class) {
		if def.Cardinality != domain.CardinalityOne || def.Virtual {
			continue
		}
		epid := domain.NewRelationEndPointID(c.ID, def.Property)
		if _, ok := t.endPoints.Get(epid); ok {
			continue
		}
		if _, err := t.endPoints.RegisterReference(epid, c.ForeignKey(def.Property)); err != nil {
			return nil, err
		}
	}
	t.logger.Debug("object loaded", "tx", t.id, "object", c.ID.String(), "timestamp", c.Timestamp)
	return rec, nil
}

// LoadReferenceEndPoint implements relations.LazyLoader.
func (t *ClientTransaction) LoadReferenceEndPoint(ctx context.Context, id domain.RelationEndPointID) error {
	def, err := t.endPoints.Definition(id.Property)
	if err != nil {
		return err
	}
	if !def.Virtual {
		rec, err := t.loadObject(ctx, id.ObjectID)
		if err != nil {
			return err
		}
		if _, ok := t.endPoints.Get(id); ok {
			return nil
		}
		if err := checkState(rec); err != nil {
			return err
		}
		_, err = t.endPoints.RegisterReference(id, rec.container.ForeignKey(def.Property))
		return err
	}
	related, err := t.loadRelated(ctx, id, def)
	if err != nil {
		return err
	}
	if len(related) > 1 {
		return domain.InvalidOperationf("%s is referenced by %d objects", id, len(related))
	}
	var opposite domain.ObjectID
	if len(related) == 1 {
		opposite = related[0]
	}
	_, err = t.endPoints.RegisterReference(id, opposite)
	return err
}

// LoadCollectionEndPoint implements relations.LazyLoader.
func (t *ClientTransaction) LoadCollectionEndPoint(ctx context.Context, id domain.RelationEndPointID) error {
	def, err := t.endPoints.Definition(id.Property)
	if err != nil {
		return err
	}
	related, err := t.loadRelated(ctx, id, def)
	if err != nil {
		return err
	}
	_, err = t.endPoints.RegisterCollection(id, related)
	return err
}

// loadRelated queries the objects whose foreign key points at the owner of
// the virtual end point id. The related objects are registered before the
// caller registers id, so both sides exist once loading returns.
func (t *ClientTransaction) loadRelated(ctx context.Context, id domain.RelationEndPointID, def domain.RelationEndPointDefinition) ([]domain.ObjectID, error) {
	owner, err := t.loadObject(ctx, id.ObjectID)
	if err != nil {
		return nil, err
	}
	if err := checkState(owner); err != nil {
		return nil, err
	}
	containers, err := t.storage.LoadRelatedDataContainers(ctx, def.OppositeProperty, id.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("load related %s: %w", id, err)
	}
	var out []domain.ObjectID
	for _, c := range containers {
		rec, err := t.registerLoaded(c)
		if err != nil {
			return nil, err
		}
		if checkState(rec) != nil {
			continue
		}
		// The in-transaction value wins over the stored foreign key.
		if ep, ok := t.endPoints.Get(domain.NewRelationEndPointID(c.ID, def.OppositeProperty)); ok {
			if ref, isRef := ep.(relations.ReferenceEnd); isRef && ref.OppositeObjectID() != id.ObjectID {
				continue
			}
		}
		out = append(out, c.ID)
	}
	return out, nil
}
