package relations

import (
	"fmt"

	"unitofwork/pkg/domain"
)

// FlattenedKind discriminates the serialized end point shapes.
type FlattenedKind string

const (
	FlattenedReference      FlattenedKind = "reference"
	FlattenedCollection     FlattenedKind = "collection"
	FlattenedNullReference  FlattenedKind = "null_reference"
	FlattenedNullCollection FlattenedKind = "null_collection"
)

// FlattenedEndPoint is the transport form of one end point. Original is only
// read for touched end points; an untouched end point restores with its
// current value as original. Replaced records that a collection end point
// holds a different collection instance than the one it was loaded with.
type FlattenedEndPoint struct {
	Kind     FlattenedKind     `json:"kind"`
	ObjectID domain.ObjectID   `json:"object_id"`
	Property domain.PropertyID `json:"property"`
	Touched  bool              `json:"touched"`
	Current  []domain.ObjectID `json:"current"`
	Original []domain.ObjectID `json:"original,omitempty"`
	Replaced bool              `json:"replaced,omitempty"`
}

// ID returns the identifier of the flattened end point.
func (f FlattenedEndPoint) ID() domain.RelationEndPointID {
	return domain.NewRelationEndPointID(f.ObjectID, f.Property)
}

// Flatten serializes ep.
func Flatten(ep EndPoint) FlattenedEndPoint {
	switch v := ep.(type) {
	case *ReferenceEndPoint:
		out := FlattenedEndPoint{
			Kind:     FlattenedReference,
			ObjectID: v.ObjectID(),
			Property: v.def.Property,
			Touched:  v.touched,
			Current:  optionalID(v.current),
		}
		if v.touched {
			out.Original = optionalID(v.original)
		}
		return out
	case *CollectionEndPoint:
		out := FlattenedEndPoint{
			Kind:     FlattenedCollection,
			ObjectID: v.ObjectID(),
			Property: v.def.Property,
			Touched:  v.touched,
			Current:  v.collection.IDs(),
		}
		if v.touched {
			out.Original = v.OriginalIDs()
			out.Replaced = v.collection != v.originalCollection
		}
		return out
	case *NullReferenceEndPoint:
		return FlattenedEndPoint{Kind: FlattenedNullReference, Property: v.def.Property}
	case *NullCollectionEndPoint:
		return FlattenedEndPoint{Kind: FlattenedNullCollection, Property: v.def.Property}
	default:
		panic(fmt.Sprintf("relations: unknown end point type %T", ep))
	}
}

// Unflatten rebuilds a detached end point for m from its flattened form.
func Unflatten(m *Map, flat FlattenedEndPoint) (EndPoint, error) {
	def, err := m.Definition(flat.Property)
	if err != nil {
		return nil, err
	}
	switch flat.Kind {
	case FlattenedNullReference, FlattenedNullCollection:
		return NewNullEndPoint(def), nil
	case FlattenedReference:
		if def.Cardinality != domain.CardinalityOne {
			return nil, domain.InvalidOperationf("property %s is not a reference", flat.Property)
		}
		current, err := singleID(flat.Current)
		if err != nil {
			return nil, err
		}
		original := current
		if flat.Touched {
			if original, err = singleID(flat.Original); err != nil {
				return nil, err
			}
		}
		ep := newReferenceEndPoint(m, flat.ID(), def, current)
		ep.original = original
		ep.touched = flat.Touched
		return ep, nil
	case FlattenedCollection:
		if def.Cardinality != domain.CardinalityMany {
			return nil, domain.InvalidOperationf("property %s is not a collection", flat.Property)
		}
		collection, err := NewObjectCollection(flat.Current...)
		if err != nil {
			return nil, err
		}
		ep := newCollectionEndPoint(m, flat.ID(), def, collection)
		if flat.Touched {
			ep.originalData = append([]domain.ObjectID{}, flat.Original...)
			if flat.Replaced {
				original, err := NewObjectCollection(flat.Original...)
				if err != nil {
					return nil, err
				}
				ep.originalCollection = original
			}
		}
		ep.touched = flat.Touched
		return ep, nil
	default:
		return nil, domain.InvalidOperationf("unknown flattened end point kind %q", flat.Kind)
	}
}

// Flatten serializes every registered end point in id order.
func (m *Map) Flatten() []FlattenedEndPoint {
	eps := m.EndPoints()
	out := make([]FlattenedEndPoint, 0, len(eps))
	for _, ep := range eps {
		out = append(out, Flatten(ep))
	}
	return out
}

// Restore registers end points from their flattened form. Null kinds are
// rejected because null end points are never stored.
func (m *Map) Restore(flat []FlattenedEndPoint) error {
	for _, f := range flat {
		ep, err := Unflatten(m, f)
		if err != nil {
			return fmt.Errorf("restore %s: %w", f.ID(), err)
		}
		if err := m.Add(ep); err != nil {
			if coll, ok := ep.(*CollectionEndPoint); ok {
				coll.collection.detach()
			}
			return fmt.Errorf("restore %s: %w", f.ID(), err)
		}
	}
	return nil
}

func optionalID(id domain.ObjectID) []domain.ObjectID {
	if id.IsZero() {
		return nil
	}
	return []domain.ObjectID{id}
}

func singleID(ids []domain.ObjectID) (domain.ObjectID, error) {
	switch len(ids) {
	case 0:
		return domain.ObjectID{}, nil
	case 1:
		return ids[0], nil
	default:
		return domain.ObjectID{}, domain.InvalidOperationf("reference end point holds %d values", len(ids))
	}
}
