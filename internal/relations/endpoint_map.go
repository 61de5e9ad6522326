package relations

import (
	"context"
	"fmt"
	"sort"

	"unitofwork/pkg/domain"
)

// Map is the per-transaction registry of loaded end points. It holds at most
// one end point per RelationEndPointID and never stores null end points.
type Map struct {
	host      Host
	schema    domain.SchemaProvider
	loader    LazyLoader
	logger    Logger
	endPoints map[domain.RelationEndPointID]EndPoint
}

// MapOption customises a Map.
type MapOption func(*Map)

// WithLogger routes registration diagnostics to logger.
func WithLogger(logger Logger) MapOption {
	return func(m *Map) {
		if logger != nil {
			m.logger = logger
		}
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// NewMap constructs an empty registry bound to host.
func NewMap(host Host, schema domain.SchemaProvider, loader LazyLoader, opts ...MapOption) *Map {
	m := &Map{
		host:      host,
		schema:    schema,
		loader:    loader,
		logger:    noopLogger{},
		endPoints: make(map[domain.RelationEndPointID]EndPoint),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Host returns the transaction scope the map belongs to.
func (m *Map) Host() Host { return m.host }

// Schema returns the schema used to resolve definitions.
func (m *Map) Schema() domain.SchemaProvider { return m.schema }

// Len returns the number of registered end points.
func (m *Map) Len() int { return len(m.endPoints) }

// Get returns a registered end point without loading.
func (m *Map) Get(id domain.RelationEndPointID) (EndPoint, bool) {
	ep, ok := m.endPoints[id]
	return ep, ok
}

// Definition resolves the end point definition for property.
func (m *Map) Definition(property domain.PropertyID) (domain.RelationEndPointDefinition, error) {
	def, ok := m.schema.Definition(property)
	if !ok {
		return domain.RelationEndPointDefinition{}, fmt.Errorf("%w: %s", domain.ErrUnknownProperty, property)
	}
	return def, nil
}

// GetOrLoad returns the end point for id, invoking the lazy loader when it
// is not registered yet. A zero object id yields the null end point.
func (m *Map) GetOrLoad(ctx context.Context, id domain.RelationEndPointID) (EndPoint, error) {
	def, err := m.Definition(id.Property)
	if err != nil {
		return nil, err
	}
	if id.ObjectID.IsZero() {
		return NewNullEndPoint(def), nil
	}
	if ep, ok := m.endPoints[id]; ok {
		return ep, nil
	}
	if def.Cardinality == domain.CardinalityMany {
		err = m.loader.LoadCollectionEndPoint(ctx, id)
	} else {
		err = m.loader.LoadReferenceEndPoint(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load end point %s: %w", id, err)
	}
	ep, ok := m.endPoints[id]
	if !ok {
		return nil, domain.InvalidOperationf("loader did not register end point %s", id)
	}
	return ep, nil
}

// GetReferenceEnd loads a cardinality-one end point.
func (m *Map) GetReferenceEnd(ctx context.Context, id domain.RelationEndPointID) (ReferenceEnd, error) {
	ep, err := m.GetOrLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, ok := ep.(ReferenceEnd)
	if !ok {
		return nil, domain.InvalidOperationf("end point %s is not a reference end point", id)
	}
	return ref, nil
}

// GetCollectionEnd loads a cardinality-many end point.
func (m *Map) GetCollectionEnd(ctx context.Context, id domain.RelationEndPointID) (CollectionEnd, error) {
	ep, err := m.GetOrLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	coll, ok := ep.(CollectionEnd)
	if !ok {
		return nil, domain.InvalidOperationf("end point %s is not a collection end point", id)
	}
	return coll, nil
}

// GetOppositeEndPoint returns related's end point on the far side of ep.
// Anonymous far sides and empty related objects yield null end points.
func (m *Map) GetOppositeEndPoint(ctx context.Context, ep EndPoint, related domain.ObjectID) (EndPoint, error) {
	opposite := m.schema.OppositeDefinition(ep.Definition())
	if opposite.IsAnonymous() || related.IsZero() {
		return NewNullEndPoint(opposite), nil
	}
	return m.GetOrLoad(ctx, domain.NewRelationEndPointID(related, opposite.Property))
}

func (m *Map) oppositeReference(ctx context.Context, ep EndPoint, related domain.ObjectID) (ReferenceEnd, error) {
	opposite, err := m.GetOppositeEndPoint(ctx, ep, related)
	if err != nil {
		return nil, err
	}
	ref, ok := opposite.(ReferenceEnd)
	if !ok {
		return nil, domain.InvalidOperationf("opposite of %s is not a reference end point", ep.ID())
	}
	return ref, nil
}

func (m *Map) oppositeCollection(ctx context.Context, ep EndPoint, related domain.ObjectID) (CollectionEnd, error) {
	opposite, err := m.GetOppositeEndPoint(ctx, ep, related)
	if err != nil {
		return nil, err
	}
	coll, ok := opposite.(CollectionEnd)
	if !ok {
		return nil, domain.InvalidOperationf("opposite of %s is not a collection end point", ep.ID())
	}
	return coll, nil
}

// RegisterReference seeds a reference end point from loaded or new data.
func (m *Map) RegisterReference(id domain.RelationEndPointID, opposite domain.ObjectID) (*ReferenceEndPoint, error) {
	def, err := m.Definition(id.Property)
	if err != nil {
		return nil, err
	}
	if def.Cardinality != domain.CardinalityOne {
		return nil, domain.InvalidOperationf("property %s is not a reference", id.Property)
	}
	ep := newReferenceEndPoint(m, id, def, opposite)
	if err := m.Add(ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// RegisterCollection seeds a collection end point from loaded or new data.
func (m *Map) RegisterCollection(id domain.RelationEndPointID, members []domain.ObjectID) (*CollectionEndPoint, error) {
	def, err := m.Definition(id.Property)
	if err != nil {
		return nil, err
	}
	if def.Cardinality != domain.CardinalityMany {
		return nil, domain.InvalidOperationf("property %s is not a collection", id.Property)
	}
	if _, exists := m.endPoints[id]; exists {
		return nil, domain.InvalidOperationf("end point %s is already registered", id)
	}
	collection, err := NewObjectCollection(members...)
	if err != nil {
		return nil, err
	}
	ep := newCollectionEndPoint(m, id, def, collection)
	if err := m.Add(ep); err != nil {
		collection.detach()
		return nil, err
	}
	return ep, nil
}

// Add registers ep. Null end points and duplicates are rejected.
func (m *Map) Add(ep EndPoint) error {
	if ep.IsNull() {
		return domain.InvalidOperationf("null end point %s cannot be registered", ep.ID())
	}
	id := ep.ID()
	if _, exists := m.endPoints[id]; exists {
		return domain.InvalidOperationf("end point %s is already registered", id)
	}
	m.endPoints[id] = ep
	m.host.Listener().EndPointRegistered(id)
	m.logger.Debug("end point registered", "end_point", id.String(), "tx", m.host.TransactionID())
	return nil
}

// Remove unregisters the end point with id, if present.
func (m *Map) Remove(id domain.RelationEndPointID) {
	ep, ok := m.endPoints[id]
	if !ok {
		return
	}
	if coll, isColl := ep.(*CollectionEndPoint); isColl {
		coll.collection.detach()
	}
	delete(m.endPoints, id)
	m.host.Listener().EndPointUnregistered(id)
	m.logger.Debug("end point unregistered", "end_point", id.String(), "tx", m.host.TransactionID())
}

// UnregisterObject removes every end point owned by object.
func (m *Map) UnregisterObject(object domain.ObjectID) {
	for _, ep := range m.EndPointsOf(object) {
		m.Remove(ep.ID())
	}
}

// EndPoints lists all registered end points ordered by id.
func (m *Map) EndPoints() []EndPoint {
	out := make([]EndPoint, 0, len(m.endPoints))
	for _, ep := range m.endPoints {
		out = append(out, ep)
	}
	sortEndPoints(out)
	return out
}

// EndPointsOf lists the registered end points owned by object.
func (m *Map) EndPointsOf(object domain.ObjectID) []EndPoint {
	var out []EndPoint
	for id, ep := range m.endPoints {
		if id.ObjectID == object {
			out = append(out, ep)
		}
	}
	sortEndPoints(out)
	return out
}

// Commit drops the end points of deleted objects and commits the rest.
func (m *Map) Commit(deleted []domain.ObjectID) error {
	for _, id := range deleted {
		m.UnregisterObject(id)
	}
	for _, ep := range m.EndPoints() {
		if err := ep.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", ep.ID(), err)
		}
	}
	return nil
}

// Rollback drops the end points of new objects and restores the rest.
func (m *Map) Rollback(newObjects []domain.ObjectID) error {
	for _, id := range newObjects {
		m.UnregisterObject(id)
	}
	for _, ep := range m.EndPoints() {
		if err := ep.Rollback(); err != nil {
			return fmt.Errorf("rollback %s: %w", ep.ID(), err)
		}
	}
	return nil
}

func sortEndPoints(eps []EndPoint) {
	sort.Slice(eps, func(i, j int) bool { return eps[i].ID().Less(eps[j].ID()) })
}
