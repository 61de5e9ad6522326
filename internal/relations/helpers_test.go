package relations

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"unitofwork/pkg/domain"
)

const (
	orderCustomer    domain.PropertyID = "Order.Customer"
	customerOrders   domain.PropertyID = "Customer.Orders"
	computerEmployee domain.PropertyID = "Computer.Employee"
	employeeComputer domain.PropertyID = "Employee.Computer"
	orderOfficial    domain.PropertyID = "Order.Official"
)

func testSchema() *domain.Schema {
	return domain.MustSchema(
		domain.RelationDefinition{Kind: domain.OneToMany, Property: orderCustomer, OppositeProperty: customerOrders},
		domain.RelationDefinition{Kind: domain.OneToOne, Property: computerEmployee, OppositeProperty: employeeComputer},
		domain.RelationDefinition{Kind: domain.Unidirectional, Property: orderOfficial, OppositeClass: "Official"},
	)
}

func oid(class, value string) domain.ObjectID {
	return domain.ObjectID{Class: class, Value: value}
}

func epid(id domain.ObjectID, property domain.PropertyID) domain.RelationEndPointID {
	return domain.NewRelationEndPointID(id, property)
}

// recorder collects every notification in arrival order.
type recorder struct {
	events []string
	vetoes map[string]error
}

func (r *recorder) record(event string) error {
	r.events = append(r.events, event)
	return r.vetoes[event]
}

type recordingListener struct {
	domain.NopTransactionListener
	rec *recorder
}

func (l recordingListener) RelationChanging(owner domain.ObjectID, property domain.PropertyID, oldRelated, newRelated domain.ObjectID) error {
	return l.rec.record(fmt.Sprintf("changing %s.%s %s->%s", owner.Value, property.Name(), oldRelated.Value, newRelated.Value))
}

func (l recordingListener) RelationChanged(owner domain.ObjectID, property domain.PropertyID) {
	_ = l.rec.record(fmt.Sprintf("changed %s.%s", owner.Value, property.Name()))
}

func (l recordingListener) ObjectDeleting(id domain.ObjectID) error {
	return l.rec.record("deleting " + id.Value)
}

func (l recordingListener) ObjectDeleted(id domain.ObjectID) {
	_ = l.rec.record("deleted " + id.Value)
}

type recordingObjectSink struct {
	rec   *recorder
	owner domain.ObjectID
}

func (s recordingObjectSink) BeginRelationChange(property domain.PropertyID, oldRelated, newRelated domain.ObjectID) error {
	return s.rec.record(fmt.Sprintf("begin %s.%s %s->%s", s.owner.Value, property.Name(), oldRelated.Value, newRelated.Value))
}

func (s recordingObjectSink) EndRelationChange(property domain.PropertyID) {
	_ = s.rec.record(fmt.Sprintf("end %s.%s", s.owner.Value, property.Name()))
}

func (s recordingObjectSink) Deleting() error { return s.rec.record("object deleting " + s.owner.Value) }

func (s recordingObjectSink) Deleted() { _ = s.rec.record("object deleted " + s.owner.Value) }

type recordingCollectionSink struct {
	rec *recorder
	id  domain.RelationEndPointID
}

func (s recordingCollectionSink) Adding(id domain.ObjectID) error {
	return s.rec.record(fmt.Sprintf("adding %s.%s +%s", s.id.ObjectID.Value, s.id.Property.Name(), id.Value))
}

func (s recordingCollectionSink) Added(id domain.ObjectID) {
	_ = s.rec.record(fmt.Sprintf("added %s.%s +%s", s.id.ObjectID.Value, s.id.Property.Name(), id.Value))
}

func (s recordingCollectionSink) Removing(id domain.ObjectID) error {
	return s.rec.record(fmt.Sprintf("removing %s.%s -%s", s.id.ObjectID.Value, s.id.Property.Name(), id.Value))
}

func (s recordingCollectionSink) Removed(id domain.ObjectID) {
	_ = s.rec.record(fmt.Sprintf("removed %s.%s -%s", s.id.ObjectID.Value, s.id.Property.Name(), id.Value))
}

type testHost struct {
	rec        *recorder
	registered []domain.RelationEndPointID
}

type registrationListener struct {
	recordingListener
	host *testHost
}

func (l registrationListener) EndPointRegistered(id domain.RelationEndPointID) {
	l.host.registered = append(l.host.registered, id)
}

func (h *testHost) TransactionID() string { return "tx-test" }

func (h *testHost) Listener() domain.TransactionListener {
	return registrationListener{recordingListener: recordingListener{rec: h.rec}, host: h}
}

func (h *testHost) ObjectEvents(id domain.ObjectID) domain.ObjectEventSink {
	return recordingObjectSink{rec: h.rec, owner: id}
}

func (h *testHost) CollectionEvents(id domain.RelationEndPointID) domain.CollectionEventSink {
	return recordingCollectionSink{rec: h.rec, id: id}
}

// stubLoader registers end points from preset data; anything unknown loads empty.
type stubLoader struct {
	m      *Map
	refs   map[domain.RelationEndPointID]domain.ObjectID
	colls  map[domain.RelationEndPointID][]domain.ObjectID
	loads  []domain.RelationEndPointID
	skip   bool
	failed error
}

func (l *stubLoader) LoadReferenceEndPoint(_ context.Context, id domain.RelationEndPointID) error {
	l.loads = append(l.loads, id)
	if l.failed != nil {
		return l.failed
	}
	if l.skip {
		return nil
	}
	_, err := l.m.RegisterReference(id, l.refs[id])
	return err
}

func (l *stubLoader) LoadCollectionEndPoint(_ context.Context, id domain.RelationEndPointID) error {
	l.loads = append(l.loads, id)
	if l.failed != nil {
		return l.failed
	}
	if l.skip {
		return nil
	}
	_, err := l.m.RegisterCollection(id, l.colls[id])
	return err
}

type fixture struct {
	host   *testHost
	loader *stubLoader
	m      *Map
}

func newFixture() *fixture {
	host := &testHost{rec: &recorder{vetoes: map[string]error{}}}
	loader := &stubLoader{
		refs:  map[domain.RelationEndPointID]domain.ObjectID{},
		colls: map[domain.RelationEndPointID][]domain.ObjectID{},
	}
	m := NewMap(host, testSchema(), loader)
	loader.m = m
	return &fixture{host: host, loader: loader, m: m}
}

// relateOrder seeds a consistent Order.Customer / Customer.Orders pair in storage.
func (f *fixture) relateOrder(order, customer domain.ObjectID) {
	f.loader.refs[epid(order, orderCustomer)] = customer
	key := epid(customer, customerOrders)
	f.loader.colls[key] = append(f.loader.colls[key], order)
}

// relateComputer seeds a consistent one-to-one pair in storage.
func (f *fixture) relateComputer(computer, employee domain.ObjectID) {
	f.loader.refs[epid(computer, computerEmployee)] = employee
	f.loader.refs[epid(employee, employeeComputer)] = computer
}

func (f *fixture) reference(t *testing.T, id domain.ObjectID, property domain.PropertyID) *ReferenceEndPoint {
	t.Helper()
	ep, err := f.m.GetOrLoad(context.Background(), epid(id, property))
	require.NoError(t, err)
	ref, ok := ep.(*ReferenceEndPoint)
	require.True(t, ok, "expected reference end point, got %T", ep)
	return ref
}

func (f *fixture) collection(t *testing.T, id domain.ObjectID, property domain.PropertyID) *CollectionEndPoint {
	t.Helper()
	ep, err := f.m.GetOrLoad(context.Background(), epid(id, property))
	require.NoError(t, err)
	coll, ok := ep.(*CollectionEndPoint)
	require.True(t, ok, "expected collection end point, got %T", ep)
	return coll
}

func (f *fixture) execute(t *testing.T, cmd Command, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NoError(t, Execute(context.Background(), cmd))
}
