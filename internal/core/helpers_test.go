package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unitofwork/internal/infra/persistence/memory"
	"unitofwork/pkg/domain"
)

const (
	orderCustomer    domain.PropertyID = "Order.Customer"
	customerOrders   domain.PropertyID = "Customer.Orders"
	computerEmployee domain.PropertyID = "Computer.Employee"
	employeeComputer domain.PropertyID = "Employee.Computer"
	orderOfficial    domain.PropertyID = "Order.Official"
	lineInvoice      domain.PropertyID = "Line.Invoice"
	invoiceLines     domain.PropertyID = "Invoice.Lines"
)

func testSchema() *domain.Schema {
	return domain.MustSchema(
		domain.RelationDefinition{Kind: domain.OneToMany, Property: orderCustomer, OppositeProperty: customerOrders},
		domain.RelationDefinition{Kind: domain.OneToOne, Property: computerEmployee, OppositeProperty: employeeComputer},
		domain.RelationDefinition{Kind: domain.Unidirectional, Property: orderOfficial, OppositeClass: "Official"},
		domain.RelationDefinition{Kind: domain.OneToMany, Property: lineInvoice, OppositeProperty: invoiceLines, Mandatory: true},
	)
}

func oid(class, value string) domain.ObjectID {
	return domain.ObjectID{Class: class, Value: value}
}

func epid(id domain.ObjectID, property domain.PropertyID) domain.RelationEndPointID {
	return domain.NewRelationEndPointID(id, property)
}

func container(id domain.ObjectID, fks map[domain.PropertyID]domain.ObjectID) domain.DataContainer {
	return domain.DataContainer{ID: id, ForeignKeys: fks}
}

// seed stores containers so they carry timestamp 1.
func seed(t *testing.T, store *memory.Store, containers ...domain.DataContainer) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), domain.SaveBatch{Inserts: containers}))
}

// orderFixture stores customers c1, c2 and orders a and b related to c1.
func orderFixture(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	c1 := oid("Customer", "c1")
	seed(t, store,
		container(c1, nil),
		container(oid("Customer", "c2"), nil),
		container(oid("Order", "a"), map[domain.PropertyID]domain.ObjectID{orderCustomer: c1}),
		container(oid("Order", "b"), map[domain.PropertyID]domain.ObjectID{orderCustomer: c1}),
	)
	return store
}

func newTx(store domain.StorageProvider, opts ...Option) *ClientTransaction {
	return NewClientTransaction(store, testSchema(), opts...)
}

func mustGet(t *testing.T, tx *ClientTransaction, id domain.ObjectID) *DomainObject {
	t.Helper()
	obj, err := tx.GetObject(context.Background(), id)
	require.NoError(t, err)
	return obj
}

func mustNew(t *testing.T, tx *ClientTransaction, class string) *DomainObject {
	t.Helper()
	obj, err := tx.NewObject(context.Background(), class)
	require.NoError(t, err)
	return obj
}

func relatedIDs(t *testing.T, tx *ClientTransaction, owner domain.ObjectID, property domain.PropertyID) []domain.ObjectID {
	t.Helper()
	ids, err := tx.RelatedObjects(context.Background(), owner, property)
	require.NoError(t, err)
	return ids
}

func relatedID(t *testing.T, tx *ClientTransaction, owner domain.ObjectID, property domain.PropertyID) domain.ObjectID {
	t.Helper()
	id, err := tx.RelatedObject(context.Background(), owner, property)
	require.NoError(t, err)
	return id
}

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

// eventLog records notifications in arrival order and returns the veto
// configured for an event, if any.
type eventLog struct {
	events []string
	vetoes map[string]error
}

func (l *eventLog) record(event string) error {
	l.events = append(l.events, event)
	return l.vetoes[event]
}

type loggingListener struct {
	domain.NopTransactionListener
	log *eventLog
}

func (l loggingListener) RelationChanging(owner domain.ObjectID, property domain.PropertyID, oldRelated, newRelated domain.ObjectID) error {
	return l.log.record(fmt.Sprintf("changing %s.%s %s->%s", owner.Value, property.Name(), oldRelated.Value, newRelated.Value))
}

func (l loggingListener) RelationChanged(owner domain.ObjectID, property domain.PropertyID) {
	_ = l.log.record(fmt.Sprintf("changed %s.%s", owner.Value, property.Name()))
}

func (l loggingListener) ObjectDeleting(id domain.ObjectID) error {
	return l.log.record("deleting " + id.Value)
}

func (l loggingListener) ObjectDeleted(id domain.ObjectID) {
	_ = l.log.record("deleted " + id.Value)
}

type loggingObjectSink struct {
	log   *eventLog
	owner domain.ObjectID
}

func (s loggingObjectSink) BeginRelationChange(property domain.PropertyID, oldRelated, newRelated domain.ObjectID) error {
	return s.log.record(fmt.Sprintf("begin %s.%s %s->%s", s.owner.Value, property.Name(), oldRelated.Value, newRelated.Value))
}

func (s loggingObjectSink) EndRelationChange(property domain.PropertyID) {
	_ = s.log.record(fmt.Sprintf("end %s.%s", s.owner.Value, property.Name()))
}

func (s loggingObjectSink) Deleting() error { return s.log.record("object deleting " + s.owner.Value) }

func (s loggingObjectSink) Deleted() { _ = s.log.record("object deleted " + s.owner.Value) }

type loggingCollectionSink struct {
	log *eventLog
}

func (s loggingCollectionSink) Adding(id domain.ObjectID) error { return s.log.record("adding " + id.Value) }
func (s loggingCollectionSink) Added(id domain.ObjectID)        { _ = s.log.record("added " + id.Value) }
func (s loggingCollectionSink) Removing(id domain.ObjectID) error {
	return s.log.record("removing " + id.Value)
}
func (s loggingCollectionSink) Removed(id domain.ObjectID) { _ = s.log.record("removed " + id.Value) }

// ruleFunc adapts a function to domain.Rule.
type ruleFunc struct {
	name string
	fn   func(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error)
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	return r.fn(ctx, view, changes)
}
