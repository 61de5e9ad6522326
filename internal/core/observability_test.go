package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"unitofwork/internal/config"
	"unitofwork/pkg/domain"
)

func TestNoopObservabilityImplementations(t *testing.T) {
	ctx := context.Background()
	opts := defaultTransactionOptions()
	opts.logger.Debug("debug")
	opts.logger.Info("info")
	opts.logger.Warn("warn")
	opts.logger.Error("error")
	opts.audit.Record(ctx, AuditEntry{Operation: "noop"})
	opts.metrics.Observe(ctx, "noop", true, time.Millisecond)
	spanCtx, span := opts.tracer.Start(ctx, "noop")
	assert.Equal(t, ctx, spanCtx)
	span.End(errors.New("ignored"))
	assert.False(t, opts.clock.Now().IsZero())
}

func TestTransactionObservability(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	audit := &captureAuditRecorder{}
	logger := &captureLogger{}
	tx := newTx(orderFixture(t),
		WithClock(ClockFunc(func() time.Time { return fixed })),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithAuditRecorder(audit),
		WithLogger(logger),
		WithTransactionID("tx-observed"),
	)
	a := oid("Order", "a")
	order := mustGet(t, tx, a)
	customer := mustGet(t, tx, oid("Customer", "c2"))

	require.NoError(t, tx.SetRelatedObject(ctx, order, orderCustomer, customer))
	err := tx.SetRelatedObject(ctx, order, "Order.Nope", customer)
	require.ErrorIs(t, err, domain.ErrUnknownProperty)
	_, err = tx.Commit(ctx)
	require.NoError(t, err)

	assert.True(t, metrics.has(opGetObject, true))
	assert.True(t, metrics.has(opSetRelatedObject, true))
	assert.True(t, metrics.has(opSetRelatedObject, false))
	assert.True(t, metrics.has(opCommit, true))
	assert.Equal(t, []string{opGetObject, opGetObject, opSetRelatedObject, opSetRelatedObject, opCommit}, tracer.started)
	require.Len(t, tracer.ended, 5)
	assert.ErrorIs(t, tracer.ended[3].err, domain.ErrUnknownProperty)

	require.Len(t, audit.entries, 3, "loads are not audited")
	assert.Equal(t, AuditEntry{
		Operation:   opSetRelatedObject,
		Transaction: "tx-observed",
		Action:      domain.ActionRelate,
		Entity:      "Order",
		EntityID:    a,
		Status:      AuditStatusSuccess,
		Timestamp:   fixed,
	}, audit.entries[0])
	assert.Equal(t, AuditStatusError, audit.entries[1].Status)
	assert.Contains(t, audit.entries[1].Error, "Order.Nope")
	assert.Equal(t, opCommit, audit.entries[2].Operation)
	assert.Empty(t, audit.entries[2].Entity)

	assert.Contains(t, logger.calls, "w:transaction operation failed")
	assert.Contains(t, logger.calls, "d:transaction operation completed")
	assert.Contains(t, logger.calls, "d:object loaded")
}

func TestEveryMutationIsAudited(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	tx := newTx(nil, WithAuditRecorder(audit))
	customer := mustNew(t, tx, "Customer")
	o1, o2, o3 := mustNew(t, tx, "Order"), mustNew(t, tx, "Order"), mustNew(t, tx, "Order")

	require.NoError(t, tx.AddRelatedObject(ctx, customer, customerOrders, o1))
	require.NoError(t, tx.InsertRelatedObject(ctx, customer, customerOrders, 0, o2))
	require.NoError(t, tx.ReplaceRelatedObject(ctx, customer, customerOrders, 0, o3))
	require.NoError(t, tx.RemoveRelatedObject(ctx, customer, customerOrders, o1))
	require.NoError(t, tx.SetRelatedObjects(ctx, customer, customerOrders, []*DomainObject{o1, o2}))
	require.NoError(t, tx.SetRelatedObject(ctx, o3, orderCustomer, customer))
	require.NoError(t, tx.Delete(ctx, o3))
	require.NoError(t, tx.Rollback(ctx))

	var ops []string
	for _, entry := range audit.entries {
		ops = append(ops, entry.Operation)
		assert.Equal(t, AuditStatusSuccess, entry.Status)
	}
	assert.Equal(t, []string{
		opAddRelatedObject, opInsertRelatedObject, opReplaceRelatedObject, opRemoveRelatedObject,
		opSetRelatedObjects, opSetRelatedObject, opDelete, opRollback,
	}, ops)
	assert.Equal(t, domain.ActionDelete, audit.entries[6].Action)
	assert.Equal(t, domain.ActionRelate, audit.entries[0].Action)
	assert.Equal(t, "Customer", audit.entries[0].Entity)
}

func TestExpvarMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewExpvarMetricsRecorder("")
	require.NotNil(t, expvar.Get(rec.Name()))

	rec.Observe(ctx, opCommit, true, 2*time.Millisecond)
	rec.Observe(ctx, opCommit, false, time.Millisecond)
	rec.Observe(ctx, opCommit, true, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	snap := rec.Snapshot()
	assert.Equal(t, int64(2), snap.Results[opCommit]["success"])
	assert.Equal(t, int64(1), snap.Results[opCommit]["error"])
	assert.InDelta(t, 4.0, snap.DurationsMS[opCommit], 0.001)
	assert.Len(t, snap.Results, 1)

	var published ExpvarMetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(expvar.Get(rec.Name()).String()), &published))
	assert.Equal(t, snap.Results, published.Results)
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg, "uow")

	rec.Observe(ctx, opCommit, true, 10*time.Millisecond)
	rec.Observe(ctx, opCommit, false, 20*time.Millisecond)
	rec.Observe(ctx, opCommit, true, 30*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	var histogramSamples uint64
	for _, mf := range families {
		switch mf.GetName() {
		case "uow_transaction_operations_total":
			for _, m := range mf.GetMetric() {
				labels := map[string]string{}
				for _, pair := range m.GetLabel() {
					labels[pair.GetName()] = pair.GetValue()
				}
				counts[labels["operation"]+"/"+labels["status"]] = m.GetCounter().GetValue()
			}
		case "uow_transaction_operation_duration_seconds":
			for _, m := range mf.GetMetric() {
				histogramSamples += m.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.Equal(t, map[string]float64{"commit/success": 2, "commit/error": 1}, counts)
	assert.Equal(t, uint64(3), histogramSamples)
}

func TestJSONTracer(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(ctx, opCommit)
	span.End(nil)
	_, span = tracer.Start(ctx, opRollback)
	span.End(errors.New("storage offline"))

	entries := tracer.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, "error", entries[1].Status)
	assert.Equal(t, "storage offline", entries[1].Error)

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		var entry JSONTraceEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines++
	}
	assert.Equal(t, 2, lines)

	silent := NewJSONTracer(nil)
	_, span = silent.Start(ctx, opCommit)
	span.End(nil)
	assert.Len(t, silent.Entries(), 1)
}

func TestOTelTracer(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	tx := newTx(orderFixture(t), WithTracer(NewOTelTracer(provider)))

	_, err := tx.GetObject(ctx, oid("Order", "missing"))
	require.Error(t, err)
	_, err = tx.Commit(ctx)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "unitofwork.get_object", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "unitofwork.commit", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	var found bool
	for _, attr := range spans[1].Attributes() {
		if string(attr.Key) == "unitofwork.operation" && attr.Value.AsString() == opCommit {
			found = true
		}
	}
	assert.True(t, found)
}

func TestObservabilityFactories(t *testing.T) {
	metrics, err := NewMetricsRecorder(config.MetricsConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, noopMetricsRecorder{}, metrics)
	metrics, err = NewMetricsRecorder(config.MetricsConfig{Backend: "expvar"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ExpvarMetricsRecorder{}, metrics)
	metrics, err = NewMetricsRecorder(config.MetricsConfig{Backend: "prometheus", Namespace: "factory"}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.IsType(t, &PrometheusMetricsRecorder{}, metrics)
	_, err = NewMetricsRecorder(config.MetricsConfig{Backend: "statsd"}, nil)
	assert.Error(t, err)

	tracer, err := NewTracer(config.TracingConfig{Backend: "none"}, nil)
	require.NoError(t, err)
	assert.IsType(t, noopTracer{}, tracer)
	tracer, err = NewTracer(config.TracingConfig{Backend: "json"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &JSONTraceTracer{}, tracer)
	tracer, err = NewTracer(config.TracingConfig{Backend: "otel"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OTelTracer{}, tracer)
	_, err = NewTracer(config.TracingConfig{Backend: "zipkin"}, nil)
	assert.Error(t, err)
}
