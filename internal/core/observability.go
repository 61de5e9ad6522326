package core

import (
	"context"
	"time"

	"unitofwork/pkg/domain"
)

// Logger is the structured logging surface used by the transaction. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus captures the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one completed transaction operation.
type AuditEntry struct {
	Operation   string          `json:"operation"`
	Transaction string          `json:"transaction"`
	Action      domain.Action   `json:"action,omitempty"`
	Entity      string          `json:"entity,omitempty"`
	EntityID    domain.ObjectID `json:"entity_id"`
	Status      AuditStatus     `json:"status"`
	Error       string          `json:"error,omitempty"`
	Duration    time.Duration   `json:"duration"`
	Timestamp   time.Time       `json:"timestamp"`
}

// AuditRecorder receives audit entries for mutations and commits.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around transaction operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// operationAudit maps audited operations to the action they record.
var operationAudit = map[string]domain.Action{
	opSetRelatedObject:     domain.ActionRelate,
	opInsertRelatedObject:  domain.ActionRelate,
	opAddRelatedObject:     domain.ActionRelate,
	opRemoveRelatedObject:  domain.ActionRelate,
	opReplaceRelatedObject: domain.ActionRelate,
	opSetRelatedObjects:    domain.ActionRelate,
	opDelete:               domain.ActionDelete,
	opCommit:               "",
	opRollback:             "",
}

// run wraps fn with tracing, metrics, logging and auditing.
func (t *ClientTransaction) run(ctx context.Context, op string, subject domain.ObjectID, fn func(context.Context) error) error {
	start := t.clock.Now()
	ctx, span := t.tracer.Start(ctx, op)
	err := fn(ctx)
	duration := t.clock.Now().Sub(start)
	span.End(err)
	t.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		t.logger.Warn("transaction operation failed", "operation", op, "tx", t.id, "object", subject.String(), "error", err)
		t.recordAudit(ctx, op, subject, duration, err)
		return err
	}
	t.logger.Debug("transaction operation completed", "operation", op, "tx", t.id, "object", subject.String(), "duration", duration)
	t.recordAudit(ctx, op, subject, duration, nil)
	return nil
}

func (t *ClientTransaction) recordAudit(ctx context.Context, op string, subject domain.ObjectID, duration time.Duration, err error) {
	action, ok := operationAudit[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation:   op,
		Transaction: t.id,
		Action:      action,
		Entity:      subject.Class,
		EntityID:    subject,
		Status:      AuditStatusSuccess,
		Duration:    duration,
		Timestamp:   t.clock.Now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	t.audit.Record(ctx, entry)
}
