package core

import (
	"time"

	"unitofwork/pkg/domain"
)

type transactionOptions struct {
	clock     Clock
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	listeners []domain.TransactionListener
	rules     *domain.RulesEngine
	id        string
}

// Option customises a ClientTransaction.
type Option func(*transactionOptions)

func defaultTransactionOptions() transactionOptions {
	return transactionOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		rules:   domain.NewRulesEngine(),
	}
}

// WithClock overrides the clock used for durations and audit timestamps.
func WithClock(clock Clock) Option {
	return func(o *transactionOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(o *transactionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder records an audit entry per mutation, commit and rollback.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *transactionOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *transactionOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *transactionOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithListener subscribes a transaction-wide listener. Listeners are
// notified in registration order; the first veto wins.
func WithListener(listener domain.TransactionListener) Option {
	return func(o *transactionOptions) {
		if listener != nil {
			o.listeners = append(o.listeners, listener)
		}
	}
}

// WithRule registers a commit-time rule.
func WithRule(rule domain.Rule) Option {
	return func(o *transactionOptions) {
		if rule != nil {
			o.rules.Register(rule)
		}
	}
}

// WithRulesEngine replaces the rules engine, dropping rules registered earlier.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(o *transactionOptions) {
		if engine != nil {
			o.rules = engine
		}
	}
}

// WithTransactionID fixes the transaction identifier instead of minting one.
func WithTransactionID(id string) Option {
	return func(o *transactionOptions) {
		if id != "" {
			o.id = id
		}
	}
}
