// Package core runs the quality lifecycle: definitions, inspections, defects,
// certifications and alerts. Every mutation executes inside a store
// transaction guarded by the commit-time rules engine.
package core

import (
	"context"
	"fmt"
	"time"

	"coopquality/internal/alerting"
	"coopquality/internal/blob"
	"coopquality/internal/infra/persistence/memory"
	"coopquality/internal/quality"
	"coopquality/pkg/domain"
)

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	quality    quality.Config
	alerts     alerting.Config
	audit      AuditRecorder
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	clock      Clock
	dispatcher AlertDispatcher
	evidence   blob.Store
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		quality:    quality.DefaultConfig(),
		alerts:     alerting.DefaultConfig(),
		audit:      noopAudit{},
		logger:     noopLogger{},
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
		clock:      ClockFunc(nil),
		dispatcher: noopDispatcher{},
	}
}

// WithQualityConfig replaces the evaluation thresholds and policies.
func WithQualityConfig(cfg quality.Config) ServiceOption {
	return func(o *serviceOptions) { o.quality = cfg }
}

// WithAlertConfig replaces the certification warning window.
func WithAlertConfig(cfg alerting.Config) ServiceOption {
	return func(o *serviceOptions) { o.alerts = cfg }
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(r AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if r != nil {
			o.audit = r
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l Logger) ServiceOption {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock injects the time source. Stores that stamp records are switched
// to the same clock.
func WithClock(c Clock) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithAlertDispatcher sets where committed alerts are pushed.
func WithAlertDispatcher(d AlertDispatcher) ServiceOption {
	return func(o *serviceOptions) {
		if d != nil {
			o.dispatcher = d
		}
	}
}

// WithEvidenceStore enables evidence uploads and evidence key checks.
func WithEvidenceStore(store blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.evidence = store }
}

// Service exposes the transactional quality operations.
type Service struct {
	store  domain.PersistentStore
	engine *quality.Engine
	opts   serviceOptions
}

type clockSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService builds a service over store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("core: store is required")
	}
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	engine, err := quality.NewEngine(o.quality)
	if err != nil {
		return nil, err
	}
	if err := o.alerts.Validate(); err != nil {
		return nil, err
	}
	if cs, ok := store.(clockSetter); ok {
		cs.SetNowFunc(o.clock.Now)
	}
	return &Service{store: store, engine: engine, opts: o}, nil
}

// NewInMemoryService builds a service over a fresh memory store using the
// default rules.
func NewInMemoryService(opts ...ServiceOption) (*Service, error) {
	return NewService(memory.NewStore(NewDefaultRulesEngine()), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Engine returns the quality engine used for evaluation.
func (s *Service) Engine() *quality.Engine { return s.engine }

// AlertConfig returns the certification warning window.
func (s *Service) AlertConfig() alerting.Config { return s.opts.alerts }

func (s *Service) now() time.Time { return s.opts.clock.Now() }

const (
	opCreateParameter      = "create_parameter_definition"
	opUpdateParameter      = "update_parameter_definition"
	opCreateCriterion      = "create_criterion_definition"
	opUpdateCriterion      = "update_criterion_definition"
	opCreateStandard       = "create_standard"
	opScheduleInspection   = "schedule_inspection"
	opStartInspection      = "start_inspection"
	opRecordEvaluation     = "record_evaluation"
	opCompleteInspection   = "complete_inspection"
	opCancelInspection     = "cancel_inspection"
	opAttachEvidence       = "attach_evidence"
	opReportDefect         = "report_defect"
	opAdvanceDefect        = "advance_defect"
	opCreateCertification  = "create_certification"
	opRenewCertification   = "renew_certification"
	opSuspendCertification = "suspend_certification"
	opRevokeCertification  = "revoke_certification"
	opSweepCertifications  = "sweep_certifications"
	opAcknowledgeAlert     = "acknowledge_alert"
	opResolveAlert         = "resolve_alert"
	opDismissAlert         = "dismiss_alert"
)

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

var operations = map[string]operationMeta{
	opCreateParameter:      {domain.EntityParameter, domain.ActionCreate},
	opUpdateParameter:      {domain.EntityParameter, domain.ActionUpdate},
	opCreateCriterion:      {domain.EntityCriterion, domain.ActionCreate},
	opUpdateCriterion:      {domain.EntityCriterion, domain.ActionUpdate},
	opCreateStandard:       {domain.EntityStandard, domain.ActionCreate},
	opScheduleInspection:   {domain.EntityInspection, domain.ActionCreate},
	opStartInspection:      {domain.EntityInspection, domain.ActionUpdate},
	opRecordEvaluation:     {domain.EntityEvaluationResult, domain.ActionCreate},
	opCompleteInspection:   {domain.EntityInspection, domain.ActionUpdate},
	opCancelInspection:     {domain.EntityInspection, domain.ActionUpdate},
	opAttachEvidence:       {domain.EntityEvaluationResult, domain.ActionCreate},
	opReportDefect:         {domain.EntityDefect, domain.ActionCreate},
	opAdvanceDefect:        {domain.EntityDefect, domain.ActionUpdate},
	opCreateCertification:  {domain.EntityCertification, domain.ActionCreate},
	opRenewCertification:   {domain.EntityCertification, domain.ActionCreate},
	opSuspendCertification: {domain.EntityCertification, domain.ActionUpdate},
	opRevokeCertification:  {domain.EntityCertification, domain.ActionUpdate},
	opSweepCertifications:  {domain.EntityCertification, domain.ActionUpdate},
	opAcknowledgeAlert:     {domain.EntityAlert, domain.ActionUpdate},
	opResolveAlert:         {domain.EntityAlert, domain.ActionUpdate},
	opDismissAlert:         {domain.EntityAlert, domain.ActionUpdate},
}

// audited is what an operation reports for its audit entry.
type audited struct {
	ID      string
	Details map[string]string
}

// instrument wraps fn with a span, a metrics observation and an audit entry.
func (s *Service) instrument(ctx context.Context, op string, fn func(ctx context.Context) (audited, error)) error {
	started := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	a, err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, elapsed)
	s.recordAudit(ctx, op, a, elapsed, err)
	if err != nil {
		s.opts.logger.Debug("operation failed", "operation", op, "error", err)
	}
	return err
}

// execute runs fn in a store transaction under instrument.
func (s *Service) execute(ctx context.Context, op string, fn func(tx domain.Transaction) (audited, error)) (domain.Result, error) {
	var res domain.Result
	err := s.instrument(ctx, op, func(ctx context.Context) (audited, error) {
		var a audited
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var fnErr error
			a, fnErr = fn(tx)
			return fnErr
		})
		return a, err
	})
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.opts.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "entity", v.Entity, "id", v.EntityID, "message", v.Message)
		}
	}
	return res, err
}

func (s *Service) recordAudit(ctx context.Context, op string, a audited, elapsed time.Duration, opErr error) {
	meta, ok := operations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Timestamp: s.now(),
		Actor:     ActorFrom(ctx),
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  a.ID,
		Status:    AuditStatusSuccess,
		Duration:  elapsed,
		Details:   a.Details,
	}
	if opErr != nil {
		entry.Status = AuditStatusError
		entry.Error = opErr.Error()
	}
	if err := s.opts.audit.Record(ctx, entry); err != nil {
		s.opts.logger.Warn("audit record failed", "operation", op, "id", a.ID, "error", err)
	}
}
