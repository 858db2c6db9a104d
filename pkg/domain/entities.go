// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by coopquality.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityParameter identifies a measurable parameter definition.
	EntityParameter EntityType = "parameter_definition"
	// EntityCriterion identifies a scored criterion definition.
	EntityCriterion EntityType = "criterion_definition"
	// EntityStandard identifies a standard or template bundle.
	EntityStandard EntityType = "standard"
	// EntityInspection identifies an inspection of a product lot.
	EntityInspection EntityType = "inspection"
	// EntityEvaluationResult identifies one recorded evaluation within an inspection.
	EntityEvaluationResult EntityType = "evaluation_result"
	// EntityDefect identifies a defect attached to an inspection.
	EntityDefect EntityType = "defect"
	// EntityCertification identifies a product or category certification.
	EntityCertification EntityType = "certification"
	// EntityAlert identifies a generated alert.
	EntityAlert EntityType = "alert"
)

// ParameterType classifies what a parameter measures.
type ParameterType string

// Parameter families recognised by quality standards.
const (
	ParameterPhysical        ParameterType = "physical"
	ParameterChemical        ParameterType = "chemical"
	ParameterMicrobiological ParameterType = "microbiological"
	ParameterOrganoleptic    ParameterType = "organoleptic"
	ParameterPackaging       ParameterType = "packaging"
)

// EvaluationKind describes how a criterion is observed.
type EvaluationKind string

// Criterion evaluation kinds. Subjective and visual criteria are scored on the
// ordinal scale, the rest from a numeric measurement.
const (
	KindObjective   EvaluationKind = "objective"
	KindSubjective  EvaluationKind = "subjective"
	KindMeasurement EvaluationKind = "measurement"
	KindVisual      EvaluationKind = "visual"
	KindChemical    EvaluationKind = "chemical"
)

// Ordinal reports whether observations of this kind are assigned scores rather than measurements.
func (k EvaluationKind) Ordinal() bool {
	return k == KindSubjective || k == KindVisual
}

// QualityTier labels the commercial grade a standard certifies.
type QualityTier string

// Quality tiers.
const (
	TierBasic    QualityTier = "basic"
	TierStandard QualityTier = "standard"
	TierPremium  QualityTier = "premium"
	TierOrganic  QualityTier = "organic"
	TierExport   QualityTier = "export"
)

// ScoringMode selects how a standard aggregates per-item outcomes.
type ScoringMode string

const (
	// ScoringThreshold counts approved items as a percentage and rejects on any
	// mandatory failure. Items reference parameter definitions.
	ScoringThreshold ScoringMode = "threshold"
	// ScoringWeighted compares the weighted mean of normalized scores against a
	// single threshold. Items reference criterion definitions.
	ScoringWeighted ScoringMode = "weighted"
)

// InspectionState enumerates the inspection lifecycle.
type InspectionState string

// Inspection lifecycle states.
const (
	InspectionScheduled   InspectionState = "scheduled"
	InspectionInProgress  InspectionState = "in_progress"
	InspectionCompleted   InspectionState = "completed"
	InspectionApproved    InspectionState = "approved"
	InspectionRejected    InspectionState = "rejected"
	InspectionConditional InspectionState = "conditional"
	InspectionCancelled   InspectionState = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s InspectionState) IsTerminal() bool {
	switch s {
	case InspectionApproved, InspectionRejected, InspectionConditional, InspectionCancelled:
		return true
	}
	return false
}

// Verdict is the qualitative outcome of a single evaluation.
type Verdict string

// Per-item verdicts.
const (
	VerdictOptimal    Verdict = "optimal"
	VerdictAcceptable Verdict = "acceptable"
	VerdictLow        Verdict = "low"
	VerdictHigh       Verdict = "high"
	VerdictOutOfRange Verdict = "out_of_range"
)

// Passing reports whether the verdict counts as approved.
func (v Verdict) Passing() bool {
	return v == VerdictOptimal || v == VerdictAcceptable
}

// Failing reports whether the verdict is a failure class.
func (v Verdict) Failing() bool {
	return v == VerdictLow || v == VerdictHigh || v == VerdictOutOfRange
}

// FinalVerdict is the aggregated outcome of an inspection.
type FinalVerdict string

// Aggregated verdicts.
const (
	FinalApproved    FinalVerdict = "approved"
	FinalConditional FinalVerdict = "conditional"
	FinalRejected    FinalVerdict = "rejected"
)

// InspectionState maps the verdict to the terminal inspection state it produces.
func (v FinalVerdict) InspectionState() InspectionState {
	switch v {
	case FinalApproved:
		return InspectionApproved
	case FinalConditional:
		return InspectionConditional
	default:
		return InspectionRejected
	}
}

// Criticality grades defects and alerts.
type Criticality string

// Criticality levels.
const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// DefectState tracks correction of a defect.
type DefectState string

// Defect correction states.
const (
	DefectReported     DefectState = "reported"
	DefectInCorrection DefectState = "in_correction"
	DefectCorrected    DefectState = "corrected"
	DefectClosed       DefectState = "closed"
)

// CertificationState enumerates certification validity states.
type CertificationState string

// Certification states.
const (
	CertificationActive    CertificationState = "active"
	CertificationExpiring  CertificationState = "expiring"
	CertificationExpired   CertificationState = "expired"
	CertificationSuspended CertificationState = "suspended"
	CertificationRevoked   CertificationState = "revoked"
	CertificationRenewed   CertificationState = "renewed"
)

// AlertType names the condition an alert reports.
type AlertType string

// Alert types emitted by the alert generator.
const (
	AlertInspectionRejected    AlertType = "inspection_rejected"
	AlertInspectionConditional AlertType = "inspection_conditional"
	AlertCriticalParameter     AlertType = "critical_parameter"
	AlertCertificationExpiring AlertType = "certification_expiring"
	AlertCertificationExpired  AlertType = "certification_expired"
)

// AlertState is the acknowledgement lifecycle of an alert.
type AlertState string

// Alert states. Open alerts (active or acknowledged) take part in
// de-duplication.
const (
	AlertActive       AlertState = "active"
	AlertAcknowledged AlertState = "acknowledged"
	AlertResolved     AlertState = "resolved"
	AlertDismissed    AlertState = "dismissed"
)

// Open reports whether the alert still needs attention.
func (s AlertState) Open() bool {
	return s == AlertActive || s == AlertAcknowledged
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParameterDefinition is a measurable reference used by threshold standards.
// Tolerances are percentages of the optimal value.
type ParameterDefinition struct {
	Base
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Type          ParameterType    `json:"type"`
	Unit          string           `json:"unit"`
	Min           *decimal.Decimal `json:"min,omitempty"`
	Optimal       *decimal.Decimal `json:"optimal,omitempty"`
	Max           *decimal.Decimal `json:"max,omitempty"`
	ToleranceLow  decimal.Decimal  `json:"tolerance_low"`
	ToleranceHigh decimal.Decimal  `json:"tolerance_high"`
	Mandatory     bool             `json:"mandatory"`
	Inactive      bool             `json:"inactive,omitempty"`
	Version       int              `json:"version"`
}

// CriterionDefinition is a scored criterion used by weighted templates.
type CriterionDefinition struct {
	Base
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	Kind             EvaluationKind   `json:"kind"`
	Min              *decimal.Decimal `json:"min,omitempty"`
	Optimal          *decimal.Decimal `json:"optimal,omitempty"`
	Max              *decimal.Decimal `json:"max,omitempty"`
	ScaleMin         int              `json:"scale_min"`
	ScaleMax         int              `json:"scale_max"`
	Weight           decimal.Decimal  `json:"weight"`
	Mandatory        bool             `json:"mandatory"`
	RequiresEvidence bool             `json:"requires_evidence"`
	Inactive         bool             `json:"inactive,omitempty"`
	Version          int              `json:"version"`
}

// StandardItem binds one definition into a standard with optional overrides.
type StandardItem struct {
	DefinitionID string           `json:"definition_id"`
	Weight       *decimal.Decimal `json:"weight,omitempty"`
	Mandatory    *bool            `json:"mandatory,omitempty"`
	Order        int              `json:"order"`
}

// Standard bundles definitions applicable to a product or category. In
// threshold mode items reference parameter definitions, in weighted mode
// criterion definitions.
type Standard struct {
	Base
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	ProductID         string           `json:"product_id,omitempty"`
	CategoryID        string           `json:"category_id,omitempty"`
	Tier              QualityTier      `json:"tier"`
	Mode              ScoringMode      `json:"mode"`
	ApprovalThreshold *decimal.Decimal `json:"approval_threshold,omitempty"`
	Items             []StandardItem   `json:"items"`
	Inactive          bool             `json:"inactive,omitempty"`
}

// Inspection is a quality inspection of a product lot against a standard.
type Inspection struct {
	Base
	Code                     string          `json:"code"`
	ProductID                string          `json:"product_id"`
	LotID                    string          `json:"lot_id"`
	Quantity                 decimal.Decimal `json:"quantity"`
	StandardID               string          `json:"standard_id"`
	InspectorID              string          `json:"inspector_id"`
	State                    InspectionState `json:"state"`
	ScheduledFor             time.Time       `json:"scheduled_for"`
	StartedAt                *time.Time      `json:"started_at,omitempty"`
	EndedAt                  *time.Time      `json:"ended_at,omitempty"`
	Score                    decimal.Decimal `json:"score"`
	Verdict                  FinalVerdict    `json:"verdict,omitempty"`
	EvaluatedCount           int             `json:"evaluated_count"`
	ApprovedCount            int             `json:"approved_count"`
	CriticalCount            int             `json:"critical_count"`
	RequiresCorrectiveAction bool            `json:"requires_corrective_action"`
	Observations             string          `json:"observations,omitempty"`
	CancelReason             string          `json:"cancel_reason,omitempty"`
	Version                  int             `json:"version"`
}

// EvaluationResult is the immutable outcome of evaluating one standard item.
type EvaluationResult struct {
	Base
	InspectionID    string           `json:"inspection_id"`
	DefinitionID    string           `json:"definition_id"`
	MeasuredValue   *decimal.Decimal `json:"measured_value,omitempty"`
	AssignedScore   *int             `json:"assigned_score,omitempty"`
	Verdict         Verdict          `json:"verdict"`
	Deviation       decimal.Decimal  `json:"deviation"`
	NormalizedScore *decimal.Decimal `json:"normalized_score,omitempty"`
	Mandatory       bool             `json:"mandatory"`
	Observation     string           `json:"observation,omitempty"`
	EvidenceKey     string           `json:"evidence_key,omitempty"`
	RecordedBy      string           `json:"recorded_by,omitempty"`
}

// Defect is a free-standing finding attached to an inspection.
type Defect struct {
	Base
	InspectionID     string      `json:"inspection_id"`
	Description      string      `json:"description"`
	Severity         Criticality `json:"severity"`
	State            DefectState `json:"state"`
	CorrectiveAction string      `json:"corrective_action,omitempty"`
	ReportedBy       string      `json:"reported_by,omitempty"`
	CorrectedAt      *time.Time  `json:"corrected_at,omitempty"`
	ClosedAt         *time.Time  `json:"closed_at,omitempty"`
}

// Certification is a product or category certification with an expiry date.
type Certification struct {
	Base
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Issuer      string             `json:"issuer"`
	ProductID   string             `json:"product_id,omitempty"`
	CategoryID  string             `json:"category_id,omitempty"`
	IssuedOn    time.Time          `json:"issued_on"`
	ExpiresOn   time.Time          `json:"expires_on"`
	RenewedOn   *time.Time         `json:"renewed_on,omitempty"`
	RenewalOf   string             `json:"renewal_of,omitempty"`
	State       CertificationState `json:"state"`
	StateReason string             `json:"state_reason,omitempty"`
}

// IsValid reports whether the certification is active and not past its expiry
// date at now. It is derived on every call and never stored.
func (c Certification) IsValid(now time.Time) bool {
	if c.State != CertificationActive {
		return false
	}
	return !truncateDay(c.ExpiresOn).Before(truncateDay(now))
}

// DaysToExpiry returns whole days from now until the expiry date (negative once expired).
func (c Certification) DaysToExpiry(now time.Time) int {
	return int(truncateDay(c.ExpiresOn).Sub(truncateDay(now)).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Alert is generated by the alert generator, never created directly by users.
type Alert struct {
	Base
	Type           AlertType   `json:"type"`
	Severity       Criticality `json:"severity"`
	Entity         EntityType  `json:"entity"`
	EntityID       string      `json:"entity_id"`
	SubjectID      string      `json:"subject_id,omitempty"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	State          AlertState  `json:"state"`
	AcknowledgedBy string      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	ClosedAt       *time.Time  `json:"closed_at,omitempty"`
}

// DedupKey identifies alerts that must not be raised twice while active.
func (a Alert) DedupKey() string {
	return string(a.Type) + "|" + string(a.Entity) + "|" + a.EntityID + "|" + a.SubjectID
}

// Action describes the type of change performed on an entity.
type Action string

const (
	// ActionCreate indicates entity creation.
	ActionCreate Action = "create"
	// ActionUpdate indicates entity update.
	ActionUpdate Action = "update"
	// ActionDelete indicates entity deletion.
	ActionDelete Action = "delete"
)

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity,omitempty"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
