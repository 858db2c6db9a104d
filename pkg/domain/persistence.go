package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Evaluation results are write-once and
// inspections are never deleted, so neither has an update or delete path
// beyond what the lifecycle needs.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	CreateParameter(ParameterDefinition) (ParameterDefinition, error)
	UpdateParameter(id string, mutator func(*ParameterDefinition) error) (ParameterDefinition, error)
	CreateCriterion(CriterionDefinition) (CriterionDefinition, error)
	UpdateCriterion(id string, mutator func(*CriterionDefinition) error) (CriterionDefinition, error)
	CreateStandard(Standard) (Standard, error)
	UpdateStandard(id string, mutator func(*Standard) error) (Standard, error)
	CreateInspection(Inspection) (Inspection, error)
	UpdateInspection(id string, mutator func(*Inspection) error) (Inspection, error)
	CreateResult(EvaluationResult) (EvaluationResult, error)
	CreateDefect(Defect) (Defect, error)
	UpdateDefect(id string, mutator func(*Defect) error) (Defect, error)
	CreateCertification(Certification) (Certification, error)
	UpdateCertification(id string, mutator func(*Certification) error) (Certification, error)
	CreateAlert(Alert) (Alert, error)
	UpdateAlert(id string, mutator func(*Alert) error) (Alert, error)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	ListParameters() []ParameterDefinition
	ListCriteria() []CriterionDefinition
	ListStandards() []Standard
	ListDefects(inspectionID string) []Defect
	ListCertifications() []Certification
	FindResult(inspectionID, definitionID string) (EvaluationResult, bool)
	FindDefect(id string) (Defect, bool)
	FindCertification(id string) (Certification, bool)
	FindAlert(id string) (Alert, bool)
}

// PersistentStore is a minimal abstraction over durable backends. RunInTransaction
// serialises writers, which is what guarantees at most one terminal transition
// per inspection.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetInspection(id string) (Inspection, bool)
	ListInspections() []Inspection
	ListAlerts() []Alert
	ListCertifications() []Certification
}
