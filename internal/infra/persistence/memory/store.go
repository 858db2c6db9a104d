// Package memory provides an in-memory implementation of the quality
// persistence store used for tests, ephemeral environments and as the
// transactional core of the SQL-backed stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coopquality/pkg/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	parameters     map[string]domain.ParameterDefinition
	criteria       map[string]domain.CriterionDefinition
	standards      map[string]domain.Standard
	inspections    map[string]domain.Inspection
	results        map[string]domain.EvaluationResult
	defects        map[string]domain.Defect
	certifications map[string]domain.Certification
	alerts         map[string]domain.Alert
}

// Snapshot captures a point-in-time clone of the store state. Each field is
// persisted as one bucket by the SQL-backed stores.
type Snapshot struct {
	Parameters     map[string]domain.ParameterDefinition `json:"parameters"`
	Criteria       map[string]domain.CriterionDefinition `json:"criteria"`
	Standards      map[string]domain.Standard            `json:"standards"`
	Inspections    map[string]domain.Inspection          `json:"inspections"`
	Results        map[string]domain.EvaluationResult    `json:"results"`
	Defects        map[string]domain.Defect              `json:"defects"`
	Certifications map[string]domain.Certification       `json:"certifications"`
	Alerts         map[string]domain.Alert               `json:"alerts"`
}

// BucketNames lists snapshot buckets in persistence order.
var BucketNames = []string{"parameters", "criteria", "standards", "inspections", "results", "defects", "certifications", "alerts"}

// Buckets returns pointers to each bucket map keyed by bucket name, suitable
// for json.Marshal and json.Unmarshal.
func (s *Snapshot) Buckets() map[string]any {
	return map[string]any{
		"parameters":     &s.Parameters,
		"criteria":       &s.Criteria,
		"standards":      &s.Standards,
		"inspections":    &s.Inspections,
		"results":        &s.Results,
		"defects":        &s.Defects,
		"certifications": &s.Certifications,
		"alerts":         &s.Alerts,
	}
}

func newMemoryState() memoryState {
	return memoryState{
		parameters:     make(map[string]domain.ParameterDefinition),
		criteria:       make(map[string]domain.CriterionDefinition),
		standards:      make(map[string]domain.Standard),
		inspections:    make(map[string]domain.Inspection),
		results:        make(map[string]domain.EvaluationResult),
		defects:        make(map[string]domain.Defect),
		certifications: make(map[string]domain.Certification),
		alerts:         make(map[string]domain.Alert),
	}
}

func cloneMap[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Parameters:     cloneMap(state.parameters, cloneParameter),
		Criteria:       cloneMap(state.criteria, cloneCriterion),
		Standards:      cloneMap(state.standards, cloneStandard),
		Inspections:    cloneMap(state.inspections, cloneInspection),
		Results:        cloneMap(state.results, cloneResult),
		Defects:        cloneMap(state.defects, cloneDefect),
		Certifications: cloneMap(state.certifications, cloneCertification),
		Alerts:         cloneMap(state.alerts, cloneAlert),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	return memoryState{
		parameters:     cloneMap(s.Parameters, cloneParameter),
		criteria:       cloneMap(s.Criteria, cloneCriterion),
		standards:      cloneMap(s.Standards, cloneStandard),
		inspections:    cloneMap(s.Inspections, cloneInspection),
		results:        cloneMap(s.Results, cloneResult),
		defects:        cloneMap(s.Defects, cloneDefect),
		certifications: cloneMap(s.Certifications, cloneCertification),
		alerts:         cloneMap(s.Alerts, cloneAlert),
	}
}

func (s memoryState) clone() memoryState { return memoryStateFromSnapshot(snapshotFromMemoryState(s)) }

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneParameter(p domain.ParameterDefinition) domain.ParameterDefinition {
	p.Min, p.Optimal, p.Max = cloneDecimal(p.Min), cloneDecimal(p.Optimal), cloneDecimal(p.Max)
	return p
}

func cloneCriterion(c domain.CriterionDefinition) domain.CriterionDefinition {
	c.Min, c.Optimal, c.Max = cloneDecimal(c.Min), cloneDecimal(c.Optimal), cloneDecimal(c.Max)
	return c
}

func cloneStandard(s domain.Standard) domain.Standard {
	s.ApprovalThreshold = cloneDecimal(s.ApprovalThreshold)
	if s.Items != nil {
		items := make([]domain.StandardItem, len(s.Items))
		for i, item := range s.Items {
			item.Weight = cloneDecimal(item.Weight)
			if item.Mandatory != nil {
				m := *item.Mandatory
				item.Mandatory = &m
			}
			items[i] = item
		}
		s.Items = items
	}
	return s
}

func cloneInspection(i domain.Inspection) domain.Inspection {
	i.StartedAt, i.EndedAt = cloneTime(i.StartedAt), cloneTime(i.EndedAt)
	return i
}

func cloneResult(r domain.EvaluationResult) domain.EvaluationResult {
	r.MeasuredValue = cloneDecimal(r.MeasuredValue)
	r.NormalizedScore = cloneDecimal(r.NormalizedScore)
	if r.AssignedScore != nil {
		v := *r.AssignedScore
		r.AssignedScore = &v
	}
	return r
}

func cloneDefect(d domain.Defect) domain.Defect {
	d.CorrectedAt, d.ClosedAt = cloneTime(d.CorrectedAt), cloneTime(d.ClosedAt)
	return d
}

func cloneCertification(c domain.Certification) domain.Certification {
	c.RenewedOn = cloneTime(c.RenewedOn)
	return c
}

func cloneAlert(a domain.Alert) domain.Alert {
	a.AcknowledgedAt, a.ClosedAt = cloneTime(a.AcknowledgedAt), cloneTime(a.ClosedAt)
	return a
}

// sorted returns cloned values ordered by creation time, then id.
func sorted[T any](in map[string]T, base func(T) domain.Base, clone func(T) T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep == nil || keep(v) {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		bi, bj := base(out[i]), base(out[j])
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return bi.ID < bj.ID
	})
	return out
}

func find[T any](in map[string]T, id string, clone func(T) T) (T, bool) {
	v, ok := in[id]
	if !ok {
		var zero T
		return zero, false
	}
	return clone(v), true
}

func parameterBase(p domain.ParameterDefinition) domain.Base { return p.Base }
func criterionBase(c domain.CriterionDefinition) domain.Base { return c.Base }
func standardBase(s domain.Standard) domain.Base             { return s.Base }
func inspectionBase(i domain.Inspection) domain.Base         { return i.Base }
func resultBase(r domain.EvaluationResult) domain.Base       { return r.Base }
func defectBase(d domain.Defect) domain.Base                 { return d.Base }
func certificationBase(c domain.Certification) domain.Base   { return c.Base }
func alertBase(a domain.Alert) domain.Base                   { return a.Base }

// Store provides an in-memory transactional store for the quality domain.
// Writers are serialised by a single mutex, so at most one transaction
// observes and changes an inspection's state at a time.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string { return uuid.NewString() }

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured commit-time rules engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	transactionView
	store   *Store
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store
// state. Rules are evaluated before commit; blocking violations discard the copy.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state.clone()
	tx := &transaction{
		transactionView: transactionView{state: &state},
		store:           s,
		now:             s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&state), tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(tx.state)
}

// Read helpers shared by transactions and views ------------------------------

func (v transactionView) FindParameter(id string) (domain.ParameterDefinition, bool) {
	return find(v.state.parameters, id, cloneParameter)
}

func (v transactionView) FindCriterion(id string) (domain.CriterionDefinition, bool) {
	return find(v.state.criteria, id, cloneCriterion)
}

func (v transactionView) FindStandard(id string) (domain.Standard, bool) {
	return find(v.state.standards, id, cloneStandard)
}

func (v transactionView) FindInspection(id string) (domain.Inspection, bool) {
	return find(v.state.inspections, id, cloneInspection)
}

func (v transactionView) FindDefect(id string) (domain.Defect, bool) {
	return find(v.state.defects, id, cloneDefect)
}

func (v transactionView) FindCertification(id string) (domain.Certification, bool) {
	return find(v.state.certifications, id, cloneCertification)
}

func (v transactionView) FindAlert(id string) (domain.Alert, bool) {
	return find(v.state.alerts, id, cloneAlert)
}

func (v transactionView) FindResult(inspectionID, definitionID string) (domain.EvaluationResult, bool) {
	for _, r := range v.state.results {
		if r.InspectionID == inspectionID && r.DefinitionID == definitionID {
			return cloneResult(r), true
		}
	}
	return domain.EvaluationResult{}, false
}

func (v transactionView) ListParameters() []domain.ParameterDefinition {
	return sorted(v.state.parameters, parameterBase, cloneParameter, nil)
}

func (v transactionView) ListCriteria() []domain.CriterionDefinition {
	return sorted(v.state.criteria, criterionBase, cloneCriterion, nil)
}

func (v transactionView) ListStandards() []domain.Standard {
	return sorted(v.state.standards, standardBase, cloneStandard, nil)
}

func (v transactionView) ListInspections() []domain.Inspection {
	return sorted(v.state.inspections, inspectionBase, cloneInspection, nil)
}

func (v transactionView) ListResults(inspectionID string) []domain.EvaluationResult {
	return sorted(v.state.results, resultBase, cloneResult, func(r domain.EvaluationResult) bool {
		return inspectionID == "" || r.InspectionID == inspectionID
	})
}

func (v transactionView) ListDefects(inspectionID string) []domain.Defect {
	return sorted(v.state.defects, defectBase, cloneDefect, func(d domain.Defect) bool {
		return inspectionID == "" || d.InspectionID == inspectionID
	})
}

func (v transactionView) ListCertifications() []domain.Certification {
	return sorted(v.state.certifications, certificationBase, cloneCertification, nil)
}

func (v transactionView) ListAlerts() []domain.Alert {
	return sorted(v.state.alerts, alertBase, cloneAlert, nil)
}

// Mutations -------------------------------------------------------------------

func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
}

func create[T any](tx *transaction, bucket map[string]T, entity domain.EntityType, v T, base func(*T) *domain.Base, clone func(T) T) (T, error) {
	b := base(&v)
	tx.stamp(b)
	if _, exists := bucket[b.ID]; exists {
		var zero T
		return zero, fmt.Errorf("%s %q already exists", entity, b.ID)
	}
	bucket[b.ID] = clone(v)
	tx.recordChange(Change{Entity: entity, Action: domain.ActionCreate, After: clone(v)})
	return clone(v), nil
}

func update[T any](tx *transaction, bucket map[string]T, entity domain.EntityType, id string, mutator func(*T) error, base func(*T) *domain.Base, clone func(T) T) (T, error) {
	var zero T
	current, ok := bucket[id]
	if !ok {
		return zero, domain.NotFoundError{Entity: entity, ID: id}
	}
	before := clone(current)
	current = clone(current)
	if err := mutator(&current); err != nil {
		return zero, err
	}
	b := base(&current)
	b.ID = id
	b.CreatedAt = base(&before).CreatedAt
	b.UpdatedAt = tx.now
	bucket[id] = clone(current)
	tx.recordChange(Change{Entity: entity, Action: domain.ActionUpdate, Before: before, After: clone(current)})
	return clone(current), nil
}

// CreateParameter stores a new parameter definition.
func (tx *transaction) CreateParameter(p domain.ParameterDefinition) (domain.ParameterDefinition, error) {
	return create(tx, tx.state.parameters, domain.EntityParameter, p, func(v *domain.ParameterDefinition) *domain.Base { return &v.Base }, cloneParameter)
}

// UpdateParameter mutates a parameter definition.
func (tx *transaction) UpdateParameter(id string, mutator func(*domain.ParameterDefinition) error) (domain.ParameterDefinition, error) {
	return update(tx, tx.state.parameters, domain.EntityParameter, id, mutator, func(v *domain.ParameterDefinition) *domain.Base { return &v.Base }, cloneParameter)
}

// CreateCriterion stores a new criterion definition.
func (tx *transaction) CreateCriterion(c domain.CriterionDefinition) (domain.CriterionDefinition, error) {
	return create(tx, tx.state.criteria, domain.EntityCriterion, c, func(v *domain.CriterionDefinition) *domain.Base { return &v.Base }, cloneCriterion)
}

// UpdateCriterion mutates a criterion definition.
func (tx *transaction) UpdateCriterion(id string, mutator func(*domain.CriterionDefinition) error) (domain.CriterionDefinition, error) {
	return update(tx, tx.state.criteria, domain.EntityCriterion, id, mutator, func(v *domain.CriterionDefinition) *domain.Base { return &v.Base }, cloneCriterion)
}

// CreateStandard stores a new standard.
func (tx *transaction) CreateStandard(s domain.Standard) (domain.Standard, error) {
	return create(tx, tx.state.standards, domain.EntityStandard, s, func(v *domain.Standard) *domain.Base { return &v.Base }, cloneStandard)
}

// UpdateStandard mutates a standard.
func (tx *transaction) UpdateStandard(id string, mutator func(*domain.Standard) error) (domain.Standard, error) {
	return update(tx, tx.state.standards, domain.EntityStandard, id, mutator, func(v *domain.Standard) *domain.Base { return &v.Base }, cloneStandard)
}

// CreateInspection stores a new inspection.
func (tx *transaction) CreateInspection(i domain.Inspection) (domain.Inspection, error) {
	return create(tx, tx.state.inspections, domain.EntityInspection, i, func(v *domain.Inspection) *domain.Base { return &v.Base }, cloneInspection)
}

// UpdateInspection mutates an inspection and bumps its version.
func (tx *transaction) UpdateInspection(id string, mutator func(*domain.Inspection) error) (domain.Inspection, error) {
	return update(tx, tx.state.inspections, domain.EntityInspection, id, func(i *domain.Inspection) error {
		if err := mutator(i); err != nil {
			return err
		}
		i.Version++
		return nil
	}, func(v *domain.Inspection) *domain.Base { return &v.Base }, cloneInspection)
}

// CreateResult stores an evaluation result. Results are write-once; a second
// result for the same inspection and definition is rejected.
func (tx *transaction) CreateResult(r domain.EvaluationResult) (domain.EvaluationResult, error) {
	if _, dup := tx.FindResult(r.InspectionID, r.DefinitionID); dup {
		return domain.EvaluationResult{}, domain.ValidationError{
			Entity:  domain.EntityEvaluationResult,
			Field:   "definition_id",
			Message: fmt.Sprintf("definition %s already evaluated for inspection %s", r.DefinitionID, r.InspectionID),
		}
	}
	return create(tx, tx.state.results, domain.EntityEvaluationResult, r, func(v *domain.EvaluationResult) *domain.Base { return &v.Base }, cloneResult)
}

// CreateDefect stores a defect.
func (tx *transaction) CreateDefect(d domain.Defect) (domain.Defect, error) {
	return create(tx, tx.state.defects, domain.EntityDefect, d, func(v *domain.Defect) *domain.Base { return &v.Base }, cloneDefect)
}

// UpdateDefect mutates a defect.
func (tx *transaction) UpdateDefect(id string, mutator func(*domain.Defect) error) (domain.Defect, error) {
	return update(tx, tx.state.defects, domain.EntityDefect, id, mutator, func(v *domain.Defect) *domain.Base { return &v.Base }, cloneDefect)
}

// CreateCertification stores a certification.
func (tx *transaction) CreateCertification(c domain.Certification) (domain.Certification, error) {
	return create(tx, tx.state.certifications, domain.EntityCertification, c, func(v *domain.Certification) *domain.Base { return &v.Base }, cloneCertification)
}

// UpdateCertification mutates a certification.
func (tx *transaction) UpdateCertification(id string, mutator func(*domain.Certification) error) (domain.Certification, error) {
	return update(tx, tx.state.certifications, domain.EntityCertification, id, mutator, func(v *domain.Certification) *domain.Base { return &v.Base }, cloneCertification)
}

// CreateAlert stores an alert.
func (tx *transaction) CreateAlert(a domain.Alert) (domain.Alert, error) {
	return create(tx, tx.state.alerts, domain.EntityAlert, a, func(v *domain.Alert) *domain.Base { return &v.Base }, cloneAlert)
}

// UpdateAlert mutates an alert.
func (tx *transaction) UpdateAlert(id string, mutator func(*domain.Alert) error) (domain.Alert, error) {
	return update(tx, tx.state.alerts, domain.EntityAlert, id, mutator, func(v *domain.Alert) *domain.Base { return &v.Base }, cloneAlert)
}

// Committed-state read helpers ---------------------------------------------------

// GetInspection retrieves an inspection by ID from committed state.
func (s *Store) GetInspection(id string) (domain.Inspection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.inspections, id, cloneInspection)
}

// ListInspections returns all inspections from committed state.
func (s *Store) ListInspections() []domain.Inspection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.state.inspections, inspectionBase, cloneInspection, nil)
}

// ListAlerts returns all alerts from committed state.
func (s *Store) ListAlerts() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.state.alerts, alertBase, cloneAlert, nil)
}

// ListCertifications returns all certifications from committed state.
func (s *Store) ListCertifications() []domain.Certification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.state.certifications, certificationBase, cloneCertification, nil)
}
