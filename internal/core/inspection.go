package core

import (
	"context"
	"fmt"
	"strconv"

	"coopquality/internal/alerting"
	"coopquality/internal/quality"
	"coopquality/pkg/domain"
)

// EvaluationInput pairs a standard item with what the inspector observed.
type EvaluationInput struct {
	DefinitionID string
	Observation  quality.Observation
}

// Completion carries the final batch of evaluations and the inspector's
// closing remarks. Evaluations already recorded are kept; the batch may be
// empty when everything was recorded beforehand.
type Completion struct {
	Evaluations  []EvaluationInput
	Observations string
}

// InspectionFilter narrows ListInspections. Zero fields match everything.
type InspectionFilter struct {
	State      domain.InspectionState
	LotID      string
	StandardID string
}

func (f InspectionFilter) match(i domain.Inspection) bool {
	return (f.State == "" || i.State == f.State) &&
		(f.LotID == "" || i.LotID == f.LotID) &&
		(f.StandardID == "" || i.StandardID == f.StandardID)
}

// ScheduleInspection registers a lot inspection against an active standard.
func (s *Service) ScheduleInspection(ctx context.Context, insp domain.Inspection) (domain.Inspection, domain.Result, error) {
	var created domain.Inspection
	res, err := s.execute(ctx, opScheduleInspection, func(tx domain.Transaction) (audited, error) {
		if insp.ProductID == "" && insp.LotID == "" {
			return audited{}, domain.ValidationError{Entity: domain.EntityInspection, Field: "lot_id", Message: "product or lot is required"}
		}
		if insp.StandardID == "" {
			return audited{}, domain.ValidationError{Entity: domain.EntityInspection, Field: "standard_id", Message: "standard is required"}
		}
		std, ok := tx.FindStandard(insp.StandardID)
		if !ok {
			return audited{}, domain.ValidationError{Entity: domain.EntityInspection, Field: "standard_id", Message: "unknown standard " + insp.StandardID}
		}
		if std.Inactive {
			return audited{}, domain.ValidationError{Entity: domain.EntityInspection, Field: "standard_id", Message: "standard " + std.Code + " is inactive"}
		}
		if insp.Quantity.IsNegative() {
			return audited{}, domain.ValidationError{Entity: domain.EntityInspection, Field: "quantity", Message: "must not be negative"}
		}
		insp.State = domain.InspectionScheduled
		insp.StartedAt, insp.EndedAt = nil, nil
		insp.Verdict = ""
		if insp.ScheduledFor.IsZero() {
			insp.ScheduledFor = s.now()
		}
		if insp.Code == "" {
			insp.Code = fmt.Sprintf("INS-%s-%d", s.now().Format("20060102"), len(tx.ListInspections())+1)
		}
		var err error
		created, err = tx.CreateInspection(insp)
		return audited{ID: created.ID}, err
	})
	return created, res, err
}

// StartInspection moves a scheduled inspection to in_progress.
func (s *Service) StartInspection(ctx context.Context, id, inspectorID string) (domain.Inspection, domain.Result, error) {
	var updated domain.Inspection
	res, err := s.execute(ctx, opStartInspection, func(tx domain.Transaction) (audited, error) {
		current, err := requireInspection(tx, id)
		if err != nil {
			return audited{ID: id}, err
		}
		if current.State != domain.InspectionScheduled {
			return audited{ID: id}, invalidInspectionState(current, "start")
		}
		if inspectorID == "" && current.InspectorID == "" {
			return audited{ID: id}, domain.ValidationError{Entity: domain.EntityInspection, Field: "inspector_id", Message: "inspector is required"}
		}
		started := s.now()
		updated, err = tx.UpdateInspection(id, func(i *domain.Inspection) error {
			i.State = domain.InspectionInProgress
			i.StartedAt = &started
			if inspectorID != "" {
				i.InspectorID = inspectorID
			}
			return nil
		})
		return audited{ID: id, Details: map[string]string{"inspector": updated.InspectorID}}, err
	})
	return updated, res, err
}

// RecordEvaluation scores one observation and stores the write-once result.
// Under a weighted standard the inspection advances to completed once every
// mandatory item has a result.
func (s *Service) RecordEvaluation(ctx context.Context, inspectionID string, in EvaluationInput) (domain.EvaluationResult, domain.Result, error) {
	var recorded domain.EvaluationResult
	if err := s.checkEvidence(ctx, in.Observation.EvidenceKey); err != nil {
		return recorded, domain.Result{}, err
	}
	res, err := s.execute(ctx, opRecordEvaluation, func(tx domain.Transaction) (audited, error) {
		current, err := requireInspection(tx, inspectionID)
		if err != nil {
			return audited{}, err
		}
		if current.State != domain.InspectionInProgress {
			return audited{}, invalidInspectionState(current, "record evaluation for")
		}
		std, err := requireStandard(tx, current.StandardID)
		if err != nil {
			return audited{}, err
		}
		recorded, err = s.recordResult(tx, current, std, in)
		if err != nil {
			return audited{}, err
		}
		if std.Mode == domain.ScoringWeighted {
			done, err := s.mandatoryItemsEvaluated(tx, current.ID, std)
			if err != nil {
				return audited{}, err
			}
			if done {
				if _, err := tx.UpdateInspection(current.ID, func(i *domain.Inspection) error {
					i.State = domain.InspectionCompleted
					return nil
				}); err != nil {
					return audited{}, err
				}
			}
		}
		return audited{ID: recorded.ID, Details: map[string]string{
			"inspection": inspectionID,
			"definition": in.DefinitionID,
			"verdict":    string(recorded.Verdict),
		}}, nil
	})
	return recorded, res, err
}

func (s *Service) recordResult(tx domain.Transaction, insp domain.Inspection, std domain.Standard, in EvaluationInput) (domain.EvaluationResult, error) {
	result, err := s.engine.Assess(std, in.DefinitionID, in.Observation, tx)
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	result.InspectionID = insp.ID
	if result.RecordedBy == "" {
		result.RecordedBy = insp.InspectorID
	}
	return tx.CreateResult(result)
}

func (s *Service) mandatoryItemsEvaluated(tx domain.Transaction, inspectionID string, std domain.Standard) (bool, error) {
	items, err := s.engine.Items(std, tx)
	if err != nil {
		return false, err
	}
	mandatory := 0
	for _, item := range items {
		if !item.Mandatory {
			continue
		}
		mandatory++
		if _, ok := tx.FindResult(inspectionID, item.DefinitionID); !ok {
			return false, nil
		}
	}
	return mandatory > 0, nil
}

// CompleteInspection records any final evaluations, aggregates every result
// under the standard's scoring strategy and moves the inspection to the
// terminal state the verdict maps to. Alerts for the outcome are created in
// the same transaction and dispatched after commit. On any error nothing is
// written and the inspection stays open for a retry.
func (s *Service) CompleteInspection(ctx context.Context, id string, completion Completion) (domain.Inspection, domain.Result, error) {
	var (
		updated domain.Inspection
		raised  []domain.Alert
	)
	for _, in := range completion.Evaluations {
		if err := s.checkEvidence(ctx, in.Observation.EvidenceKey); err != nil {
			return updated, domain.Result{}, err
		}
	}
	res, err := s.execute(ctx, opCompleteInspection, func(tx domain.Transaction) (audited, error) {
		raised = nil
		current, err := requireInspection(tx, id)
		if err != nil {
			return audited{ID: id}, err
		}
		if current.State != domain.InspectionInProgress && current.State != domain.InspectionCompleted {
			return audited{ID: id}, invalidInspectionState(current, "complete")
		}
		std, err := requireStandard(tx, current.StandardID)
		if err != nil {
			return audited{ID: id}, err
		}
		for _, in := range completion.Evaluations {
			if _, err := s.recordResult(tx, current, std, in); err != nil {
				return audited{ID: id}, err
			}
		}
		results := tx.ListResults(id)
		if len(results) == 0 {
			return audited{ID: id}, domain.ValidationError{Entity: domain.EntityInspection, Field: "results", Message: "at least one evaluation is required to complete"}
		}
		agg, err := s.engine.Aggregate(std, tx, results)
		if err != nil {
			return audited{ID: id}, err
		}
		ended := s.now()
		updated, err = tx.UpdateInspection(id, func(i *domain.Inspection) error {
			i.State = agg.Verdict.InspectionState()
			i.Verdict = agg.Verdict
			i.Score = agg.Percentage
			i.EvaluatedCount = agg.Evaluated
			i.ApprovedCount = agg.Approved
			i.CriticalCount = agg.Critical
			i.RequiresCorrectiveAction = agg.Verdict != domain.FinalApproved
			i.EndedAt = &ended
			if completion.Observations != "" {
				i.Observations = completion.Observations
			}
			return nil
		})
		if err != nil {
			return audited{ID: id}, err
		}
		raised, err = s.raiseAlerts(tx, alerting.ForInspection(updated, agg.Failures, definitionCodes(tx, std)))
		if err != nil {
			return audited{ID: id}, err
		}
		return audited{ID: id, Details: map[string]string{
			"verdict":   string(agg.Verdict),
			"score":     agg.Percentage.StringFixed(2),
			"evaluated": strconv.Itoa(agg.Evaluated),
			"approved":  strconv.Itoa(agg.Approved),
			"critical":  strconv.Itoa(agg.Critical),
			"mode":      string(std.Mode),
		}}, nil
	})
	if err != nil {
		return updated, res, err
	}
	s.opts.logger.Info("inspection completed", "id", updated.ID, "verdict", updated.Verdict, "score", updated.Score.StringFixed(2), "alerts", len(raised))
	s.dispatch(ctx, raised)
	return updated, res, nil
}

// CancelInspection moves a scheduled or in-progress inspection to cancelled.
// Cancelling twice fails with InvalidStateError: cancelled is terminal.
func (s *Service) CancelInspection(ctx context.Context, id, reason string) (domain.Inspection, domain.Result, error) {
	var updated domain.Inspection
	res, err := s.execute(ctx, opCancelInspection, func(tx domain.Transaction) (audited, error) {
		current, err := requireInspection(tx, id)
		if err != nil {
			return audited{ID: id}, err
		}
		if current.State != domain.InspectionScheduled && current.State != domain.InspectionInProgress {
			return audited{ID: id}, invalidInspectionState(current, "cancel")
		}
		ended := s.now()
		updated, err = tx.UpdateInspection(id, func(i *domain.Inspection) error {
			i.State = domain.InspectionCancelled
			i.CancelReason = reason
			i.EndedAt = &ended
			return nil
		})
		return audited{ID: id, Details: map[string]string{"reason": reason}}, err
	})
	return updated, res, err
}

// GetInspection returns the committed inspection.
func (s *Service) GetInspection(ctx context.Context, id string) (domain.Inspection, error) {
	var insp domain.Inspection
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		var err error
		insp, err = requireInspection(v, id)
		return err
	})
	return insp, err
}

// ListInspections returns committed inspections matching filter.
func (s *Service) ListInspections(ctx context.Context, filter InspectionFilter) ([]domain.Inspection, error) {
	var out []domain.Inspection
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		for _, insp := range v.ListInspections() {
			if filter.match(insp) {
				out = append(out, insp)
			}
		}
		return nil
	})
	return out, err
}

// ListInspectionResults returns the recorded results of an inspection.
func (s *Service) ListInspectionResults(ctx context.Context, id string) ([]domain.EvaluationResult, error) {
	var out []domain.EvaluationResult
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		if _, err := requireInspection(v, id); err != nil {
			return err
		}
		out = v.ListResults(id)
		return nil
	})
	return out, err
}

func requireInspection(v domain.RuleView, id string) (domain.Inspection, error) {
	insp, ok := v.FindInspection(id)
	if !ok {
		return domain.Inspection{}, domain.NotFoundError{Entity: domain.EntityInspection, ID: id}
	}
	return insp, nil
}

func requireStandard(v domain.RuleView, id string) (domain.Standard, error) {
	std, ok := v.FindStandard(id)
	if !ok {
		return domain.Standard{}, domain.NotFoundError{Entity: domain.EntityStandard, ID: id}
	}
	return std, nil
}

func invalidInspectionState(insp domain.Inspection, op string) error {
	return domain.InvalidStateError{Entity: domain.EntityInspection, ID: insp.ID, State: string(insp.State), Operation: op}
}

func definitionCodes(v domain.RuleView, std domain.Standard) map[string]string {
	codes := make(map[string]string, len(std.Items))
	for _, item := range std.Items {
		if std.Mode == domain.ScoringWeighted {
			if c, ok := v.FindCriterion(item.DefinitionID); ok {
				codes[item.DefinitionID] = c.Code
			}
			continue
		}
		if p, ok := v.FindParameter(item.DefinitionID); ok {
			codes[item.DefinitionID] = p.Code
		}
	}
	return codes
}
