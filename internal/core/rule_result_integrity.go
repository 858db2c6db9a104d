package core

import (
	"context"
	"fmt"

	"coopquality/pkg/domain"
)

// ResultIntegrityRule blocks evaluation results that reference a missing
// inspection, an inspection that was not open for evaluation when the
// transaction began, or a definition outside the inspection's standard.
func ResultIntegrityRule() domain.Rule {
	return resultIntegrityRule{}
}

type resultIntegrityRule struct{}

func (resultIntegrityRule) Name() string { return "result_integrity" }

func (r resultIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	// State of each inspection before this transaction touched it.
	initial := make(map[string]domain.InspectionState)
	for _, change := range changes {
		if change.Entity != domain.EntityInspection {
			continue
		}
		if before, ok := change.Before.(domain.Inspection); ok {
			if _, seen := initial[before.ID]; !seen {
				initial[before.ID] = before.State
			}
		}
	}

	var res domain.Result
	block := func(id, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   domain.EntityEvaluationResult,
			EntityID: id,
		})
	}
	for _, change := range changes {
		if change.Entity != domain.EntityEvaluationResult || change.Action != domain.ActionCreate {
			continue
		}
		result, ok := change.After.(domain.EvaluationResult)
		if !ok {
			continue
		}
		insp, ok := view.FindInspection(result.InspectionID)
		if !ok {
			block(result.ID, "result %s references missing inspection %s", result.ID, result.InspectionID)
			continue
		}
		state, touched := initial[insp.ID]
		if !touched {
			state = insp.State
		}
		if state != domain.InspectionInProgress && state != domain.InspectionCompleted {
			block(result.ID, "inspection %s is %s and does not accept results", insp.ID, state)
			continue
		}
		std, ok := view.FindStandard(insp.StandardID)
		if !ok {
			block(result.ID, "inspection %s references missing standard %s", insp.ID, insp.StandardID)
			continue
		}
		if _, ok := std.Item(result.DefinitionID); !ok {
			block(result.ID, "definition %s is not part of standard %s", result.DefinitionID, std.Code)
		}
	}
	return res, nil
}
