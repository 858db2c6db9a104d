package core

import (
	"context"
	"fmt"

	"coopquality/pkg/domain"
)

// DefinitionReferenceRule warns when a parameter or criterion that already
// produced results on a finished inspection is edited. The edit is allowed
// and versioned; the warning keeps it visible in logs and API responses.
func DefinitionReferenceRule() domain.Rule {
	return definitionReferenceRule{}
}

type definitionReferenceRule struct{}

func (definitionReferenceRule) Name() string { return "definition_reference" }

func (r definitionReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Action != domain.ActionUpdate {
			continue
		}
		var id string
		var version int
		switch after := change.After.(type) {
		case domain.ParameterDefinition:
			id, version = after.ID, after.Version
		case domain.CriterionDefinition:
			id, version = after.ID, after.Version
		default:
			continue
		}
		if n := finishedReferences(view, id); n > 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%s %s edited to version %d while referenced by %d finished inspection(s)", change.Entity, id, version, n),
				Entity:   change.Entity,
				EntityID: id,
			})
		}
	}
	return res, nil
}

func finishedReferences(view domain.RuleView, definitionID string) int {
	n := 0
	for _, insp := range view.ListInspections() {
		if !insp.State.IsTerminal() || insp.State == domain.InspectionCancelled {
			continue
		}
		for _, result := range view.ListResults(insp.ID) {
			if result.DefinitionID == definitionID {
				n++
				break
			}
		}
	}
	return n
}
