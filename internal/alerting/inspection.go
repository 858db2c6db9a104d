// Package alerting maps finished inspections and certification expiry onto
// alerts. Every function here is pure; persistence and de-duplication against
// stored alerts happen inside the caller's transaction.
package alerting

import (
	"fmt"

	"coopquality/pkg/domain"
)

// ForInspection returns the alerts raised by a finished inspection: one for a
// rejected or conditional verdict and one per mandatory failing result.
// codes maps definition ids to display codes and may be nil.
func ForInspection(insp domain.Inspection, failures []domain.EvaluationResult, codes map[string]string) []domain.Alert {
	var out []domain.Alert
	switch insp.State {
	case domain.InspectionRejected:
		out = append(out, domain.Alert{
			Type:     domain.AlertInspectionRejected,
			Severity: domain.CriticalityCritical,
			Entity:   domain.EntityInspection,
			EntityID: insp.ID,
			Title:    fmt.Sprintf("Inspection %s rejected", label(insp)),
			Message:  fmt.Sprintf("Lot %s scored %s%% with %d critical parameter(s)", insp.LotID, insp.Score.StringFixed(2), insp.CriticalCount),
		})
	case domain.InspectionConditional:
		out = append(out, domain.Alert{
			Type:     domain.AlertInspectionConditional,
			Severity: domain.CriticalityHigh,
			Entity:   domain.EntityInspection,
			EntityID: insp.ID,
			Title:    fmt.Sprintf("Inspection %s conditionally approved", label(insp)),
			Message:  fmt.Sprintf("Lot %s scored %s%%; corrective action required", insp.LotID, insp.Score.StringFixed(2)),
		})
	}
	for _, r := range failures {
		if !r.Mandatory || !r.Verdict.Failing() {
			continue
		}
		code := codes[r.DefinitionID]
		if code == "" {
			code = r.DefinitionID
		}
		out = append(out, domain.Alert{
			Type:      domain.AlertCriticalParameter,
			Severity:  domain.CriticalityHigh,
			Entity:    domain.EntityInspection,
			EntityID:  insp.ID,
			SubjectID: r.DefinitionID,
			Title:     fmt.Sprintf("Critical parameter %s failed", code),
			Message:   fmt.Sprintf("Inspection %s: %s is %s (deviation %s)", label(insp), code, r.Verdict, r.Deviation.String()),
		})
	}
	return out
}

func label(insp domain.Inspection) string {
	if insp.Code != "" {
		return insp.Code
	}
	return insp.ID
}
