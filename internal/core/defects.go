package core

import (
	"context"
	"strings"

	"coopquality/pkg/domain"
)

// ReportDefect attaches a finding to an existing inspection.
func (s *Service) ReportDefect(ctx context.Context, defect domain.Defect) (domain.Defect, domain.Result, error) {
	var created domain.Defect
	res, err := s.execute(ctx, opReportDefect, func(tx domain.Transaction) (audited, error) {
		if _, err := requireInspection(tx, defect.InspectionID); err != nil {
			return audited{}, err
		}
		if strings.TrimSpace(defect.Description) == "" {
			return audited{}, domain.ValidationError{Entity: domain.EntityDefect, Field: "description", Message: "is required"}
		}
		switch defect.Severity {
		case domain.CriticalityLow, domain.CriticalityMedium, domain.CriticalityHigh, domain.CriticalityCritical:
		default:
			return audited{}, domain.ValidationError{Entity: domain.EntityDefect, Field: "severity", Message: "unknown severity " + string(defect.Severity)}
		}
		defect.State = domain.DefectReported
		defect.CorrectedAt, defect.ClosedAt = nil, nil
		if defect.ReportedBy == "" {
			defect.ReportedBy = ActorFrom(ctx)
		}
		var err error
		created, err = tx.CreateDefect(defect)
		return audited{ID: created.ID, Details: map[string]string{"inspection": defect.InspectionID, "severity": string(defect.Severity)}}, err
	})
	return created, res, err
}

// AdvanceDefect moves a defect along reported, in_correction, corrected and
// closed. Entering correction needs a corrective action.
func (s *Service) AdvanceDefect(ctx context.Context, id string, to domain.DefectState, correctiveAction string) (domain.Defect, domain.Result, error) {
	var updated domain.Defect
	res, err := s.execute(ctx, opAdvanceDefect, func(tx domain.Transaction) (audited, error) {
		current, ok := tx.FindDefect(id)
		if !ok {
			return audited{ID: id}, domain.NotFoundError{Entity: domain.EntityDefect, ID: id}
		}
		if !defectMoves(current.State, to) {
			return audited{ID: id}, domain.InvalidStateError{Entity: domain.EntityDefect, ID: id, State: string(current.State), Operation: "move to " + string(to)}
		}
		action := strings.TrimSpace(correctiveAction)
		if to == domain.DefectInCorrection && action == "" && current.CorrectiveAction == "" {
			return audited{ID: id}, domain.ValidationError{Entity: domain.EntityDefect, Field: "corrective_action", Message: "is required to start a correction"}
		}
		now := s.now()
		var err error
		updated, err = tx.UpdateDefect(id, func(d *domain.Defect) error {
			d.State = to
			if action != "" {
				d.CorrectiveAction = action
			}
			switch to {
			case domain.DefectCorrected:
				d.CorrectedAt = &now
			case domain.DefectClosed:
				d.ClosedAt = &now
			}
			return nil
		})
		return audited{ID: id, Details: map[string]string{"from": string(current.State), "to": string(to)}}, err
	})
	return updated, res, err
}

// ListDefects returns the defects of an inspection.
func (s *Service) ListDefects(ctx context.Context, inspectionID string) ([]domain.Defect, error) {
	var out []domain.Defect
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		if _, err := requireInspection(v, inspectionID); err != nil {
			return err
		}
		out = v.ListDefects(inspectionID)
		return nil
	})
	return out, err
}

func defectMoves(from, to domain.DefectState) bool {
	if from == to {
		return false
	}
	return lifecycleMachines[domain.EntityDefect].allows(string(from), string(to))
}
