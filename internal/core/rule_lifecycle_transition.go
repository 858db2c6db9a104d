package core

import (
	"context"
	"fmt"

	"coopquality/pkg/domain"
)

// LifecycleTransitionRule blocks writes that move a stateful record along an
// edge its state machine does not have, including any move out of a terminal
// state.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	label     string
	initial   string
	edges     map[string][]string
	extractor func(v any) (id string, state string, ok bool)
}

func (m lifecycleMachine) known(state string) bool {
	_, ok := m.edges[state]
	return ok
}

func (m lifecycleMachine) allows(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range m.edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityInspection: {
		label:   "inspection",
		initial: string(domain.InspectionScheduled),
		edges: map[string][]string{
			string(domain.InspectionScheduled):   {string(domain.InspectionInProgress), string(domain.InspectionCancelled)},
			string(domain.InspectionInProgress):  {string(domain.InspectionCompleted), string(domain.InspectionApproved), string(domain.InspectionRejected), string(domain.InspectionConditional), string(domain.InspectionCancelled)},
			string(domain.InspectionCompleted):   {string(domain.InspectionApproved), string(domain.InspectionRejected), string(domain.InspectionConditional)},
			string(domain.InspectionApproved):    nil,
			string(domain.InspectionRejected):    nil,
			string(domain.InspectionConditional): nil,
			string(domain.InspectionCancelled):   nil,
		},
		extractor: func(v any) (string, string, bool) {
			i, ok := v.(domain.Inspection)
			return i.ID, string(i.State), ok
		},
	},
	domain.EntityDefect: {
		label:   "defect",
		initial: string(domain.DefectReported),
		edges: map[string][]string{
			string(domain.DefectReported):     {string(domain.DefectInCorrection), string(domain.DefectClosed)},
			string(domain.DefectInCorrection): {string(domain.DefectCorrected)},
			string(domain.DefectCorrected):    {string(domain.DefectClosed), string(domain.DefectInCorrection)},
			string(domain.DefectClosed):       nil,
		},
		extractor: func(v any) (string, string, bool) {
			d, ok := v.(domain.Defect)
			return d.ID, string(d.State), ok
		},
	},
	domain.EntityCertification: {
		label:   "certification",
		initial: string(domain.CertificationActive),
		edges: map[string][]string{
			string(domain.CertificationActive):    {string(domain.CertificationExpiring), string(domain.CertificationExpired), string(domain.CertificationSuspended), string(domain.CertificationRevoked), string(domain.CertificationRenewed)},
			string(domain.CertificationExpiring):  {string(domain.CertificationActive), string(domain.CertificationExpired), string(domain.CertificationSuspended), string(domain.CertificationRevoked), string(domain.CertificationRenewed)},
			string(domain.CertificationExpired):   {string(domain.CertificationRenewed), string(domain.CertificationRevoked)},
			string(domain.CertificationSuspended): {string(domain.CertificationActive), string(domain.CertificationRevoked), string(domain.CertificationRenewed)},
			string(domain.CertificationRevoked):   nil,
			string(domain.CertificationRenewed):   nil,
		},
		extractor: func(v any) (string, string, bool) {
			c, ok := v.(domain.Certification)
			return c.ID, string(c.State), ok
		},
	},
	domain.EntityAlert: {
		label:   "alert",
		initial: string(domain.AlertActive),
		edges: map[string][]string{
			string(domain.AlertActive):       {string(domain.AlertAcknowledged), string(domain.AlertResolved), string(domain.AlertDismissed)},
			string(domain.AlertAcknowledged): {string(domain.AlertResolved), string(domain.AlertDismissed)},
			string(domain.AlertResolved):     nil,
			string(domain.AlertDismissed):    nil,
		},
		extractor: func(v any) (string, string, bool) {
			a, ok := v.(domain.Alert)
			return a.ID, string(a.State), ok
		},
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (r lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	block := func(entity domain.EntityType, id, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   entity,
			EntityID: id,
		})
	}
	for _, change := range changes {
		machine, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}
		id, after, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		if !machine.known(after) {
			block(change.Entity, id, "%s %s is set to invalid state %q", machine.label, id, after)
			continue
		}
		if change.Action == domain.ActionCreate {
			if after != machine.initial {
				block(change.Entity, id, "%s %s must be created in state %s, not %s", machine.label, id, machine.initial, after)
			}
			continue
		}
		_, before, ok := machine.extractor(change.Before)
		if !ok {
			continue
		}
		if !machine.allows(before, after) {
			block(change.Entity, id, "cannot move %s %s from %s to %s", machine.label, id, before, after)
		}
	}
	return res, nil
}
