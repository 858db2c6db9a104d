package core

import (
	"context"
	"errors"
	"testing"

	"coopquality/pkg/domain"
)

func evaluateRule(t *testing.T, rule domain.Rule, changes ...domain.Change) domain.Result {
	t.Helper()
	ctx := context.Background()
	svc := newTestService(t)
	var res domain.Result
	_ = svc.Store().View(ctx, func(v domain.TransactionView) error {
		var err error
		res, err = rule.Evaluate(ctx, v, changes)
		if err != nil {
			t.Fatalf("evaluate %s: %v", rule.Name(), err)
		}
		return nil
	})
	return res
}

func TestLifecycleTransitionBlocksTerminalExit(t *testing.T) {
	before := domain.Inspection{Base: domain.Base{ID: "i1"}, State: domain.InspectionApproved}
	after := before
	after.State = domain.InspectionInProgress
	res := evaluateRule(t, LifecycleTransitionRule(), domain.Change{Entity: domain.EntityInspection, Action: domain.ActionUpdate, Before: before, After: after})
	if !res.HasBlocking() {
		t.Fatalf("expected leaving a terminal state to block")
	}
}

func TestLifecycleTransitionTable(t *testing.T) {
	cases := []struct {
		name   string
		change domain.Change
		block  bool
	}{
		{
			name:   "inspection created scheduled",
			change: domain.Change{Entity: domain.EntityInspection, Action: domain.ActionCreate, After: domain.Inspection{State: domain.InspectionScheduled}},
		},
		{
			name:   "inspection created approved",
			change: domain.Change{Entity: domain.EntityInspection, Action: domain.ActionCreate, After: domain.Inspection{State: domain.InspectionApproved}},
			block:  true,
		},
		{
			name:   "inspection unknown state",
			change: domain.Change{Entity: domain.EntityInspection, Action: domain.ActionUpdate, Before: domain.Inspection{State: domain.InspectionScheduled}, After: domain.Inspection{State: "warp"}},
			block:  true,
		},
		{
			name:   "scheduled straight to approved",
			change: domain.Change{Entity: domain.EntityInspection, Action: domain.ActionUpdate, Before: domain.Inspection{State: domain.InspectionScheduled}, After: domain.Inspection{State: domain.InspectionApproved}},
			block:  true,
		},
		{
			name:   "completed to conditional",
			change: domain.Change{Entity: domain.EntityInspection, Action: domain.ActionUpdate, Before: domain.Inspection{State: domain.InspectionCompleted}, After: domain.Inspection{State: domain.InspectionConditional}},
		},
		{
			name:   "defect corrected reopens",
			change: domain.Change{Entity: domain.EntityDefect, Action: domain.ActionUpdate, Before: domain.Defect{State: domain.DefectCorrected}, After: domain.Defect{State: domain.DefectInCorrection}},
		},
		{
			name:   "defect closed reopens",
			change: domain.Change{Entity: domain.EntityDefect, Action: domain.ActionUpdate, Before: domain.Defect{State: domain.DefectClosed}, After: domain.Defect{State: domain.DefectReported}},
			block:  true,
		},
		{
			name:   "revoked certification reactivated",
			change: domain.Change{Entity: domain.EntityCertification, Action: domain.ActionUpdate, Before: domain.Certification{State: domain.CertificationRevoked}, After: domain.Certification{State: domain.CertificationActive}},
			block:  true,
		},
		{
			name:   "resolved alert reopened",
			change: domain.Change{Entity: domain.EntityAlert, Action: domain.ActionUpdate, Before: domain.Alert{State: domain.AlertResolved}, After: domain.Alert{State: domain.AlertActive}},
			block:  true,
		},
		{
			name:   "untracked entity",
			change: domain.Change{Entity: domain.EntityStandard, Action: domain.ActionUpdate, Before: domain.Standard{}, After: domain.Standard{}},
		},
	}
	for _, tc := range cases {
		res := evaluateRule(t, LifecycleTransitionRule(), tc.change)
		if res.HasBlocking() != tc.block {
			t.Fatalf("%s: blocking=%v want %v (%+v)", tc.name, res.HasBlocking(), tc.block, res.Violations)
		}
	}
}

func TestResultIntegrityRuleBlocksOrphans(t *testing.T) {
	res := evaluateRule(t, ResultIntegrityRule(), domain.Change{
		Entity: domain.EntityEvaluationResult,
		Action: domain.ActionCreate,
		After:  domain.EvaluationResult{Base: domain.Base{ID: "r1"}, InspectionID: "missing", DefinitionID: "d"},
	})
	if !res.HasBlocking() {
		t.Fatalf("expected orphan result to block")
	}
}

func TestResultIntegrityRuleThroughStore(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	ctx := context.Background()
	insp, _, _ := svc.ScheduleInspection(ctx, domain.Inspection{LotID: "L-5", StandardID: fx.standard.ID})

	_, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateResult(domain.EvaluationResult{InspectionID: insp.ID, DefinitionID: fx.peso.ID, Verdict: domain.VerdictOptimal})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) || !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected rule violation for scheduled inspection, got %v", err)
	}
}

func TestDefaultRulesEngineRegistersRules(t *testing.T) {
	names := map[string]bool{}
	for _, r := range NewDefaultRulesEngine().Rules() {
		names[r.Name()] = true
	}
	for _, want := range []string{"lifecycle_transition", "result_integrity", "definition_reference"} {
		if !names[want] {
			t.Fatalf("missing rule %s", want)
		}
	}
	if len(NewRulesEngine().Rules()) != 0 {
		t.Fatalf("bare engine must be empty")
	}
}
