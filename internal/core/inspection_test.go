package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"coopquality/internal/blob"
	"coopquality/internal/quality"
	"coopquality/pkg/domain"
)

func TestCompleteMandatoryFailureRejects(t *testing.T) {
	dispatcher := &captureDispatcher{}
	svc := newTestService(t, WithAlertDispatcher(dispatcher))
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)

	done, _, err := svc.CompleteInspection(context.Background(), insp.ID, Completion{
		Evaluations: []EvaluationInput{
			{DefinitionID: fx.peso.ID, Observation: obsValue("140")},
			{DefinitionID: fx.ph.ID, Observation: obsValue("6.5")},
		},
		Observations: "lote con fruta pequena",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State != domain.InspectionRejected || done.Verdict != domain.FinalRejected {
		t.Fatalf("expected rejected, got state=%s verdict=%s", done.State, done.Verdict)
	}
	if done.CriticalCount != 1 || done.EvaluatedCount != 2 || done.ApprovedCount != 1 {
		t.Fatalf("unexpected counts %+v", done)
	}
	if !done.RequiresCorrectiveAction || done.EndedAt == nil || done.Observations != "lote con fruta pequena" {
		t.Fatalf("unexpected completion fields %+v", done)
	}

	alerts, err := svc.ListAlerts(context.Background(), AlertFilter{EntityID: insp.ID})
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected rejected plus critical parameter alert, got %+v", alerts)
	}
	var types []string
	for _, a := range alerts {
		types = append(types, string(a.Type))
		if a.State != domain.AlertActive {
			t.Fatalf("alert must start active: %+v", a)
		}
	}
	joined := strings.Join(types, ",")
	if !strings.Contains(joined, string(domain.AlertInspectionRejected)) || !strings.Contains(joined, string(domain.AlertCriticalParameter)) {
		t.Fatalf("unexpected alert types %s", joined)
	}
	if len(dispatcher.alerts) != 2 {
		t.Fatalf("expected both alerts dispatched, got %d", len(dispatcher.alerts))
	}
}

func TestCompleteAllOptimalApproves(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	ctx := context.Background()

	if _, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.peso.ID, Observation: obsValue("175")}); err != nil {
		t.Fatalf("record peso: %v", err)
	}
	done, _, err := svc.CompleteInspection(ctx, insp.ID, Completion{
		Evaluations: []EvaluationInput{{DefinitionID: fx.ph.ID, Observation: obsValue("6.5")}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State != domain.InspectionApproved || !done.Score.Equal(*dp("100")) {
		t.Fatalf("expected approved at 100%%, got %s %s", done.State, done.Score)
	}
	if done.RequiresCorrectiveAction {
		t.Fatalf("approved inspection must not require corrective action")
	}
	alerts, _ := svc.ListAlerts(ctx, AlertFilter{})
	if len(alerts) != 0 {
		t.Fatalf("approved inspection must not alert, got %+v", alerts)
	}
	results, err := svc.ListInspectionResults(ctx, insp.ID)
	if err != nil || len(results) != 2 {
		t.Fatalf("expected two stored results, got %d (%v)", len(results), err)
	}
	for _, r := range results {
		if r.RecordedBy != "inspector-1" {
			t.Fatalf("result should default to the inspector, got %q", r.RecordedBy)
		}
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	ctx := context.Background()
	insp, _, err := svc.ScheduleInspection(ctx, domain.Inspection{LotID: "L-9", StandardID: fx.standard.ID})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	_, _, err = svc.CompleteInspection(ctx, insp.ID, Completion{
		Evaluations: []EvaluationInput{{DefinitionID: fx.peso.ID, Observation: obsValue("175")}},
	})
	var stateErr domain.InvalidStateError
	if !errors.As(err, &stateErr) || stateErr.State != string(domain.InspectionScheduled) {
		t.Fatalf("expected InvalidStateError from scheduled, got %v", err)
	}
	got, _ := svc.GetInspection(ctx, insp.ID)
	if got.State != domain.InspectionScheduled {
		t.Fatalf("state must be unchanged, got %s", got.State)
	}
}

func TestCompleteWithoutResultsIsValidationError(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)

	_, _, err := svc.CompleteInspection(context.Background(), insp.ID, Completion{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := svc.GetInspection(context.Background(), insp.ID)
	if got.State != domain.InspectionInProgress {
		t.Fatalf("failed completion must leave the inspection open, got %s", got.State)
	}
}

func TestCompleteFailureRollsBackBatch(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	ctx := context.Background()

	_, _, err := svc.CompleteInspection(ctx, insp.ID, Completion{Evaluations: []EvaluationInput{
		{DefinitionID: fx.peso.ID, Observation: obsValue("175")},
		{DefinitionID: fx.ph.ID},
	}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing value to fail validation, got %v", err)
	}
	results, _ := svc.ListInspectionResults(ctx, insp.ID)
	if len(results) != 0 {
		t.Fatalf("batch must not be partially stored, got %d results", len(results))
	}
}

func TestStartTwiceFails(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	if insp.StartedAt == nil || !insp.StartedAt.Equal(testNow) || insp.InspectorID != "inspector-1" {
		t.Fatalf("start must stamp time and inspector: %+v", insp)
	}
	_, _, err := svc.StartInspection(context.Background(), insp.ID, "inspector-2")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on second start, got %v", err)
	}
}

func TestStartRequiresInspector(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp, _, _ := svc.ScheduleInspection(context.Background(), domain.Inspection{LotID: "L-2", StandardID: fx.standard.ID})
	if _, _, err := svc.StartInspection(context.Background(), insp.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without inspector, got %v", err)
	}
}

func TestScheduleValidation(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	ctx := context.Background()
	cases := []domain.Inspection{
		{StandardID: fx.standard.ID},
		{LotID: "L-1"},
		{LotID: "L-1", StandardID: "missing"},
	}
	for i, in := range cases {
		if _, _, err := svc.ScheduleInspection(ctx, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	insp, _, err := svc.ScheduleInspection(ctx, domain.Inspection{LotID: "L-1", StandardID: fx.standard.ID, State: domain.InspectionApproved})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if insp.State != domain.InspectionScheduled || !insp.ScheduledFor.Equal(testNow) || insp.Code == "" {
		t.Fatalf("unexpected scheduled inspection %+v", insp)
	}
}

func TestCancelTwiceFails(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	ctx := context.Background()

	cancelled, _, err := svc.CancelInspection(ctx, insp.ID, "lot withdrawn")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.State != domain.InspectionCancelled || cancelled.CancelReason != "lot withdrawn" || cancelled.EndedAt == nil {
		t.Fatalf("unexpected cancelled inspection %+v", cancelled)
	}
	if _, _, err := svc.CancelInspection(ctx, insp.ID, "again"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on second cancel, got %v", err)
	}
	if _, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.peso.ID, Observation: obsValue("175")}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("cancelled inspection must not accept evaluations, got %v", err)
	}
}

func TestRecordEvaluationIsWriteOnce(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	ctx := context.Background()

	first, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.peso.ID, Observation: obsValue("180")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.Verdict != domain.VerdictOptimal || !first.Deviation.Equal(*dp("5")) {
		t.Fatalf("unexpected result %+v", first)
	}
	if _, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.peso.ID, Observation: obsValue("175")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate evaluation to fail, got %v", err)
	}
	if _, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: "other", Observation: obsValue("1")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected foreign definition to fail, got %v", err)
	}
	if _, _, err := svc.RecordEvaluation(ctx, "missing", EvaluationInput{DefinitionID: fx.peso.ID, Observation: obsValue("1")}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentCompleteHasSingleWinner(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	ctx := context.Background()
	for _, def := range []string{fx.peso.ID, fx.ph.ID} {
		value := "175"
		if def == fx.ph.ID {
			value = "6.5"
		}
		if _, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: def, Observation: obsValue(value)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		invalid int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CompleteInspection(ctx, insp.ID, Completion{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrInvalidState):
				invalid++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if success != 1 || invalid != callers-1 {
		t.Fatalf("expected exactly one winner, got success=%d invalid=%d", success, invalid)
	}
	got, _ := svc.GetInspection(ctx, insp.ID)
	if got.State != domain.InspectionApproved {
		t.Fatalf("expected approved, got %s", got.State)
	}
}

func TestWeightedAutoAdvanceAndComplete(t *testing.T) {
	svc := newTestService(t)
	fx := seedWeighted(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	ctx := context.Background()

	res, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.aroma.ID, Observation: quality.Observation{Score: intp(5)}})
	if err != nil {
		t.Fatalf("record aroma: %v", err)
	}
	if res.NormalizedScore == nil || !res.NormalizedScore.Equal(*dp("100")) {
		t.Fatalf("unexpected normalized score %+v", res.NormalizedScore)
	}
	got, _ := svc.GetInspection(ctx, insp.ID)
	if got.State != domain.InspectionCompleted {
		t.Fatalf("all mandatory items evaluated should auto-complete, got %s", got.State)
	}
	if _, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.brix.ID, Observation: obsValue("6")}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("completed inspection only accepts evaluations through completion, got %v", err)
	}

	done, _, err := svc.CompleteInspection(ctx, insp.ID, Completion{
		Evaluations: []EvaluationInput{{DefinitionID: fx.brix.ID, Observation: obsValue("6")}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State != domain.InspectionApproved || !done.Score.Equal(*dp("100")) || done.EvaluatedCount != 2 {
		t.Fatalf("unexpected weighted completion %+v", done)
	}
}

func TestWeightedLowScoreRejects(t *testing.T) {
	svc := newTestService(t)
	fx := seedWeighted(t, svc)
	insp := startedInspection(t, svc, fx.standard)

	done, _, err := svc.CompleteInspection(context.Background(), insp.ID, Completion{Evaluations: []EvaluationInput{
		{DefinitionID: fx.aroma.ID, Observation: quality.Observation{Score: intp(1)}},
	}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State != domain.InspectionRejected || done.CriticalCount != 1 {
		t.Fatalf("unexpected weighted rejection %+v", done)
	}
}

func TestEvidenceAttachAndReference(t *testing.T) {
	evidence := blob.NewMemory()
	svc := newTestService(t, WithEvidenceStore(evidence))
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	ctx := WithActor(context.Background(), "ana")

	missing := quality.Observation{Value: dp("175"), EvidenceKey: "inspections/" + insp.ID + "/" + fx.peso.ID + "/nope.jpg"}
	if _, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.peso.ID, Observation: missing}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unknown evidence to fail validation, got %v", err)
	}

	info, err := svc.AttachEvidence(ctx, insp.ID, fx.peso.ID, "balanza.jpg", Upload{ContentType: "image/jpeg", Body: strings.NewReader("jpeg-bytes")})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if info.Metadata["actor"] != "ana" || info.Size != int64(len("jpeg-bytes")) {
		t.Fatalf("unexpected evidence info %+v", info)
	}
	if _, err := svc.AttachEvidence(ctx, insp.ID, fx.peso.ID, "balanza.jpg", Upload{Body: strings.NewReader("x")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate upload to fail validation, got %v", err)
	}
	if _, err := svc.AttachEvidence(ctx, insp.ID, "foreign", "x.jpg", Upload{Body: strings.NewReader("x")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected foreign definition to fail, got %v", err)
	}

	obs := quality.Observation{Value: dp("175"), EvidenceKey: info.Key}
	res, _, err := svc.RecordEvaluation(ctx, insp.ID, EvaluationInput{DefinitionID: fx.peso.ID, Observation: obs})
	if err != nil {
		t.Fatalf("record with evidence: %v", err)
	}
	if res.EvidenceKey != info.Key {
		t.Fatalf("evidence key not stored: %+v", res)
	}
	listed, err := svc.ListEvidence(ctx, insp.ID)
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected one evidence file, got %v (%v)", listed, err)
	}
	_, rc, err := svc.OpenEvidence(ctx, info.Key)
	if err != nil {
		t.Fatalf("open evidence: %v", err)
	}
	_ = rc.Close()
	if _, _, err := svc.OpenEvidence(ctx, "inspections/x/y/z"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttachEvidenceWithoutStore(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	insp := startedInspection(t, svc, fx.standard)
	if _, err := svc.AttachEvidence(context.Background(), insp.ID, fx.peso.ID, "a.jpg", Upload{Body: strings.NewReader("x")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without evidence store, got %v", err)
	}
}

func TestListInspectionsFilter(t *testing.T) {
	svc := newTestService(t)
	fx := seedThreshold(t, svc)
	startedInspection(t, svc, fx.standard)
	ctx := context.Background()
	if _, _, err := svc.ScheduleInspection(ctx, domain.Inspection{LotID: "L-2", StandardID: fx.standard.ID}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	all, _ := svc.ListInspections(ctx, InspectionFilter{})
	open, _ := svc.ListInspections(ctx, InspectionFilter{State: domain.InspectionInProgress})
	lot, _ := svc.ListInspections(ctx, InspectionFilter{LotID: "L-2"})
	if len(all) != 2 || len(open) != 1 || len(lot) != 1 {
		t.Fatalf("unexpected filter results all=%d open=%d lot=%d", len(all), len(open), len(lot))
	}
	if _, err := svc.GetInspection(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
