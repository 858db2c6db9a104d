package report

import (
	"bytes"
	"strings"
	"testing"

	"coopquality/internal/core"
	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
)

func dp(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestInspectionRendersResults(t *testing.T) {
	var buf bytes.Buffer
	insp := domain.Inspection{
		Base:                     domain.Base{ID: "i-1"},
		Code:                     "INS-20260504-1",
		LotID:                    "L-7",
		State:                    domain.InspectionRejected,
		Verdict:                  domain.FinalRejected,
		Score:                    decimal.NewFromInt(50),
		EvaluatedCount:           2,
		ApprovedCount:            1,
		CriticalCount:            1,
		RequiresCorrectiveAction: true,
	}
	results := []domain.EvaluationResult{
		{DefinitionID: "d-peso", MeasuredValue: dp("140"), Verdict: domain.VerdictLow, Deviation: decimal.NewFromInt(10), Mandatory: true},
		{DefinitionID: "d-aroma", AssignedScore: func() *int { v := 4; return &v }(), Verdict: domain.VerdictAcceptable, NormalizedScore: dp("75")},
	}
	New(&buf).Inspection(insp, results, map[string]string{"d-peso": "PESO"})
	out := buf.String()
	for _, want := range []string{"Inspection INS-20260504-1", "rejected", "50.00%", "2 evaluated, 1 approved, 1 critical", "corrective action required", "PESO*", "140", "low", "d-aroma", "score 4", "75.0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("non-terminal output must not carry escape codes:\n%q", out)
	}
}

func TestInspectionWithoutResults(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Inspection(domain.Inspection{Base: domain.Base{ID: "i-2"}, State: domain.InspectionScheduled}, nil, nil)
	if out := buf.String(); !strings.Contains(out, "Inspection i-2") || strings.Contains(out, "verdict") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestEvaluationAndSweep(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Evaluation("PESO", domain.EvaluationResult{MeasuredValue: dp("180"), Verdict: domain.VerdictAcceptable, Deviation: decimal.NewFromInt(5)})
	p.Sweep(core.SweepReport{Checked: 3, Expiring: 1, Expired: 1, Alerts: []domain.Alert{
		{Severity: domain.CriticalityHigh, Title: "Certification GAP expired", Message: "expired 2 days ago"},
	}})
	out := buf.String()
	for _, want := range []string{"Evaluation PESO", "acceptable", "Certification sweep", "[high] Certification GAP expired"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAlertsEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Alerts(nil)
	if !strings.Contains(buf.String(), "no alerts") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
