package alerting

import (
	"testing"
	"time"

	"coopquality/pkg/domain"
	"coopquality/testutil"

	"github.com/shopspring/decimal"
)

func TestForInspectionRejected(t *testing.T) {
	insp := domain.Inspection{Base: domain.Base{ID: "i1"}, Code: "INS-1", LotID: "L7", State: domain.InspectionRejected, Score: decimal.NewFromInt(50), CriticalCount: 1}
	failures := []domain.EvaluationResult{
		{DefinitionID: "peso", Verdict: domain.VerdictLow, Mandatory: true, Deviation: decimal.NewFromInt(10)},
		{DefinitionID: "ph", Verdict: domain.VerdictOptimal, Mandatory: true},
		{DefinitionID: "color", Verdict: domain.VerdictHigh},
	}
	alerts := ForInspection(insp, failures, map[string]string{"peso": "PESO"})
	if len(alerts) != 2 {
		t.Fatalf("expected verdict alert plus one critical parameter alert, got %+v", alerts)
	}
	if alerts[0].Type != domain.AlertInspectionRejected || alerts[0].Severity != domain.CriticalityCritical {
		t.Fatalf("unexpected verdict alert %+v", alerts[0])
	}
	param := alerts[1]
	if param.Type != domain.AlertCriticalParameter || param.Severity != domain.CriticalityHigh || param.SubjectID != "peso" {
		t.Fatalf("unexpected parameter alert %+v", param)
	}
	if param.Title != "Critical parameter PESO failed" {
		t.Fatalf("unexpected title %q", param.Title)
	}
}

func TestForInspectionConditionalAndApproved(t *testing.T) {
	cond := ForInspection(domain.Inspection{Base: domain.Base{ID: "i2"}, State: domain.InspectionConditional}, nil, nil)
	if len(cond) != 1 || cond[0].Severity != domain.CriticalityHigh || cond[0].Type != domain.AlertInspectionConditional {
		t.Fatalf("unexpected conditional alerts %+v", cond)
	}
	if got := ForInspection(domain.Inspection{State: domain.InspectionApproved}, nil, nil); len(got) != 0 {
		t.Fatalf("approved inspection must not alert, got %+v", got)
	}
}

func TestClassifyCertification(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	cert := func(state domain.CertificationState, days int) domain.Certification {
		return domain.Certification{State: state, ExpiresOn: now.AddDate(0, 0, days)}
	}
	cases := []struct {
		cert domain.Certification
		want ExpiryStatus
	}{
		{cert(domain.CertificationActive, 60), StatusValid},
		{cert(domain.CertificationActive, 31), StatusValid},
		{cert(domain.CertificationActive, 30), StatusExpiring},
		{cert(domain.CertificationActive, 1), StatusExpiring},
		{cert(domain.CertificationActive, 0), StatusValid},
		{cert(domain.CertificationActive, -1), StatusExpired},
		{cert(domain.CertificationSuspended, -10), StatusNotTracked},
		{cert(domain.CertificationExpired, -10), StatusNotTracked},
		{cert(domain.CertificationRenewed, 5), StatusNotTracked},
	}
	for i, tc := range cases {
		if got, _ := cfg.Classify(tc.cert, now); got != tc.want {
			t.Fatalf("case %d: got %s want %s", i, got, tc.want)
		}
	}
}

func TestForCertification(t *testing.T) {
	cert := domain.Certification{Base: domain.Base{ID: "c1"}, Code: "ORG", Name: "Organico", Issuer: "Bio", ExpiresOn: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	a, ok := ForCertification(cert, StatusExpiring, 12)
	if !ok || a.Severity != domain.CriticalityMedium || a.Type != domain.AlertCertificationExpiring || a.EntityID != "c1" {
		t.Fatalf("unexpected expiring alert %+v", a)
	}
	a, ok = ForCertification(cert, StatusExpired, -2)
	if !ok || a.Severity != domain.CriticalityCritical || a.Type != domain.AlertCertificationExpired {
		t.Fatalf("unexpected expired alert %+v", a)
	}
	if _, ok := ForCertification(cert, StatusValid, 90); ok {
		t.Fatalf("valid certification must not alert")
	}
}

func TestDeduplicate(t *testing.T) {
	base := domain.Alert{Type: domain.AlertCertificationExpiring, Entity: domain.EntityCertification, EntityID: "c1"}
	active := base
	active.State = domain.AlertActive
	resolved := domain.Alert{Type: domain.AlertCertificationExpiring, Entity: domain.EntityCertification, EntityID: "c2", State: domain.AlertResolved}

	other := base
	other.EntityID = "c2"
	out := Deduplicate([]domain.Alert{base, other, other}, []domain.Alert{active, resolved})
	if len(out) != 1 || out[0].EntityID != "c2" {
		t.Fatalf("expected only the c2 alert once, got %+v", out)
	}

	acked := base
	acked.State = domain.AlertAcknowledged
	if out := Deduplicate([]domain.Alert{base}, []domain.Alert{acked}); len(out) != 0 {
		t.Fatalf("acknowledged alert must suppress a new one, got %+v", out)
	}
	dismissed := base
	dismissed.State = domain.AlertDismissed
	if out := Deduplicate([]domain.Alert{base}, []domain.Alert{dismissed}); len(out) != 1 {
		t.Fatalf("closed alert must not suppress a new one, got %+v", out)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestAlertingStaysPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(
		testutil.PersistenceImportForbidden,
		testutil.TransportImportForbidden,
	), "alert generation must not depend on storage or transport")
}
