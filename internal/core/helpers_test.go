package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"coopquality/internal/quality"
	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func dp(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func intp(v int) *int { return &v }

func obsValue(v string) quality.Observation {
	return quality.Observation{Value: dp(v)}
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("INFO", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("WARN", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args) }

func (l *captureLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (a *captureAudit) Record(_ context.Context, entry AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *captureAudit) last() AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

type captureDispatcher struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (d *captureDispatcher) Dispatch(_ context.Context, alerts []domain.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, alerts...)
	return d.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	all := append([]ServiceOption{WithClock(ClockFunc(func() time.Time { return testNow }))}, opts...)
	svc, err := NewInMemoryService(all...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type thresholdFixture struct {
	standard domain.Standard
	peso     domain.ParameterDefinition
	ph       domain.ParameterDefinition
}

// seedThreshold stores two mandatory parameters and a threshold standard
// binding both.
func seedThreshold(t *testing.T, svc *Service) thresholdFixture {
	t.Helper()
	ctx := context.Background()
	peso, _, err := svc.CreateParameterDefinition(ctx, domain.ParameterDefinition{
		Code: "PESO", Name: "Peso unitario", Type: domain.ParameterPhysical, Unit: "g",
		Min: dp("150"), Optimal: dp("175"), Max: dp("200"),
		ToleranceLow: decimal.NewFromInt(5), ToleranceHigh: decimal.NewFromInt(10),
		Mandatory: true,
	})
	if err != nil {
		t.Fatalf("create peso: %v", err)
	}
	ph, _, err := svc.CreateParameterDefinition(ctx, domain.ParameterDefinition{
		Code: "PH", Name: "pH", Type: domain.ParameterChemical,
		Min: dp("6"), Optimal: dp("6.5"), Max: dp("7"),
		ToleranceLow: decimal.NewFromInt(5), ToleranceHigh: decimal.NewFromInt(10),
		Mandatory: true,
	})
	if err != nil {
		t.Fatalf("create ph: %v", err)
	}
	std, _, err := svc.CreateStandard(ctx, domain.Standard{
		Code: "TOM-STD", Name: "Tomate estandar", Tier: domain.TierStandard,
		Items: []domain.StandardItem{{DefinitionID: peso.ID, Order: 1}, {DefinitionID: ph.ID, Order: 2}},
	})
	if err != nil {
		t.Fatalf("create standard: %v", err)
	}
	return thresholdFixture{standard: std, peso: peso, ph: ph}
}

type weightedFixture struct {
	standard domain.Standard
	aroma    domain.CriterionDefinition
	brix     domain.CriterionDefinition
}

// seedWeighted stores an ordinal mandatory criterion and an optional
// numeric one under a weighted standard.
func seedWeighted(t *testing.T, svc *Service) weightedFixture {
	t.Helper()
	ctx := context.Background()
	aroma, _, err := svc.CreateCriterionDefinition(ctx, domain.CriterionDefinition{
		Code: "AROMA", Name: "Aroma", Kind: domain.KindSubjective,
		ScaleMin: 1, ScaleMax: 5, Weight: decimal.NewFromInt(2), Mandatory: true,
	})
	if err != nil {
		t.Fatalf("create aroma: %v", err)
	}
	brix, _, err := svc.CreateCriterionDefinition(ctx, domain.CriterionDefinition{
		Code: "BRIX", Name: "Grados brix", Kind: domain.KindMeasurement,
		Min: dp("4"), Optimal: dp("6"), Max: dp("8"),
		Weight: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("create brix: %v", err)
	}
	std, _, err := svc.CreateStandard(ctx, domain.Standard{
		Code: "TOM-PREM", Name: "Tomate premium", Tier: domain.TierPremium, Mode: domain.ScoringWeighted,
		Items: []domain.StandardItem{{DefinitionID: aroma.ID, Order: 1}, {DefinitionID: brix.ID, Order: 2}},
	})
	if err != nil {
		t.Fatalf("create weighted standard: %v", err)
	}
	return weightedFixture{standard: std, aroma: aroma, brix: brix}
}

// startedInspection schedules and starts an inspection against std.
func startedInspection(t *testing.T, svc *Service, std domain.Standard) domain.Inspection {
	t.Helper()
	ctx := context.Background()
	insp, _, err := svc.ScheduleInspection(ctx, domain.Inspection{ProductID: "tomate", LotID: "L-001", StandardID: std.ID})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	insp, _, err = svc.StartInspection(ctx, insp.ID, "inspector-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return insp
}
