package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
)

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	for _, c := range changes {
		if c.Entity == domain.EntityAlert {
			return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "no alerts"}}}, nil
		}
	}
	return domain.Result{}, nil
}

type failingRule struct{}

func (failingRule) Name() string { return "fail" }

func (failingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{}, errors.New("rule exploded")
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()

	var inspectionID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindInspection("missing"); ok {
			t.Fatalf("expected missing inspection lookup")
		}
		created, err := tx.CreateInspection(domain.Inspection{LotID: "L1", State: domain.InspectionScheduled})
		if err != nil {
			return err
		}
		if created.ID == "" || !created.CreatedAt.Equal(fixed) {
			t.Fatalf("expected generated id and store timestamp, got %+v", created.Base)
		}
		inspectionID = created.ID
		if len(tx.Snapshot().ListInspections()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if _, ok := store.GetInspection(inspectionID); !ok {
		t.Fatalf("expected committed inspection")
	}

	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListInspections()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListInspections()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateCertification(domain.Certification{Name: "Org"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if len(store.ListCertifications()) != 0 {
		t.Fatalf("expected rollback to discard certification")
	}
}

func TestStoreRuleViolationBlocksCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateAlert(domain.Alert{Type: domain.AlertInspectionRejected})
		return e
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || !res.HasBlocking() {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(store.ListAlerts()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}

	failing := domain.NewRulesEngine()
	failing.Register(failingRule{})
	if _, err := NewStore(failing).RunInTransaction(context.Background(), func(domain.Transaction) error { return nil }); err == nil {
		t.Fatalf("expected rule error to surface")
	}
}

func TestStoreUpdateSemantics(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		insp, err := tx.CreateInspection(domain.Inspection{State: domain.InspectionScheduled})
		id = insp.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateInspection(id, func(i *domain.Inspection) error {
			i.ID = "hijack"
			i.State = domain.InspectionInProgress
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := store.GetInspection(id)
	if !ok || got.State != domain.InspectionInProgress || got.Version != 1 {
		t.Fatalf("unexpected updated inspection %+v", got)
	}
	if _, ok := store.GetInspection("hijack"); ok {
		t.Fatalf("update must not change the id")
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateDefect("missing", func(*domain.Defect) error { return nil })
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreResultsAreWriteOnce(t *testing.T) {
	store := NewStore(nil)
	v := decimal.NewFromInt(175)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateResult(domain.EvaluationResult{InspectionID: "i1", DefinitionID: "peso", MeasuredValue: &v}); err != nil {
			return err
		}
		_, err := tx.CreateResult(domain.EvaluationResult{InspectionID: "i1", DefinitionID: "peso", MeasuredValue: &v})
		return err
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate result rejection, got %v", err)
	}
}

func TestStoreReturnsClones(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	lo := decimal.NewFromInt(1)
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		p, err := tx.CreateParameter(domain.ParameterDefinition{Name: "pH", Min: &lo})
		id = p.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = store.View(ctx, func(v domain.TransactionView) error {
		p, _ := v.FindParameter(id)
		*p.Min = decimal.NewFromInt(99)
		return nil
	})
	_ = store.View(ctx, func(v domain.TransactionView) error {
		p, _ := v.FindParameter(id)
		if !p.Min.Equal(decimal.NewFromInt(1)) {
			t.Fatalf("mutation leaked into store: %s", p.Min)
		}
		return nil
	})
}

func TestViewListsAndFilters(t *testing.T) {
	store := NewStore(nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { clock = clock.Add(time.Minute); return clock })
	ctx := context.Background()
	for _, insp := range []string{"a", "b"} {
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, err := tx.CreateResult(domain.EvaluationResult{InspectionID: insp, DefinitionID: "d"}); err != nil {
				return err
			}
			_, err := tx.CreateDefect(domain.Defect{InspectionID: insp, Description: "golpe"})
			return err
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_ = store.View(ctx, func(v domain.TransactionView) error {
		if got := v.ListResults("a"); len(got) != 1 || got[0].InspectionID != "a" {
			t.Fatalf("unexpected filtered results %+v", got)
		}
		if got := v.ListResults(""); len(got) != 2 || got[0].InspectionID != "a" {
			t.Fatalf("expected creation ordering, got %+v", got)
		}
		if got := v.ListDefects("b"); len(got) != 1 {
			t.Fatalf("unexpected defects %+v", got)
		}
		if _, ok := v.FindResult("b", "d"); !ok {
			t.Fatalf("expected result lookup")
		}
		return nil
	})
}

func TestConcurrentTransactionsSerialise(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var id string
	_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		insp, err := tx.CreateInspection(domain.Inspection{State: domain.InspectionInProgress})
		id = insp.ID
		return err
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				cur, _ := tx.FindInspection(id)
				if cur.State != domain.InspectionInProgress {
					return domain.InvalidStateError{Entity: domain.EntityInspection, ID: id, State: string(cur.State), Operation: "complete"}
				}
				_, err := tx.UpdateInspection(id, func(i *domain.Inspection) error {
					i.State = domain.InspectionApproved
					return nil
				})
				return err
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one terminal transition, got %d", winners)
	}
}
