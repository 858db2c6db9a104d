package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"coopquality/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	var inspectionID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		insp, err := tx.CreateInspection(domain.Inspection{Code: "INS-1", LotID: "L1", State: domain.InspectionScheduled})
		if err != nil {
			return err
		}
		inspectionID = insp.ID
		_, err = tx.CreateAlert(domain.Alert{Type: domain.AlertInspectionRejected, EntityID: insp.ID, State: domain.AlertActive})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, ok := reloaded.GetInspection(inspectionID)
	if !ok || got.Code != "INS-1" {
		t.Fatalf("expected reloaded inspection, got %+v", got)
	}
	if len(reloaded.ListAlerts()) != 1 {
		t.Fatalf("expected reloaded alert")
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreWritesEveryBucket(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("empty transaction: %v", err)
	}
	var n int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&n); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 buckets, got %d", n)
	}
}

func TestSQLiteStoreDoesNotPersistFailedTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	boom := errors.New("boom")
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateCertification(domain.Certification{Name: "Org"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if len(reloaded.ListCertifications()) != 0 {
		t.Fatalf("failed transaction leaked into sqlite")
	}
}
