package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"coopquality/internal/blob/core"
)

func TestStoreIsolatesCallers(t *testing.T) {
	s := New()
	ctx := context.Background()
	md := map[string]string{"lot": "L-7"}
	if _, err := s.Put(ctx, "k", strings.NewReader("payload"), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["lot"] = "changed"
	info, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	if info.Metadata["lot"] != "L-7" {
		t.Fatalf("metadata aliased caller map: %+v", info.Metadata)
	}
	info.Metadata["lot"] = "mutated"
	head, _ := s.Head(ctx, "k")
	if head.Metadata["lot"] != "L-7" {
		t.Fatalf("metadata aliased returned map: %+v", head.Metadata)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "payload" || head.ETag == "" {
		t.Fatalf("unexpected body %q etag %q", body, head.ETag)
	}
}

func TestStoreRejectsBlankKeyAndPresign(t *testing.T) {
	s := New()
	if _, err := s.Put(context.Background(), " ", strings.NewReader(""), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	if _, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, k := range []string{"inspections/b/x", "inspections/a/y", "other/z"} {
		if _, err := s.Put(ctx, k, strings.NewReader(k), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	got, _ := s.List(ctx, "inspections/")
	if len(got) != 2 || got[0].Key != "inspections/a/y" || got[1].Key != "inspections/b/x" {
		t.Fatalf("unexpected listing %+v", got)
	}
}
