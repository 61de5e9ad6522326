package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"unitofwork/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"tx": "t1"}
	info, err := s.Put(ctx, "snapshots/t1.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["tx"] = "mutated"
	if info.Size != 2 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "snapshots/t1.json", strings.NewReader("{}"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}

	got, rc, err := s.Get(ctx, "snapshots/t1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" || got.Metadata["tx"] != "t1" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}

	if _, err := s.Put(ctx, "other/x", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, _ := s.List(ctx, "snapshots/")
	if len(list) != 1 || list[0].Key != "snapshots/t1.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key != "other/x" {
		t.Fatalf("expected sorted full list, got %+v", all)
	}

	if ok, _ := s.Delete(ctx, "snapshots/t1.json"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "snapshots/t1.json"); ok {
		t.Fatalf("expected second delete to report missing blob")
	}
	if _, err := s.Head(ctx, "snapshots/t1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "snapshots/t1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
