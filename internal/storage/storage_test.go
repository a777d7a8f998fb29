package storage_test

import (
	"context"
	"errors"
	"testing"

	"promptbed/internal/storage"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	data := map[string]any{"status": "running", "attempt": 2.0}
	if err := m.Save(ctx, "agent_1", data, "org_123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := m.Load(ctx, "agent_1", "org_123")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["status"] != "running" || got["attempt"] != 2.0 {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestMemoryLoadDoesNotAliasStore(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	if err := m.Save(ctx, "k", map[string]any{"n": "v"}, ""); err != nil {
		t.Fatal(err)
	}
	first, _ := m.Load(ctx, "k", "")
	first["n"] = "mutated"
	second, _ := m.Load(ctx, "k", "")
	if second["n"] != "v" {
		t.Fatalf("stored record was mutated through a loaded copy")
	}
}

func TestMemoryLegacyFallback(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	if err := m.Save(ctx, "agent_1", map[string]any{"scope": "legacy"}, ""); err != nil {
		t.Fatal(err)
	}
	got, err := m.Load(ctx, "agent_1", "org_123")
	if err != nil {
		t.Fatalf("expected legacy fallback, got %v", err)
	}
	if got["scope"] != "legacy" {
		t.Fatalf("expected legacy record, got %v", got)
	}
	// An org-scoped record shadows the legacy one.
	if err := m.Save(ctx, "agent_1", map[string]any{"scope": "org"}, "org_123"); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Load(ctx, "agent_1", "org_123")
	if got["scope"] != "org" {
		t.Fatalf("expected org record, got %v", got)
	}
	// The legacy record is untouched by the org-scoped write.
	got, _ = m.Load(ctx, "agent_1", "")
	if got["scope"] != "legacy" {
		t.Fatalf("legacy record was overwritten: %v", got)
	}
}

func TestMemoryDeleteIsScopeExact(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	_ = m.Save(ctx, "k", map[string]any{"scope": "legacy"}, "")
	_ = m.Save(ctx, "k", map[string]any{"scope": "org"}, "org_1")
	if err := m.Delete(ctx, "k", "org_1"); err != nil {
		t.Fatalf("delete org scope: %v", err)
	}
	if _, err := m.Load(ctx, "k", ""); err != nil {
		t.Fatalf("legacy record should survive org delete: %v", err)
	}
	// Org load now falls back to the surviving legacy record.
	got, err := m.Load(ctx, "k", "org_1")
	if err != nil || got["scope"] != "legacy" {
		t.Fatalf("expected fallback after org delete, got %v, %v", got, err)
	}
	if err := m.Delete(ctx, "k", "org_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing org record, got %v", err)
	}
}

func TestMemoryLoadMissing(t *testing.T) {
	m := storage.NewMemory()
	if _, err := m.Load(context.Background(), "nope", "org_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
