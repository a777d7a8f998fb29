package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"promptbed/internal/db"
	"promptbed/internal/migrate"
	"promptbed/internal/storage"
)

func newSQLite(t *testing.T) (*storage.SQLite, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return storage.NewSQLite(conn), conn
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLite(t)
	data := map[string]any{"status": "idle", "config": map[string]any{"model": "nova"}}
	if err := s.Save(ctx, "agent_1", data, "org_123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "agent_1", "org_123")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["status"] != "idle" {
		t.Fatalf("unexpected payload: %v", got)
	}
	cfg, ok := got["config"].(map[string]any)
	if !ok || cfg["model"] != "nova" {
		t.Fatalf("nested payload lost: %v", got)
	}
}

func TestSQLiteLegacyFallback(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLite(t)
	if err := s.Save(ctx, "agent_1", map[string]any{"scope": "legacy"}, ""); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "agent_1", "org_9")
	if err != nil || got["scope"] != "legacy" {
		t.Fatalf("expected legacy fallback, got %v, %v", got, err)
	}
	if err := s.Save(ctx, "agent_1", map[string]any{"scope": "org"}, "org_9"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Load(ctx, "agent_1", "org_9")
	if got["scope"] != "org" {
		t.Fatalf("expected org record after org write, got %v", got)
	}
	got, _ = s.Load(ctx, "agent_1", "")
	if got["scope"] != "legacy" {
		t.Fatalf("legacy record overwritten by org write: %v", got)
	}
}

func TestSQLiteCreatedAtPreserved(t *testing.T) {
	ctx := context.Background()
	s, conn := newSQLite(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }
	if err := s.Save(ctx, "k", map[string]any{"v": 1}, "org_1"); err != nil {
		t.Fatal(err)
	}
	s.Now = func() time.Time { return base.Add(time.Hour) }
	if err := s.Save(ctx, "k", map[string]any{"v": 2}, "org_1"); err != nil {
		t.Fatal(err)
	}
	var createdAt, updatedAt string
	err := conn.QueryRowContext(ctx, `SELECT created_at, updated_at FROM records WHERE key='k' AND org_id='org_1'`).
		Scan(&createdAt, &updatedAt)
	if err != nil {
		t.Fatalf("query record: %v", err)
	}
	if createdAt != base.Format(time.RFC3339) {
		t.Fatalf("created_at not preserved: %s", createdAt)
	}
	if updatedAt != base.Add(time.Hour).Format(time.RFC3339) {
		t.Fatalf("updated_at not bumped: %s", updatedAt)
	}
}

func TestSQLiteDeleteIsScopeExact(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLite(t)
	_ = s.Save(ctx, "k", map[string]any{"scope": "legacy"}, "")
	_ = s.Save(ctx, "k", map[string]any{"scope": "org"}, "org_1")
	if err := s.Delete(ctx, "k", "org_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(ctx, "k", ""); err != nil {
		t.Fatalf("legacy record should survive org delete: %v", err)
	}
	if err := s.Delete(ctx, "missing", "org_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteAuditEvents(t *testing.T) {
	ctx := context.Background()
	s, conn := newSQLite(t)
	_ = s.Save(ctx, "k", map[string]any{"v": 1}, "org_1")
	_ = s.Save(ctx, "k", map[string]any{"v": 2}, "org_1")
	_ = s.Delete(ctx, "k", "org_1")
	var saved, deleted int
	if err := conn.QueryRowContext(ctx, `SELECT count(*) FROM events WHERE type='record.saved'`).Scan(&saved); err != nil {
		t.Fatal(err)
	}
	if err := conn.QueryRowContext(ctx, `SELECT count(*) FROM events WHERE type='record.deleted'`).Scan(&deleted); err != nil {
		t.Fatal(err)
	}
	if saved != 2 || deleted != 1 {
		t.Fatalf("expected 2 save and 1 delete events, got %d/%d", saved, deleted)
	}
}
