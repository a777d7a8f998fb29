package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"promptbed/internal/events"
)

// SQLite is the durable Backend. Records live in the records table with
// org_id='' marking the legacy scope; created_at is set once on first write
// and preserved across updates. Each save and delete appends an audit event
// in the same transaction.
type SQLite struct {
	DB     *sql.DB
	Events events.Writer
	Now    func() time.Time
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{
		DB:     db,
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (s *SQLite) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SQLite) Save(ctx context.Context, key string, data map[string]any, orgID string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", key, err)
	}
	now := s.now().UTC().Format(time.RFC3339)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO records(key,org_id,data_json,created_at,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(key,org_id) DO UPDATE SET data_json=excluded.data_json, updated_at=excluded.updated_at`,
		key, orgID, string(payload), now, now); err != nil {
		return fmt.Errorf("save record %s: %w", key, err)
	}
	if err := s.Events.Append(ctx, tx, "record.saved", key, orgID, events.Payload{"bytes": len(payload)}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Load(ctx context.Context, key string, orgID string) (map[string]any, error) {
	payload, err := s.loadScoped(ctx, key, orgID)
	if err == sql.ErrNoRows && orgID != "" {
		// Fallback to the legacy/global record.
		payload, err = s.loadScoped(ctx, key, "")
	}
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", key, err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", key, err)
	}
	return data, nil
}

func (s *SQLite) loadScoped(ctx context.Context, key, orgID string) (string, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT data_json FROM records WHERE key=? AND org_id=?`, key, orgID).Scan(&payload)
	return payload, err
}

func (s *SQLite) Delete(ctx context.Context, key string, orgID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE key=? AND org_id=?`, key, orgID)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := s.Events.Append(ctx, tx, "record.deleted", key, orgID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
