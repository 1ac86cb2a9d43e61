package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lexfuse/lexfuse/pkg/models"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the backend registry and the generation audit log
// to a single SQLite file. The schema is created on open.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS backend_profile (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS doc_type (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS generation_trace (
		id TEXT PRIMARY KEY,
		doc_type TEXT NOT NULL,
		fusion_mode TEXT NOT NULL,
		backends TEXT NOT NULL,
		statuses TEXT,
		provenance TEXT,
		confidence REAL,
		duration_ms INTEGER,
		status TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trace_created_at ON generation_trace(created_at);
	CREATE INDEX IF NOT EXISTS idx_trace_doc_type ON generation_trace(doc_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// ── Profiles ─────────────────────────────────────────────────

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]models.BackendProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM backend_profile ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.BackendProfile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p models.BackendProfile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.BackendProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM backend_profile WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	var p models.BackendProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) PutProfile(ctx context.Context, p *models.BackendProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backend_profile (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		p.ID, string(data))
	return err
}

func (s *SQLiteStore) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backend_profile WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Document Types ───────────────────────────────────────────

func (s *SQLiteStore) ListDocTypes(ctx context.Context) ([]models.DocTypeConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM doc_type ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list doc types: %w", err)
	}
	defer rows.Close()

	var out []models.DocTypeConfig
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c models.DocTypeConfig
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("decode doc type: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetDocType(ctx context.Context, id string) (*models.DocTypeConfig, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM doc_type WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doc type: %w", err)
	}
	var c models.DocTypeConfig
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decode doc type: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) PutDocType(ctx context.Context, c *models.DocTypeConfig) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode doc type: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO doc_type (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		c.ID, string(data))
	return err
}

// ── Traces ───────────────────────────────────────────────────

func (s *SQLiteStore) CreateTrace(ctx context.Context, t *models.GenerationTrace) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_trace
		 (id, doc_type, fusion_mode, backends, statuses, provenance, confidence, duration_ms, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.DocType, string(t.Mode), strings.Join(t.BackendIDs, ","),
		t.Statuses, t.Provenance, t.Confidence, t.DurationMs, t.Status, t.Error,
		t.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTrace(ctx context.Context, id string) (*models.GenerationTrace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc_type, fusion_mode, backends, statuses, provenance, confidence, duration_ms, status, error, created_at
		 FROM generation_trace WHERE id = ?`, id)

	t, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *SQLiteStore) ListTraces(ctx context.Context, limit int) ([]models.GenerationTrace, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_type, fusion_mode, backends, statuses, provenance, confidence, duration_ms, status, error, created_at
		 FROM generation_trace ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []models.GenerationTrace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrace(r rowScanner) (*models.GenerationTrace, error) {
	var t models.GenerationTrace
	var mode, backends, createdAt string
	if err := r.Scan(&t.ID, &t.DocType, &mode, &backends, &t.Statuses,
		&t.Provenance, &t.Confidence, &t.DurationMs, &t.Status, &t.Error, &createdAt); err != nil {
		return nil, err
	}
	t.Mode = models.FusionMode(mode)
	if backends != "" {
		t.BackendIDs = strings.Split(backends, ",")
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		t.CreatedAt = ts
	}
	return &t, nil
}
