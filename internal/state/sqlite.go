package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lcterm/internal/judge"
)

// Fixed width so ORDER BY on the text column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Background fetches and the UI share one file; serialize writers.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS problem_snapshots (
			key TEXT PRIMARY KEY,
			total INTEGER NOT NULL DEFAULT 0,
			problems_json TEXT NOT NULL,
			fetched_ts TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scaffolds (
			id TEXT PRIMARY KEY,
			problem_id TEXT NOT NULL,
			slug TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL,
			path TEXT NOT NULL,
			created_ts TEXT NOT NULL,
			opened_ts TEXT NOT NULL,
			UNIQUE(problem_id, language)
		);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

type snapshotRow struct {
	ID         string   `json:"id"`
	Slug       string   `json:"slug"`
	Title      string   `json:"title"`
	Difficulty string   `json:"difficulty"`
	Status     string   `json:"status"`
	Tags       []string `json:"tags,omitempty"`
	PaidOnly   bool     `json:"paid_only,omitempty"`
	AcRate     float64  `json:"ac_rate"`
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, key string, page judge.ProblemPage) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	rows := make([]snapshotRow, 0, len(page.Problems))
	for _, p := range page.Problems {
		rows = append(rows, snapshotRow{
			ID:         p.ID,
			Slug:       p.Slug,
			Title:      p.Title,
			Difficulty: string(p.Difficulty),
			Status:     string(p.Status),
			Tags:       p.Tags,
			PaidOnly:   p.PaidOnly,
			AcRate:     p.AcRate,
		})
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO problem_snapshots(key, total, problems_json, fetched_ts)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			total = excluded.total,
			problems_json = excluded.problems_json,
			fetched_ts = excluded.fetched_ts
	`, key, page.Total, string(payload), s.now().UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, key string) (judge.ProblemPage, time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT total, problems_json, fetched_ts
		FROM problem_snapshots
		WHERE key = ?
	`, strings.TrimSpace(key))
	var (
		total   int
		payload string
		fetched string
	)
	if err := row.Scan(&total, &payload, &fetched); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return judge.ProblemPage{}, time.Time{}, false, nil
		}
		return judge.ProblemPage{}, time.Time{}, false, err
	}
	var rows []snapshotRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return judge.ProblemPage{}, time.Time{}, false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	page := judge.ProblemPage{Total: total, Problems: make([]judge.ProblemSummary, 0, len(rows))}
	for _, r := range rows {
		page.Problems = append(page.Problems, judge.ProblemSummary{
			ID:         r.ID,
			Slug:       r.Slug,
			Title:      r.Title,
			Difficulty: judge.Difficulty(r.Difficulty),
			Status:     judge.Status(r.Status),
			Tags:       r.Tags,
			PaidOnly:   r.PaidOnly,
			AcRate:     r.AcRate,
		})
	}
	at, _ := time.Parse(timeLayout, fetched)
	return page, at, true, nil
}

// RecordScaffold upserts the scaffold for (problem, language). Re-recording
// keeps the original id and creation time and bumps opened_ts.
func (s *SQLiteStore) RecordScaffold(ctx context.Context, rec ScaffoldRecord) (ScaffoldRecord, error) {
	if strings.TrimSpace(rec.ProblemID) == "" || strings.TrimSpace(rec.Language) == "" {
		return ScaffoldRecord{}, errors.New("scaffold record needs a problem id and language")
	}
	now := s.now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedTS.IsZero() {
		rec.CreatedTS = now
	}
	if rec.OpenedTS.IsZero() {
		rec.OpenedTS = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scaffolds(id, problem_id, slug, title, language, path, created_ts, opened_ts)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(problem_id, language) DO UPDATE SET
			slug = excluded.slug,
			title = excluded.title,
			path = excluded.path,
			opened_ts = excluded.opened_ts
	`,
		rec.ID,
		rec.ProblemID,
		rec.Slug,
		rec.Title,
		rec.Language,
		rec.Path,
		rec.CreatedTS.UTC().Format(timeLayout),
		rec.OpenedTS.UTC().Format(timeLayout),
	)
	if err != nil {
		return ScaffoldRecord{}, err
	}
	row := s.db.QueryRowContext(ctx, scaffoldSelect+` WHERE problem_id = ? AND language = ?`, rec.ProblemID, rec.Language)
	return scanScaffold(row)
}

func (s *SQLiteStore) LastScaffold(ctx context.Context) (*ScaffoldRecord, error) {
	row := s.db.QueryRowContext(ctx, scaffoldSelect+` ORDER BY opened_ts DESC LIMIT 1`)
	rec, err := scanScaffold(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) ScaffoldsFor(ctx context.Context, problemID string) ([]ScaffoldRecord, error) {
	rows, err := s.db.QueryContext(ctx, scaffoldSelect+` WHERE problem_id = ? ORDER BY language`, strings.TrimSpace(problemID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScaffoldRecord
	for rows.Next() {
		rec, err := scanScaffold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const scaffoldSelect = `SELECT id, problem_id, slug, title, language, path, created_ts, opened_ts FROM scaffolds`

type scanner interface {
	Scan(dest ...any) error
}

func scanScaffold(row scanner) (ScaffoldRecord, error) {
	var (
		rec             ScaffoldRecord
		created, opened string
	)
	if err := row.Scan(&rec.ID, &rec.ProblemID, &rec.Slug, &rec.Title, &rec.Language, &rec.Path, &created, &opened); err != nil {
		return ScaffoldRecord{}, err
	}
	if t, err := time.Parse(timeLayout, created); err == nil {
		rec.CreatedTS = t
	}
	if t, err := time.Parse(timeLayout, opened); err == nil {
		rec.OpenedTS = t
	}
	return rec, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for key, value := range values {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO app_settings(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, value); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
