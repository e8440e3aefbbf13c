package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO runs (id, kind, scenario, status, created_at, finished_at, initial_cost, best_cost, error, result, metrics)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		run.ID, run.Kind, run.Scenario, run.Status, run.CreatedAt, run.FinishedAt, run.InitialCost, run.BestCost, nullIfEmpty(run.Error), rawJSON(run.Result), rawJSON(run.Metrics))
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run Run) error {
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, finished_at=$3, initial_cost=$4, best_cost=$5, error=$6, result=$7, metrics=$8 WHERE id=$1`,
		run.ID, run.Status, run.FinishedAt, run.InitialCost, run.BestCost, nullIfEmpty(run.Error), rawJSON(run.Result), rawJSON(run.Metrics))
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id::text, kind, scenario, status, created_at, finished_at, initial_cost, best_cost, error, result, metrics`

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var finished sql.NullTime
	var errText sql.NullString
	var result, metrics []byte
	if err := row.Scan(&r.ID, &r.Kind, &r.Scenario, &r.Status, &r.CreatedAt, &finished, &r.InitialCost, &r.BestCost, &errText, &result, &metrics); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	r.Error = errText.String
	if len(result) > 0 {
		r.Result = json.RawMessage(result)
	}
	if len(metrics) > 0 {
		r.Metrics = json.RawMessage(metrics)
	}
	return r, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Run{}, ErrNotFound
	}
	r, err := scanRun(p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// ListRuns pages by insertion sequence; the cursor is the last id returned.
func (p *Postgres) ListRuns(ctx context.Context, kind, cursor string, limit int) ([]Run, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + runColumns + ` FROM runs WHERE ($1 = '' OR kind = $1)`
	args := []any{kind}
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, "", fmt.Errorf("list runs: cursor %q: %w", cursor, ErrBadCursor)
		}
		var seq int64
		err := p.db.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = $1`, cursor).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("list runs: cursor %q: %w", cursor, ErrBadCursor)
		}
		if err != nil {
			return nil, "", fmt.Errorf("list runs: %w", err)
		}
		q += ` AND seq > $2`
		args = append(args, seq)
	}
	q += fmt.Sprintf(` ORDER BY seq LIMIT %d`, limit+1)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) SaveSnapshots(ctx context.Context, runID string, snaps []Snapshot) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range snaps {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_snapshots (run_id, round, best_cost, anchor_cost) VALUES ($1,$2,$3,$4)
            ON CONFLICT (run_id, round) DO UPDATE SET best_cost=$3, anchor_cost=$4`, runID, s.Round, s.BestCost, s.AnchorCost)
		if err != nil {
			return fmt.Errorf("save snapshots: %w", err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT round, best_cost, anchor_cost FROM run_snapshots WHERE run_id=$1 ORDER BY round`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.Round, &s.BestCost, &s.AnchorCost); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// rawJSON passes documents to jsonb columns as text; empty becomes NULL.
func rawJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
