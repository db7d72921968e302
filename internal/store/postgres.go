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

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetroute/internal/bench"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
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
// is idempotent, so reapplying is safe.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

const runColumns = `id::text, COALESCE(name,''), instance, algorithm, status, seed, routes, distance, duration_ms, metrics, COALESCE(error,''), created_at, finished_at`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	routes, metrics, err := encodeRun(run)
	if err != nil {
		return model.Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, name, instance, algorithm, status, seed, routes, distance, duration_ms, metrics, error, created_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10::jsonb,$11,$12,$13)`,
		run.ID, nullIfEmpty(run.Name), run.Instance, run.Algorithm, string(run.Status), run.Seed,
		routes, run.Distance, run.DurationMs, metrics, nullIfEmpty(run.Error), run.CreatedAt, run.FinishedAt)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	routes, metrics, err := encodeRun(run)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, seed=$3, routes=$4::jsonb, distance=$5, duration_ms=$6, metrics=$7::jsonb, error=$8, finished_at=$9 WHERE id=$1`,
		run.ID, string(run.Status), run.Seed, routes, run.Distance, run.DurationMs, metrics, nullIfEmpty(run.Error), run.FinishedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id::text=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
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
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) SaveBenchmark(ctx context.Context, records []bench.Record) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range records {
		routes, err := json.Marshal(r.Routes)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO bench_records (id, sweep_id, instance, algorithm, run, seed, distance, duration_ns, routes, error, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10,$11)
            ON CONFLICT (id) DO NOTHING`,
			r.ID, r.SweepID, r.Instance, r.Algorithm, r.Run, r.Seed, r.Distance, int64(r.Duration), string(routes), nullIfEmpty(r.Error), r.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListBenchmark(ctx context.Context, sweepID string) ([]bench.Record, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, sweep_id::text, instance, algorithm, run, seed, distance, duration_ns, routes, COALESCE(error,''), created_at
        FROM bench_records WHERE sweep_id::text=$1 ORDER BY instance, algorithm, run`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []bench.Record{}
	for rows.Next() {
		var (
			r      bench.Record
			dist   sql.NullFloat64
			durNs  int64
			routes []byte
		)
		if err := rows.Scan(&r.ID, &r.SweepID, &r.Instance, &r.Algorithm, &r.Run, &r.Seed, &dist, &durNs, &routes, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Distance = floatPtr(dist)
		r.Duration = time.Duration(durNs)
		if len(routes) > 0 {
			if err := json.Unmarshal(routes, &r.Routes); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var (
		r               model.Run
		status          string
		routes, metrics []byte
		dist            sql.NullFloat64
		finished        sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Instance, &r.Algorithm, &status, &r.Seed, &routes, &dist, &r.DurationMs, &metrics, &r.Error, &r.CreatedAt, &finished); err != nil {
		return model.Run{}, err
	}
	r.Status = model.RunStatus(status)
	r.Distance = floatPtr(dist)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if len(routes) > 0 {
		if err := json.Unmarshal(routes, &r.Routes); err != nil {
			return model.Run{}, err
		}
	}
	if len(metrics) > 0 {
		var m opt.Metrics
		if err := json.Unmarshal(metrics, &m); err != nil {
			return model.Run{}, err
		}
		r.Metrics = &m
	}
	return r, nil
}

// encodeRun renders the jsonb columns; nil values stay SQL NULL.
func encodeRun(run model.Run) (routes, metrics any, err error) {
	if run.Routes != nil {
		b, err := json.Marshal(run.Routes)
		if err != nil {
			return nil, nil, err
		}
		routes = string(b)
	}
	if run.Metrics != nil {
		b, err := json.Marshal(run.Metrics)
		if err != nil {
			return nil, nil, err
		}
		metrics = string(b)
	}
	return routes, metrics, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
