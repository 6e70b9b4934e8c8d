package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pdptw/internal/model"
)

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

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every *.sql file in dir in lexical order.
// Migrations are written to be idempotent.
func (p *Postgres) MigrateDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

const runColumns = `id, instance, status, algorithms, search, created_at, finished_at, objective, vehicles_used,
	unassigned, iterations, duration_ms, routes, COALESCE(error,''), COALESCE(callback_url,''), COALESCE(callback_secret,'')`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) error {
	algs, search, unassigned, routes, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, instance, status, algorithms, search, created_at, finished_at, objective, vehicles_used,
		unassigned, iterations, duration_ms, routes, error, callback_url, callback_secret)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		run.ID, run.Instance, run.Status, algs, search, run.CreatedAt, nullIfEmpty(run.FinishedAt), run.Objective, run.VehiclesUsed,
		unassigned, run.Iterations, run.DurationMs, routes, nullIfEmpty(run.Error), nullIfEmpty(run.CallbackURL), nullIfEmpty(run.CallbackSecret))
	return err
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR id > $2) ORDER BY id LIMIT $3`, status, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	var last string
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
		last = r.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	algs, search, unassigned, routes, err := encodeRun(run)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, algorithms=$3, search=$4, finished_at=$5, objective=$6, vehicles_used=$7,
		unassigned=$8, iterations=$9, duration_ms=$10, routes=$11, error=$12 WHERE id=$1`,
		run.ID, run.Status, algs, search, nullIfEmpty(run.FinishedAt), run.Objective, run.VehiclesUsed,
		unassigned, run.Iterations, run.DurationMs, routes, nullIfEmpty(run.Error))
	if err != nil {
		return err
	}
	return affected(res)
}

func (p *Postgres) DeleteRun(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM runs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (p *Postgres) AppendSnapshots(ctx context.Context, runID string, snaps []model.Snapshot) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range snaps {
		id := s.ID
		if id == "" {
			id = uuid.New().String()
		}
		if s.TS == "" {
			s.TS = time.Now().UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_snapshots (id, run_id, iteration, best_cost, current_cost, unassigned, ts)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`, id, runID, s.Iteration, s.BestCost, s.CurrentCost, s.Unassigned, s.TS); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id, iteration, best_cost, current_cost, unassigned, ts FROM run_snapshots
		WHERE run_id=$1 ORDER BY iteration, ts`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Snapshot{}
	for rows.Next() {
		s := model.Snapshot{RunID: runID}
		if err := rows.Scan(&s.ID, &s.Iteration, &s.BestCost, &s.CurrentCost, &s.Unassigned, &s.TS); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, run_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`, id, runID, eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, run_id, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.NextAttemptAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(),
			response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
		return err
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(time.Minute)
		nextAttemptAt = &t
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3,
		updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(),
		response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, runID, status string) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, run_id, event_type, url, status, attempts, next_attempt_at, COALESCE(last_error,''),
		COALESCE(response_code,0), COALESCE(latency_ms,0) FROM webhook_deliveries
		WHERE run_id=$1 AND ($2 = '' OR status = $2) ORDER BY created_at`, runID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var r model.Run
	var algs, search, unassigned, routes []byte
	var finished sql.NullString
	if err := s.Scan(&r.ID, &r.Instance, &r.Status, &algs, &search, &r.CreatedAt, &finished, &r.Objective, &r.VehiclesUsed,
		&unassigned, &r.Iterations, &r.DurationMs, &routes, &r.Error, &r.CallbackURL, &r.CallbackSecret); err != nil {
		return model.Run{}, err
	}
	r.FinishedAt = finished.String
	if err := decodeJSON(algs, &r.Algorithms); err != nil {
		return model.Run{}, err
	}
	if err := decodeJSON(search, &r.Search); err != nil {
		return model.Run{}, err
	}
	if err := decodeJSON(unassigned, &r.Unassigned); err != nil {
		return model.Run{}, err
	}
	if err := decodeJSON(routes, &r.Routes); err != nil {
		return model.Run{}, err
	}
	return r, nil
}

func encodeRun(r model.Run) (algs, search, unassigned, routes []byte, err error) {
	if algs, err = json.Marshal(r.Algorithms); err != nil {
		return
	}
	if search, err = json.Marshal(r.Search); err != nil {
		return
	}
	if unassigned, err = encodeNullable(r.Unassigned); err != nil {
		return
	}
	routes, err = encodeNullable(r.Routes)
	return
}

func encodeNullable[T any](v []T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
