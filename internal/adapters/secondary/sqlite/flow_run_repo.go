package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"model-retrain-service/internal/core/domain"
	"model-retrain-service/internal/core/ports/output"

	_ "modernc.org/sqlite"
)

const createFlowRunTable = `
CREATE TABLE IF NOT EXISTS flow_run (
    id                 TEXT PRIMARY KEY,
    flow_name          TEXT NOT NULL,
    experiment         TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL,
    eval_mae           REAL,
    train_mae          REAL,
    production_version INTEGER,
    error              TEXT NOT NULL DEFAULT '',
    started_at         DATETIME NOT NULL,
    finished_at        DATETIME
)`

const selectColumns = `id, flow_name, experiment, status, eval_mae, train_mae,
	production_version, error, started_at, finished_at`

var _ ports.FlowRunRepository = (*FlowRunRepository)(nil)

// FlowRunRepository keeps run history in a local SQLite file.
type FlowRunRepository struct {
	db *sql.DB
}

// Open opens the database at dbPath and creates the flow_run table if needed.
func Open(dbPath string) (*FlowRunRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createFlowRunTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create flow_run table: %w", err)
	}

	return &FlowRunRepository{db: db}, nil
}

func (r *FlowRunRepository) Close() error {
	return r.db.Close()
}

func (r *FlowRunRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *FlowRunRepository) Create(ctx context.Context, run *domain.FlowRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flow_run (
			id, flow_name, experiment, status, eval_mae, train_mae,
			production_version, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.FlowName, run.Experiment, string(run.Status),
		run.EvalMAE, run.TrainMAE, run.ProductionVersion,
		run.Error, run.StartedAt.UTC(), utc(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert flow run: %w", err)
	}
	return nil
}

func (r *FlowRunRepository) Update(ctx context.Context, run *domain.FlowRun) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE flow_run
		SET status = ?, eval_mae = ?, train_mae = ?, production_version = ?,
			error = ?, finished_at = ?
		WHERE id = ?`,
		string(run.Status), run.EvalMAE, run.TrainMAE, run.ProductionVersion,
		run.Error, utc(run.FinishedAt), run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update flow run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrFlowRunNotFound
	}
	return nil
}

func (r *FlowRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	run, err := scanFlowRun(r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM flow_run WHERE id = ?`, id.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFlowRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow run: %w", err)
	}
	return run, nil
}

// List returns runs newest first along with the total matching the filter.
func (r *FlowRunRepository) List(ctx context.Context, filter ports.FlowRunListFilter) ([]*domain.FlowRun, int, error) {
	conditions := []string{}
	args := []interface{}{}
	if filter.FlowName != "" {
		conditions = append(conditions, "flow_name = ?")
		args = append(args, filter.FlowName)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM flow_run WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count flow runs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM flow_run WHERE `+whereClause+`
		ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list flow runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.FlowRun{}
	for rows.Next() {
		run, err := scanFlowRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan flow run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate flow runs: %w", err)
	}

	return runs, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFlowRun(row scanner) (*domain.FlowRun, error) {
	var run domain.FlowRun
	var id, status string
	err := row.Scan(
		&id, &run.FlowName, &run.Experiment, &status,
		&run.EvalMAE, &run.TrainMAE, &run.ProductionVersion,
		&run.Error, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse flow run id: %w", err)
	}
	run.Status = domain.FlowRunStatus(status)
	return &run, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
