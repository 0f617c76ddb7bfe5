package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"model-retrain-service/internal/core/domain"
	"model-retrain-service/internal/core/ports/output"
)

const schema = `
	CREATE TABLE IF NOT EXISTS flow_run (
		id                 UUID PRIMARY KEY,
		flow_name          TEXT NOT NULL,
		experiment         TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL,
		eval_mae           DOUBLE PRECISION,
		train_mae          DOUBLE PRECISION,
		production_version INTEGER,
		error              TEXT NOT NULL DEFAULT '',
		started_at         TIMESTAMPTZ NOT NULL,
		finished_at        TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS flow_run_started_at_idx ON flow_run (started_at DESC);
`

const selectColumns = `
	id, flow_name, experiment, status, eval_mae, train_mae,
	production_version, error, started_at, finished_at
`

// querier is the part of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type flowRunRepo struct {
	db querier
}

func NewFlowRunRepository(pool *pgxpool.Pool) ports.FlowRunRepository {
	return &flowRunRepo{db: pool}
}

// Migrate creates the flow_run table when it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate flow_run: %w", err)
	}
	return nil
}

func (r *flowRunRepo) Create(ctx context.Context, run *domain.FlowRun) error {
	query := `
		INSERT INTO flow_run
			(id, flow_name, experiment, status, eval_mae, train_mae,
			 production_version, error, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := r.db.Exec(ctx, query,
		run.ID, run.FlowName, run.Experiment, string(run.Status),
		run.EvalMAE, run.TrainMAE, run.ProductionVersion,
		run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("create flow run: %w", err)
	}
	return nil
}

func (r *flowRunRepo) Update(ctx context.Context, run *domain.FlowRun) error {
	query := `
		UPDATE flow_run
		SET status=$1, eval_mae=$2, train_mae=$3, production_version=$4,
			error=$5, finished_at=$6
		WHERE id=$7
	`
	result, err := r.db.Exec(ctx, query,
		string(run.Status), run.EvalMAE, run.TrainMAE, run.ProductionVersion,
		run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update flow run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrFlowRunNotFound
	}
	return nil
}

func (r *flowRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	query := `SELECT ` + selectColumns + ` FROM flow_run WHERE id = $1`

	run, err := scanFlowRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlowRunNotFound
		}
		return nil, fmt.Errorf("get flow run by id: %w", err)
	}
	return run, nil
}

func (r *flowRunRepo) List(ctx context.Context, filter ports.FlowRunListFilter) ([]*domain.FlowRun, int, error) {
	whereClause, args := listWhere(filter)
	argPos := len(args) + 1

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM flow_run WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count flow runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM flow_run
		WHERE %s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d
	`, selectColumns, whereClause, argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list flow runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.FlowRun{}
	for rows.Next() {
		run, err := scanFlowRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan flow run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate flow run rows: %w", err)
	}

	return runs, total, nil
}

// listWhere builds the WHERE clause and its positional args for a filter.
func listWhere(filter ports.FlowRunListFilter) (string, []any) {
	conditions := []string{}
	args := []any{}
	argPos := 1

	if filter.FlowName != "" {
		conditions = append(conditions, fmt.Sprintf("flow_name = $%d", argPos))
		args = append(args, filter.FlowName)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
	}

	if len(conditions) == 0 {
		return "1=1", args
	}
	return strings.Join(conditions, " AND "), args
}

func scanFlowRun(row pgx.Row) (*domain.FlowRun, error) {
	var run domain.FlowRun
	var status string
	err := row.Scan(
		&run.ID, &run.FlowName, &run.Experiment, &status,
		&run.EvalMAE, &run.TrainMAE, &run.ProductionVersion,
		&run.Error, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = domain.FlowRunStatus(status)
	return &run, nil
}
