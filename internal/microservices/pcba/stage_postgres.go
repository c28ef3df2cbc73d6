package pcba

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StageHistoryRepo appends every stage event to the stage_events table.
type StageHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewStageHistoryRepo(pool *pgxpool.Pool) *StageHistoryRepo {
	return &StageHistoryRepo{pool: pool}
}

const stageEventsDDL = `
CREATE TABLE IF NOT EXISTS stage_events (
	id          BIGSERIAL PRIMARY KEY,
	serial      TEXT        NOT NULL,
	stage       TEXT        NOT NULL,
	status      TEXT        NOT NULL,
	detail      JSONB,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stage_events_serial ON stage_events (serial, recorded_at DESC);
`

// EnsureSchema creates the history table when missing
func (r *StageHistoryRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, stageEventsDDL); err != nil {
		return fmt.Errorf("failed to create stage_events: %w", err)
	}
	return nil
}

var stageEventColumns = []string{"serial", "stage", "status", "detail", "recorded_at"}

// BatchInsert writes the batch with a single COPY
func (r *StageHistoryRepo) BatchInsert(ctx context.Context, batch []*StageRecord) error {
	if len(batch) == 0 {
		return nil
	}

	rows := pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
		rec := batch[i]
		var detail any
		if len(rec.Detail) > 0 {
			detail = rec.Detail
		}
		return []any{rec.Serial, rec.Stage, rec.Status, detail, rec.UpdatedAt}, nil
	})

	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"stage_events"}, stageEventColumns, rows)
	if err != nil {
		return fmt.Errorf("failed to copy stage events: %w", err)
	}
	if int(n) != len(batch) {
		return fmt.Errorf("copied %d of %d stage events", n, len(batch))
	}
	return nil
}

// Latest returns the newest recorded status of each stage of serial
func (r *StageHistoryRepo) Latest(ctx context.Context, serial string) ([]*StageRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (stage) serial, stage, status, detail, recorded_at
		FROM stage_events
		WHERE serial = $1
		ORDER BY stage, recorded_at DESC
	`, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage history: %w", err)
	}
	defer rows.Close()

	var records []*StageRecord
	for rows.Next() {
		var rec StageRecord
		if err := rows.Scan(&rec.Serial, &rec.Stage, &rec.Status, &rec.Detail, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage history: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
