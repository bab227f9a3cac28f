package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type stagingRepository struct {
	pool *pgxpool.Pool
}

// NewStagingRepository wires a repository backed by pgxpool.
func NewStagingRepository(pool *pgxpool.Pool) StagingRepository {
	return &stagingRepository{pool: pool}
}

func (r *stagingRepository) Count(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType) (int, error) {
	var count int
	err := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM staging_rows WHERE load_id = $1 AND entity_type = $2`,
		loadID, entityType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count staging rows: %w", err)
	}
	return count, nil
}

func (r *stagingRepository) Insert(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType, rows []domain.StagingRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		values, err := json.Marshal(row.Values)
		if err != nil {
			return 0, fmt.Errorf("failed to encode staging row %d: %w", row.LineNumber, err)
		}
		batch.Queue(
			`INSERT INTO staging_rows (load_id, entity_type, line_number, column_values)
			 VALUES ($1, $2, $3, $4)`,
			loadID, entityType, row.LineNumber, values,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range rows {
		if _, err := results.Exec(); err != nil {
			return inserted, fmt.Errorf("failed to insert staging rows: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func (r *stagingRepository) Delete(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType) error {
	_, err := r.pool.Exec(
		ctx,
		`DELETE FROM staging_rows WHERE load_id = $1 AND entity_type = $2`,
		loadID, entityType,
	)
	if err != nil {
		return fmt.Errorf("failed to delete staging rows: %w", err)
	}
	return nil
}

func (r *stagingRepository) List(ctx context.Context, loadID uuid.UUID, entityType domain.EntityType) ([]domain.StagingRow, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, load_id, entity_type, line_number, column_values, created_at
		 FROM staging_rows
		 WHERE load_id = $1 AND entity_type = $2
		 ORDER BY line_number`,
		loadID, entityType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list staging rows: %w", err)
	}
	defer rows.Close()

	staged := []domain.StagingRow{}
	for rows.Next() {
		var (
			row    domain.StagingRow
			values []byte
		)
		if scanErr := rows.Scan(
			&row.ID,
			&row.LoadID,
			&row.EntityType,
			&row.LineNumber,
			&values,
			&row.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan staging row: %w", scanErr)
		}
		if err := json.Unmarshal(values, &row.Values); err != nil {
			return nil, fmt.Errorf("failed to decode staging row %d: %w", row.LineNumber, err)
		}
		staged = append(staged, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate staging rows: %w", rowsErr)
	}
	return staged, nil
}

func (r *stagingRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(
		ctx,
		`DELETE FROM staging_rows WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge staging rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
