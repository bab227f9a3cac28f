package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type exceptionRepository struct {
	pool *pgxpool.Pool
}

// NewExceptionRepository wires a repository backed by pgxpool. Records are
// written on the pool rather than a batch transaction so they survive a
// rolled-back savepoint.
func NewExceptionRepository(pool *pgxpool.Pool) ExceptionRepository {
	return &exceptionRepository{pool: pool}
}

func (r *exceptionRepository) Record(ctx context.Context, rec domain.ExceptionRecord) error {
	var raw []byte
	if rec.RawValues != nil {
		encoded, err := json.Marshal(rec.RawValues)
		if err != nil {
			return fmt.Errorf("failed to encode exception raw values: %w", err)
		}
		raw = encoded
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO load_exceptions (
			id, load_id, entity_type, line_number, external_id, reason, detail, raw_values
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.LoadID, rec.EntityType, rec.LineNumber,
		rec.ExternalID, rec.Reason, rec.Detail, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to record exception: %w", err)
	}
	return nil
}

func (r *exceptionRepository) ListByLoad(ctx context.Context, loadID uuid.UUID) ([]domain.ExceptionRecord, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, load_id, entity_type, line_number, external_id, reason, detail, raw_values, created_at
		 FROM load_exceptions
		 WHERE load_id = $1
		 ORDER BY entity_type, line_number`,
		loadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	defer rows.Close()

	records := []domain.ExceptionRecord{}
	for rows.Next() {
		var (
			rec domain.ExceptionRecord
			raw []byte
		)
		if scanErr := rows.Scan(
			&rec.ID,
			&rec.LoadID,
			&rec.EntityType,
			&rec.LineNumber,
			&rec.ExternalID,
			&rec.Reason,
			&rec.Detail,
			&raw,
			&rec.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", scanErr)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.RawValues); err != nil {
				return nil, fmt.Errorf("failed to decode exception raw values: %w", err)
			}
		}
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate exceptions: %w", rowsErr)
	}
	return records, nil
}
