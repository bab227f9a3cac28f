package repository

import (
	"context"
	"fmt"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ledgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository wires a repository backed by pgxpool.
func NewLedgerRepository(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerRepository{pool: pool}
}

func (r *ledgerRepository) UpsertTally(ctx context.Context, loadID uuid.UUID, tally domain.EntityTally) error {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO load_tallies (
			load_id, entity_type, declared, staged, inserted, updated, excepted, status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (load_id, entity_type) DO UPDATE SET
			declared = EXCLUDED.declared,
			staged = EXCLUDED.staged,
			inserted = EXCLUDED.inserted,
			updated = EXCLUDED.updated,
			excepted = EXCLUDED.excepted,
			status = EXCLUDED.status,
			error = EXCLUDED.error`,
		loadID, tally.EntityType, tally.Declared, tally.Staged,
		tally.Inserted, tally.Updated, tally.Excepted, tally.Status, tally.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tally for %s: %w", tally.EntityType, err)
	}
	return nil
}

func (r *ledgerRepository) ListTallies(ctx context.Context, loadID uuid.UUID) ([]domain.EntityTally, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT entity_type, declared, staged, inserted, updated, excepted, status, error
		 FROM load_tallies
		 WHERE load_id = $1`,
		loadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tallies: %w", err)
	}
	defer rows.Close()

	tallies := []domain.EntityTally{}
	for rows.Next() {
		var tally domain.EntityTally
		if scanErr := rows.Scan(
			&tally.EntityType,
			&tally.Declared,
			&tally.Staged,
			&tally.Inserted,
			&tally.Updated,
			&tally.Excepted,
			&tally.Status,
			&tally.Error,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", scanErr)
		}
		tallies = append(tallies, tally)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate tallies: %w", rowsErr)
	}
	return tallies, nil
}

func (r *ledgerRepository) ClearTallies(ctx context.Context, loadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM load_tallies WHERE load_id = $1`, loadID)
	if err != nil {
		return fmt.Errorf("failed to clear tallies: %w", err)
	}
	return nil
}
