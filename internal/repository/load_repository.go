package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type loadRepository struct {
	pool *pgxpool.Pool
}

// NewLoadRepository wires a repository backed by pgxpool.
func NewLoadRepository(pool *pgxpool.Pool) LoadRepository {
	return &loadRepository{pool: pool}
}

func (r *loadRepository) Create(ctx context.Context, load domain.Load) (domain.Load, error) {
	tag, err := r.pool.Exec(
		ctx,
		`INSERT INTO loads (id, partner_id, shop_id, load_id, status, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (partner_id, shop_id, load_id) DO NOTHING`,
		load.ID,
		load.Key.PartnerID,
		load.Key.ShopID,
		load.Key.LoadID,
		load.Status,
		load.ReceivedAt,
	)
	if err != nil {
		return domain.Load{}, fmt.Errorf("failed to create load: %w", err)
	}
	// A concurrent first invocation for the same triple may have created the
	// record between the caller's lookup and this insert. The surviving row
	// is the Load; both invocations continue against it.
	if tag.RowsAffected() == 0 {
		return r.GetByKey(ctx, load.Key)
	}
	return load, nil
}

func (r *loadRepository) GetByKey(ctx context.Context, key domain.LoadKey) (domain.Load, error) {
	var (
		load       domain.Load
		status     string
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(
		ctx,
		`SELECT id, partner_id, shop_id, load_id, status, received_at, started_at, finished_at
		 FROM loads
		 WHERE partner_id = $1 AND shop_id = $2 AND load_id = $3`,
		key.PartnerID, key.ShopID, key.LoadID,
	).Scan(
		&load.ID,
		&load.Key.PartnerID,
		&load.Key.ShopID,
		&load.Key.LoadID,
		&status,
		&load.ReceivedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Load{}, domain.ErrLoadNotFound
		}
		return domain.Load{}, fmt.Errorf("failed to get load: %w", err)
	}

	load.Status = domain.LoadStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		load.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		load.FinishedAt = &t
	}
	return load, nil
}

func (r *loadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoadStatus) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE loads SET status = $2, started_at = COALESCE(started_at, NOW()), finished_at = NULL
		 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update load status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoadNotFound
	}
	return nil
}

func (r *loadRepository) Finish(ctx context.Context, id uuid.UUID, status domain.LoadStatus) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE loads SET status = $2, finished_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to finish load: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoadNotFound
	}
	return nil
}
