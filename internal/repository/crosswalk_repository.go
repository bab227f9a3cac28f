package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type crosswalkRepository struct{}

// NewCrosswalkRepository wires a repository over the crosswalk table. All
// operations run on the caller's transaction so lookups and inserts commit
// with the production writes they support.
func NewCrosswalkRepository() CrosswalkRepository {
	return &crosswalkRepository{}
}

func (r *crosswalkRepository) Lookup(ctx context.Context, tx pgx.Tx, key domain.LoadKey, entityType domain.EntityType, externalID string) (uuid.UUID, bool, error) {
	var productionID uuid.UUID
	err := tx.QueryRow(
		ctx,
		`SELECT production_id FROM crosswalk
		 WHERE partner_id = $1 AND shop_id = $2 AND entity_type = $3 AND external_id = $4`,
		key.PartnerID, key.ShopID, entityType, externalID,
	).Scan(&productionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to look up crosswalk entry: %w", err)
	}
	return productionID, true, nil
}

func (r *crosswalkRepository) Insert(ctx context.Context, tx pgx.Tx, entry domain.CrosswalkEntry) error {
	tag, err := tx.Exec(
		ctx,
		`INSERT INTO crosswalk (partner_id, shop_id, entity_type, external_id, production_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (partner_id, shop_id, entity_type, external_id) DO NOTHING`,
		entry.PartnerID, entry.ShopID, entry.EntityType, entry.ExternalID, entry.ProductionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crosswalk entry: %w", err)
	}
	// The caller only inserts after a lookup miss, so an absorbed conflict
	// means a concurrent writer mapped this external id first. The production
	// write pending on this transaction carries the losing id and must not
	// commit; the retried batch resolves the winner through Lookup.
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrCrosswalkConflict, entry.EntityType, entry.ExternalID)
	}
	return nil
}
