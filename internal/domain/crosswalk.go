package domain

import (
	"time"

	"github.com/google/uuid"
)

// CrosswalkEntry maps an external source identifier, scoped to partner+shop,
// to the internal production identifier for one entity type. The unique
// constraint on (partner_id, shop_id, entity_type, external_id) is the
// idempotency mechanism: the same external id always resolves to the same
// production row.
type CrosswalkEntry struct {
	PartnerID    string     `json:"partner_id"`
	ShopID       string     `json:"shop_id"`
	EntityType   EntityType `json:"entity_type"`
	ExternalID   string     `json:"external_id"`
	ProductionID uuid.UUID  `json:"production_id"`
	CreatedAt    time.Time  `json:"created_at"`
}
