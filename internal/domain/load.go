package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoadStatus tracks a load through the pipeline. completed is the only
// status a rerun cannot move away from.
type LoadStatus string

const (
	LoadStatusPending                 LoadStatus = "pending"
	LoadStatusStaging                 LoadStatus = "staging"
	LoadStatusUpserting               LoadStatus = "upserting"
	LoadStatusCompleted               LoadStatus = "completed"
	LoadStatusCompletedWithExceptions LoadStatus = "completed_with_exceptions"
	LoadStatusFailed                  LoadStatus = "failed"
)

// Terminal reports whether the status ends a pipeline run.
func (s LoadStatus) Terminal() bool {
	switch s {
	case LoadStatusCompleted, LoadStatusCompletedWithExceptions, LoadStatusFailed:
		return true
	}
	return false
}

// LoadKey identifies one ingestion attempt. The same triple invoked again is
// a rerun of the same Load, never a second Load.
type LoadKey struct {
	PartnerID string `json:"partner_id"`
	ShopID    string `json:"shop_id"`
	LoadID    string `json:"load_id"`
}

// Load is one ingestion attempt for a partner/shop/load_id triple.
type Load struct {
	ID         uuid.UUID  `json:"id"`
	Key        LoadKey    `json:"key"`
	Status     LoadStatus `json:"status"`
	ReceivedAt time.Time  `json:"received_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewLoad creates a pending Load for a first run of the given key.
func NewLoad(key LoadKey) Load {
	return Load{
		ID:         uuid.New(),
		Key:        key,
		Status:     LoadStatusPending,
		ReceivedAt: time.Now().UTC(),
	}
}
