package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityStatus is the per-entity-type outcome within one load.
type EntityStatus string

const (
	EntityStatusSkipped   EntityStatus = "skipped"
	EntityStatusCompleted EntityStatus = "completed"
	EntityStatusFailed    EntityStatus = "failed"
)

// EntityTally holds the audited counts for one entity type in one load.
type EntityTally struct {
	EntityType EntityType   `json:"entity_type"`
	Declared   int          `json:"declared"`
	Staged     int          `json:"staged"`
	Inserted   int          `json:"inserted"`
	Updated    int          `json:"updated"`
	Excepted   int          `json:"excepted"`
	Status     EntityStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
}

// Applied is the number of rows that reached production in this run.
func (t EntityTally) Applied() int {
	return t.Inserted + t.Updated
}

// LedgerRecord is the per-load audit record: one tally per entity type plus
// the overall status. Amended in place while the load is non-terminal,
// append-only once completed.
type LedgerRecord struct {
	LoadID     uuid.UUID     `json:"load_id"`
	Key        LoadKey       `json:"key"`
	Status     LoadStatus    `json:"status"`
	Tallies    []EntityTally `json:"tallies"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Tally returns the tally for an entity type, if recorded.
func (l LedgerRecord) Tally(t EntityType) (EntityTally, bool) {
	for _, tally := range l.Tallies {
		if tally.EntityType == t {
			return tally, true
		}
	}
	return EntityTally{}, false
}

// TotalExcepted sums exceptions across all entity types.
func (l LedgerRecord) TotalExcepted() int {
	n := 0
	for _, tally := range l.Tallies {
		n += tally.Excepted
	}
	return n
}
