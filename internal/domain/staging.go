package domain

import (
	"time"

	"github.com/google/uuid"
)

// StagingRow is one raw source record: opaque string values keyed verbatim by
// the source column names, plus enough provenance to point a human back at
// the offending line. Rows are never mutated after creation.
type StagingRow struct {
	ID         int64             `json:"id"`
	LoadID     uuid.UUID         `json:"load_id"`
	EntityType EntityType        `json:"entity_type"`
	LineNumber int               `json:"line_number"`
	Values     map[string]string `json:"values"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Value returns the trimmed value of a column, empty if absent.
func (r StagingRow) Value(column string) string {
	return r.Values[column]
}
