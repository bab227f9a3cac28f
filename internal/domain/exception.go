package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReasonCode classifies why a staged row failed to apply.
type ReasonCode string

const (
	// ReasonUnresolvedParent: the row names a parent external id that the
	// crosswalk cannot resolve for this partner+shop, or that was itself
	// excepted earlier in this load.
	ReasonUnresolvedParent ReasonCode = "unresolved_parent"
	// ReasonUnresolvedSelfParent: a line item references a parent line item
	// that is not part of the same load.
	ReasonUnresolvedSelfParent ReasonCode = "unresolved_self_parent"
	// ReasonValidationFailed: a required field is missing, a value would not
	// coerce to its target type, or the row could not be written.
	ReasonValidationFailed ReasonCode = "validation_failed"
)

// ExceptionRecord is the durable record of one row's failure to apply. Never
// mutated; absence of an exception for a row is the signal of success.
type ExceptionRecord struct {
	ID         uuid.UUID         `json:"id"`
	LoadID     uuid.UUID         `json:"load_id"`
	EntityType EntityType        `json:"entity_type"`
	LineNumber int               `json:"line_number"`
	ExternalID string            `json:"external_id,omitempty"`
	Reason     ReasonCode        `json:"reason"`
	Detail     string            `json:"detail"`
	RawValues  map[string]string `json:"raw_values,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
