package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestIncomplete is returned when one of the seven expected file
	// names is missing from the manifest or the storage location.
	ErrManifestIncomplete = errors.New("manifest incomplete")

	// ErrChecksumMismatch is returned when a file's computed checksum
	// disagrees with the manifest's declared value.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrLoadNotFound is returned when no Load exists for a key.
	ErrLoadNotFound = errors.New("load not found")

	// ErrCrosswalkConflict is returned when a crosswalk insert loses a race
	// with a concurrent writer mapping the same external id. Retrying the
	// batch resolves the winner's production id through the lookup path.
	ErrCrosswalkConflict = errors.New("crosswalk entry already exists")
)

// StagingError reports that one entity type's file could not be staged.
// Sibling entity types are unaffected, but the dependency chain downstream of
// the failed type cannot safely proceed.
type StagingError struct {
	EntityType EntityType
	Err        error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.EntityType, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }
