package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/garagehub/shopload/internal/domain"
	"github.com/garagehub/shopload/internal/storage"
)

// Validator checks a load manifest against the files actually delivered and
// produces one FilePlan per entity type.
type Validator struct {
	verifyChecksums bool
}

// NewValidator creates a manifest validator. When verifyChecksums is false
// the checksum interface still runs but verification is a no-op.
func NewValidator(verifyChecksums bool) *Validator {
	return &Validator{verifyChecksums: verifyChecksums}
}

// Validate returns the per-entity-type file plans for a load.
//
// Every one of the seven expected file names must appear in the manifest;
// a missing entry fails the whole load with ErrManifestIncomplete. A declared
// row count of zero is a valid plan meaning "entity intentionally not
// imported". Files with declared rows must also be present at the storage
// location and, when verification is enabled, match their declared sha256.
func (v *Validator) Validate(m domain.Manifest, files storage.FileSet) ([]domain.FilePlan, error) {
	plans := make([]domain.FilePlan, 0, len(domain.AllEntityTypes()))

	for _, entityType := range domain.AllEntityTypes() {
		fileName := entityType.FileName()

		entry, ok := m.Entry(fileName)
		if !ok {
			return nil, fmt.Errorf("%w: %s not declared", domain.ErrManifestIncomplete, fileName)
		}
		if entry.Rows < 0 {
			return nil, fmt.Errorf("%w: %s declares negative row count %d", domain.ErrManifestIncomplete, fileName, entry.Rows)
		}

		present, err := files.Exists(fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", fileName, err)
		}
		if !present && entry.Rows > 0 {
			return nil, fmt.Errorf("%w: %s declared with %d rows but missing", domain.ErrManifestIncomplete, fileName, entry.Rows)
		}

		if present && entry.Rows > 0 {
			if err := v.verifyChecksum(files, fileName, entry.SHA256); err != nil {
				return nil, err
			}
		}

		if entry.Rows == 0 {
			log.Printf("[MANIFEST] %s: 0 rows declared, entity will be skipped", fileName)
		} else {
			log.Printf("[MANIFEST] %s: %d rows declared", fileName, entry.Rows)
		}

		plans = append(plans, domain.FilePlan{
			EntityType:   entityType,
			FileName:     fileName,
			DeclaredRows: entry.Rows,
			Present:      present,
		})
	}

	return plans, nil
}

func (v *Validator) verifyChecksum(files storage.FileSet, fileName, declared string) error {
	if !v.verifyChecksums {
		return nil
	}
	if strings.TrimSpace(declared) == "" {
		return fmt.Errorf("%w: %s has no declared sha256", domain.ErrChecksumMismatch, fileName)
	}

	rc, err := files.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open %s for checksum: %w", fileName, err)
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return fmt.Errorf("failed to hash %s: %w", fileName, err)
	}

	computed := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(computed, strings.TrimSpace(declared)) {
		return fmt.Errorf("%w: %s declared %s, computed %s", domain.ErrChecksumMismatch, fileName, declared, computed)
	}
	return nil
}
