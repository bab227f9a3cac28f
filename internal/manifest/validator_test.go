package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/garagehub/shopload/internal/domain"
)

// memFileSet holds file contents in memory.
type memFileSet struct {
	files map[string]string
}

func (m memFileSet) Open(name string) (io.ReadCloser, error) {
	content, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("failed to open %s: not found", name)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m memFileSet) Exists(name string) (bool, error) {
	_, ok := m.files[name]
	return ok, nil
}

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// completeManifest declares all seven files with matching in-memory content.
func completeManifest(rows int) (domain.Manifest, memFileSet) {
	m := domain.Manifest{LoadID: "load-1"}
	files := memFileSet{files: make(map[string]string)}
	for _, t := range domain.AllEntityTypes() {
		content := "header\nrow\n"
		m.Files = append(m.Files, domain.ManifestEntry{
			Name:   t.FileName(),
			Rows:   rows,
			SHA256: sha256Hex(content),
		})
		if rows > 0 {
			files.files[t.FileName()] = content
		}
	}
	return m, files
}

func TestValidateCompleteManifest(t *testing.T) {
	m, files := completeManifest(1)

	plans, err := NewValidator(true).Validate(m, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans) != len(domain.AllEntityTypes()) {
		t.Fatalf("expected %d plans, got %d", len(domain.AllEntityTypes()), len(plans))
	}
	for _, plan := range plans {
		if plan.Skip() || !plan.Present || plan.DeclaredRows != 1 {
			t.Fatalf("unexpected plan: %+v", plan)
		}
	}
}

func TestValidateMissingManifestEntry(t *testing.T) {
	m, files := completeManifest(1)
	m.Files = m.Files[1:] // drop customers.csv

	_, err := NewValidator(true).Validate(m, files)
	if !errors.Is(err, domain.ErrManifestIncomplete) {
		t.Fatalf("expected ErrManifestIncomplete, got %v", err)
	}
}

func TestValidateNegativeRowCount(t *testing.T) {
	m, files := completeManifest(1)
	m.Files[0].Rows = -1

	_, err := NewValidator(true).Validate(m, files)
	if !errors.Is(err, domain.ErrManifestIncomplete) {
		t.Fatalf("expected ErrManifestIncomplete, got %v", err)
	}
}

func TestValidateDeclaredFileMissing(t *testing.T) {
	m, files := completeManifest(1)
	delete(files.files, domain.EntityVehicle.FileName())

	_, err := NewValidator(true).Validate(m, files)
	if !errors.Is(err, domain.ErrManifestIncomplete) {
		t.Fatalf("expected ErrManifestIncomplete, got %v", err)
	}
}

func TestValidateZeroRowsSkipsEntity(t *testing.T) {
	// Zero declared rows is a deliberate "nothing to import", even when the
	// file itself was not delivered.
	m, files := completeManifest(0)

	plans, err := NewValidator(true).Validate(m, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, plan := range plans {
		if !plan.Skip() {
			t.Fatalf("expected skip for %s: %+v", plan.EntityType, plan)
		}
	}
}

func TestValidateChecksumMismatch(t *testing.T) {
	m, files := completeManifest(1)
	m.Files[0].SHA256 = sha256Hex("something else entirely")

	_, err := NewValidator(true).Validate(m, files)
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestValidateMissingDeclaredChecksum(t *testing.T) {
	m, files := completeManifest(1)
	m.Files[0].SHA256 = ""

	_, err := NewValidator(true).Validate(m, files)
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestValidateChecksumVerificationDisabled(t *testing.T) {
	m, files := completeManifest(1)
	m.Files[0].SHA256 = "not-a-real-digest"

	if _, err := NewValidator(false).Validate(m, files); err != nil {
		t.Fatalf("verification disabled, expected success: %v", err)
	}
}
