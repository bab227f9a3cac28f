package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/garagehub/shopload/internal/domain"
)

// ManifestFileName is the manifest document's name at the storage location.
const ManifestFileName = "manifest.json"

// FileSet abstracts the storage location a load was delivered to. The
// transfer mechanism itself (bucket events, SFTP drops) is an external
// collaborator; the loader only needs to open files by name.
type FileSet interface {
	// Open returns a reader for a named file.
	Open(name string) (io.ReadCloser, error)
	// Exists reports whether a named file is present.
	Exists(name string) (bool, error)
}

// LocalDir is a FileSet over a local directory.
type LocalDir struct {
	path string
}

// NewLocalDir returns a FileSet rooted at path.
func NewLocalDir(path string) *LocalDir {
	return &LocalDir{path: path}
}

func (d *LocalDir) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.path, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

func (d *LocalDir) Exists(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(d.path, filepath.Base(name)))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadManifest loads and decodes manifest.json from the file set.
func ReadManifest(files FileSet) (domain.Manifest, error) {
	var manifest domain.Manifest

	rc, err := files.Open(ManifestFileName)
	if err != nil {
		return manifest, fmt.Errorf("%w: %v", domain.ErrManifestIncomplete, err)
	}
	defer rc.Close()

	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return manifest, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return manifest, nil
}
