package domain

// ManifestEntry describes one file in the load manifest. Rows of zero is a
// valid value meaning "present but intentionally empty".
type ManifestEntry struct {
	Name   string `json:"name"`
	Rows   int    `json:"rows"`
	SHA256 string `json:"sha256"`
}

// Manifest is the manifest.json document dropped alongside the seven files.
type Manifest struct {
	LoadID string          `json:"load_id"`
	Files  []ManifestEntry `json:"files"`
}

// Entry returns the manifest entry for a file name.
func (m Manifest) Entry(name string) (ManifestEntry, bool) {
	for _, f := range m.Files {
		if f.Name == name {
			return f, true
		}
	}
	return ManifestEntry{}, false
}

// FilePlan is the validator's verdict for one entity type: how many rows the
// manifest declares and whether the file is present at the storage location.
type FilePlan struct {
	EntityType   EntityType `json:"entity_type"`
	FileName     string     `json:"file_name"`
	DeclaredRows int        `json:"declared_rows"`
	Present      bool       `json:"present"`
}

// Skip reports whether staging should be skipped for this entity type.
func (p FilePlan) Skip() bool {
	return p.DeclaredRows == 0
}
