package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StorageManifest is the subset of a storage-service manifest the browser reads.
type StorageManifest struct {
	Space       string `json:"space"`
	Version     int    `json:"version"`
	CreatedDate string `json:"createdDate"`

	Info struct {
		ExternalIdentifier string `json:"externalIdentifier"`
	} `json:"info"`

	Manifest    FileManifest `json:"manifest"`
	TagManifest FileManifest `json:"tagManifest"`

	Location struct {
		Bucket string `json:"bucket"`
		Path   string `json:"path"`
	} `json:"location"`
}

// FileManifest lists the files of a bag.
type FileManifest struct {
	Files []ManifestFile `json:"files"`
}

// ManifestFile describes a single file in a bag.
type ManifestFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ParseStorageManifest decodes and validates a raw manifest.
func ParseStorageManifest(raw []byte) (*StorageManifest, error) {
	var m StorageManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Space == "" {
		return nil, fmt.Errorf("%w: missing space", ErrInvalidManifest)
	}
	if m.Info.ExternalIdentifier == "" {
		return nil, fmt.Errorf("%w: missing info.externalIdentifier", ErrInvalidManifest)
	}
	if m.Version < 0 {
		return nil, fmt.Errorf("%w: negative version %d", ErrInvalidManifest, m.Version)
	}
	if m.CreatedDate == "" {
		return nil, fmt.Errorf("%w: missing createdDate", ErrInvalidManifest)
	}
	return &m, nil
}

// Identifier returns the identifier of the bag the manifest describes.
func (m *StorageManifest) Identifier() BagIdentifier {
	return BagIdentifier{
		Space:              m.Space,
		ExternalIdentifier: m.Info.ExternalIdentifier,
		Version:            m.Version,
	}
}

// BagFromStorageManifest materializes a Bag from a raw manifest. Only the
// payload files (not the tag manifest) are counted.
func BagFromStorageManifest(raw []byte) (*Bag, error) {
	m, err := ParseStorageManifest(raw)
	if err != nil {
		return nil, err
	}

	tally := make(map[string]int64)
	var totalSize int64
	for _, f := range m.Manifest.Files {
		tally[FileExtension(f.Name)]++
		totalSize += f.Size
	}

	bag := NewBag(m.Identifier(), m.CreatedDate, int64(len(m.Manifest.Files)), totalSize, tally)
	bag.StorageManifest = json.RawMessage(raw)
	return bag, nil
}

// FileExtension returns the extension of the last path component, including
// the leading dot. Leading dots of the component are not treated as an
// extension separator, so ".bashrc" has no extension. Files without an
// extension yield "".
func FileExtension(name string) string {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	trimmed := strings.TrimLeft(base, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 {
		return ""
	}
	return trimmed[i:]
}
