package types

import (
	"encoding/json"
	"strings"
)

// Bag holds everything the browser caches about one bag version.
type Bag struct {
	Identifier BagIdentifier `json:"identifier"`

	// CreatedDate is an ISO-8601 UTC timestamp with microsecond precision,
	// e.g. "2019-12-16T10:01:44.021334Z"
	CreatedDate string `json:"created_date"`

	FileCount     int64 `json:"file_count"`
	TotalFileSize int64 `json:"total_file_size"`

	// FileExtTally maps a lowercase extension (".xml") to the number of files
	// with that extension. Only populated for bags materialized from a full
	// file listing; rows read back from a page query carry an empty tally.
	FileExtTally map[string]int64 `json:"file_ext_tally"`

	// StorageManifest is the raw manifest the bag was built from, if any.
	// It is never persisted.
	StorageManifest json.RawMessage `json:"-"`
}

// NewBag creates a Bag, normalising the extension tally.
func NewBag(id BagIdentifier, createdDate string, fileCount, totalFileSize int64, tally map[string]int64) *Bag {
	return &Bag{
		Identifier:    id,
		CreatedDate:   createdDate,
		FileCount:     fileCount,
		TotalFileSize: totalFileSize,
		FileExtTally:  NormaliseFileTally(tally),
	}
}

// ID returns the bag's identifier string.
func (b *Bag) ID() string { return b.Identifier.ID() }

// Space returns the bag's space.
func (b *Bag) Space() string { return b.Identifier.Space }

// ExternalIdentifier returns the bag's external identifier.
func (b *Bag) ExternalIdentifier() string { return b.Identifier.ExternalIdentifier }

// Version returns the bag's numeric version.
func (b *Bag) Version() int { return b.Identifier.Version }

// DisplayVersion returns the version as "v{version}".
func (b *Bag) DisplayVersion() string { return b.Identifier.DisplayVersion() }

// NormaliseFileTally lowercases every extension, summing the counts of keys
// that differ only by case. The input map is never modified; a nil input
// yields an empty map.
func NormaliseFileTally(tally map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(tally))
	for ext, count := range tally {
		out[strings.ToLower(ext)] += count
	}
	return out
}
