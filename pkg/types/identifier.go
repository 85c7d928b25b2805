// Package types provides the core bag record types for the bag browser.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// BagIdentifier names one version of a bag. Two identifiers are equal iff all
// three fields are equal, so the struct is safe to compare with ==.
type BagIdentifier struct {
	// Space is the namespace the bag lives in (e.g. "digitised")
	Space string `json:"space"`

	// ExternalIdentifier is the caller-assigned name, which may contain "/"
	ExternalIdentifier string `json:"external_identifier"`

	// Version increases each time the bag's contents are replaced
	Version int `json:"version"`
}

// ID returns the stable string form "{space}/{external_identifier}/v{version}".
func (b BagIdentifier) ID() string {
	return b.Space + "/" + b.ExternalIdentifier + "/" + b.DisplayVersion()
}

// DisplayVersion returns the version as "v{version}".
func (b BagIdentifier) DisplayVersion() string {
	return "v" + strconv.Itoa(b.Version)
}

// String implements fmt.Stringer.
func (b BagIdentifier) String() string {
	return b.ID()
}

// Less orders identifiers by (space, external_identifier, version) with the
// version compared numerically.
func (b BagIdentifier) Less(other BagIdentifier) bool {
	if b.Space != other.Space {
		return b.Space < other.Space
	}
	if b.ExternalIdentifier != other.ExternalIdentifier {
		return b.ExternalIdentifier < other.ExternalIdentifier
	}
	return b.Version < other.Version
}

// ParseBagID parses "{space}/{external_identifier}/v{version}". The space is
// the first segment, the version the last, and everything in between is the
// external identifier.
func ParseBagID(id string) (BagIdentifier, error) {
	first := strings.Index(id, "/")
	last := strings.LastIndex(id, "/")
	if first <= 0 || last <= first+1 || last == len(id)-1 {
		return BagIdentifier{}, fmt.Errorf("%w: %q", ErrInvalidBagID, id)
	}

	version, err := ParseVersion(id[last+1:])
	if err != nil {
		return BagIdentifier{}, fmt.Errorf("%w: %q", ErrInvalidBagID, id)
	}

	return BagIdentifier{
		Space:              id[:first],
		ExternalIdentifier: id[first+1 : last],
		Version:            version,
	}, nil
}

// ParseVersion parses a display version such as "v12".
func ParseVersion(s string) (int, error) {
	if len(s) < 2 || s[0] != 'v' {
		return 0, fmt.Errorf("%w: version %q", ErrInvalidBagID, s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: version %q", ErrInvalidBagID, s)
	}
	return n, nil
}
