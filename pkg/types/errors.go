package types

import "errors"

// Bag model errors
var (
	// ErrInvalidBagID is returned when a bag id string is not of the form {space}/{external_identifier}/v{version}
	ErrInvalidBagID = errors.New("invalid bag id")

	// ErrInvalidManifest is returned when a storage manifest is missing required fields
	ErrInvalidManifest = errors.New("invalid storage manifest")
)
