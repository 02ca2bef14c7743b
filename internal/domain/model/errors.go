package model

import "errors"

// Sentinel kinds for parsing patient input.
var (
	ErrUnknownSex       = errors.New("unrecognized sex")
	ErrUnknownAttribute = errors.New("unrecognized attribute")
	ErrInvalidAge       = errors.New("invalid age in months")
)

// Reference lookup failures. Store adapters return these so callers can
// classify failures without knowing which backend produced them.
var (
	ErrReferenceNotFound = errors.New("reference data not found")
	ErrMalformedRecord   = errors.New("malformed reference record")
	ErrStoreUnavailable  = errors.New("reference store unavailable")
)
