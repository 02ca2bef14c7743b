package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrInvalidOperation = errors.New("not a valid operation")
	ErrMissingParams    = errors.New("missing parameters for Z Score")
)
