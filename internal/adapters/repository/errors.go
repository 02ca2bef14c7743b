package repository

import (
	"errors"

	"github.com/okian/zcalc/internal/domain/model"
)

// Sentinel kinds for reference store errors. The lookup kinds alias the
// domain sentinels so errors.Is works from either package.
var (
	ErrNotFound        = model.ErrReferenceNotFound
	ErrMalformedRecord = model.ErrMalformedRecord
	ErrUnavailable     = model.ErrStoreUnavailable
	ErrUnknownDriver   = errors.New("unknown store driver")
	ErrInvalidTable    = errors.New("invalid table name")
	ErrInvalidCSV      = errors.New("invalid reference csv")
)
