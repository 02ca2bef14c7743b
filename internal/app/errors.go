package service

import "errors"

var (
	// ErrNotStarted is returned by ZScore before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrStoreOpen wraps failures to open the reference store.
	ErrStoreOpen = errors.New("open reference store")
	// ErrSeed wraps failures to import the seed reference table.
	ErrSeed = errors.New("seed reference store")
)
