package zcheck

import "errors"

var (
	// ErrNoCases is returned when the tables hold no percentile columns.
	ErrNoCases = errors.New("no percentile columns to check")
	// ErrMismatch is returned when at least one case fails.
	ErrMismatch = errors.New("z-scores outside tolerance")
	// ErrUnhealthy is returned when the service does not answer /healthz.
	ErrUnhealthy = errors.New("service health check failed")
	// ErrUnexpectedBody is returned when a 200 body carries no Z-score.
	ErrUnexpectedBody = errors.New("no z-score in response body")
)
