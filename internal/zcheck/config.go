// Package zcheck verifies a running z-score service end to end: every
// percentile column of a reference table, sent back as a measurement, must
// score as the matching standard normal quantile.
package zcheck

import (
	"time"

	"github.com/okian/zcalc/internal/domain/model"
)

// Default run settings.
const (
	DefaultBaseURL   = "http://localhost:9080"
	DefaultTimeout   = 10 * time.Second
	DefaultTolerance = 1e-3
)

// Config holds configuration for a verification run.
type Config struct {
	BaseURL   string          // base URL of the service
	Attribute model.Attribute // attribute the tables describe
	Tables    []string        // reference CSV files with P3..P97 columns
	Workers   int             // concurrent requests
	Timeout   time.Duration   // per-request HTTP timeout
	Tolerance float64         // allowed |got - expected| per case
	Verbose   bool            // log every case, not only failures
}

// Case is one request and the Z-score it must produce.
type Case struct {
	Key        model.ReferenceKey
	Attribute  model.Attribute
	Percentile float64 // 3 for P3
	X          float64 // the tabulated measurement at Percentile
	Expected   float64 // standard normal quantile of Percentile/100
}

// Outcome is the result of checking one case.
type Outcome struct {
	Case
	Got    float64
	Status int
	Err    error
}

// Passed reports whether the service answered within tolerance.
func (o Outcome) Passed(tolerance float64) bool {
	if o.Err != nil {
		return false
	}
	d := o.Got - o.Expected
	return d <= tolerance && d >= -tolerance
}

// Stats holds run statistics.
type Stats struct {
	Cases     int
	Passed    int
	Failed    int
	Errored   int
	MaxDelta  float64
	StartTime time.Time
	Duration  time.Duration
}
