package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ReferenceKey identifies one row of a reference table.
type ReferenceKey struct {
	AgeMonths string `json:"agemos"`
	Sex       Sex    `json:"sex"`
}

// NewReferenceKey validates agemos and sex and canonicalizes the age so that
// "1.50" and "1.5" address the same row.
func NewReferenceKey(agemos string, sex Sex) (ReferenceKey, error) {
	age, err := CanonicalAge(agemos)
	if err != nil {
		return ReferenceKey{}, err
	}
	if !sex.Valid() {
		return ReferenceKey{}, fmt.Errorf("%w: %q", ErrUnknownSex, string(sex))
	}
	return ReferenceKey{AgeMonths: age, Sex: sex}, nil
}

func (k ReferenceKey) String() string {
	return "agemos=" + k.AgeMonths + " sex=" + string(k.Sex)
}

// CanonicalAge parses a non-negative decimal and formats it with the shortest
// representation, so "1.50", "1.5" and "15e-1" share a key.
func CanonicalAge(agemos string) (string, error) {
	s := strings.TrimSpace(agemos)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAge)
	}
	// Hex floats parse but never appear in reference tables.
	if strings.ContainsAny(s, "xX_") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAge, agemos)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAge, agemos)
	}
	if v < 0 {
		return "", fmt.Errorf("%w: %q is negative", ErrInvalidAge, agemos)
	}
	if v == 0 {
		v = 0 // -0 keys the same row as 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// ReferenceParameters is the L, M, S triple for one reference row.
type ReferenceParameters struct {
	L float64 `json:"L"`
	M float64 `json:"M"`
	S float64 `json:"S"`
}

// Diagnostics describes how a single score was produced. It is created per
// request and never shared.
type Diagnostics struct {
	RequestID  string              `json:"request_id"`
	Source     string              `json:"source"`
	Key        ReferenceKey        `json:"key"`
	Parameters ReferenceParameters `json:"parameters"`
}

// ZScoreResult is the outcome of scoring one measurement.
type ZScoreResult struct {
	ZScore      float64     `json:"z_score"`
	Attribute   Attribute   `json:"attribute"`
	Diagnostics Diagnostics `json:"diagnostics"`
}
