// Package repository fetches LMS reference parameters from the reference-data store.
package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/zcalc/internal/domain/model"
)

// Store backend names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Field names of a reference record. Records may carry more fields
// (percentiles such as P3..P97); only these are read.
const (
	FieldL = "L"
	FieldM = "M"
	FieldS = "S"
)

// Row is one reference record in the store's native encoding: numbers are
// kept as decimal strings.
type Row struct {
	Key model.ReferenceKey
	L   string
	M   string
	S   string
}

// Store provides point reads of reference parameters.
type Store interface {
	// Fetch returns the L, M, S triple for attribute at key.
	// Returns ErrNotFound when no record matches and ErrMalformedRecord when
	// the matched record lacks a usable L, M or S. Fetch never retries.
	Fetch(ctx context.Context, attribute model.Attribute, key model.ReferenceKey) (model.ReferenceParameters, error)

	// Name identifies the backend, e.g. "sqlite".
	Name() string

	// Close releases connections held by the store.
	Close() error
}

// Writer stores reference rows.
type Writer interface {
	// Upsert inserts or replaces rows for attribute and returns how many were written.
	Upsert(ctx context.Context, attribute model.Attribute, rows []Row) (int, error)
}

// ReadWriteStore is a Store that can also be loaded.
type ReadWriteStore interface {
	Store
	Writer
}

// parseRecord converts a raw record into parameters. Missing or non-numeric
// fields fail the whole record.
func parseRecord(attribute model.Attribute, key model.ReferenceKey, fields map[string]string) (model.ReferenceParameters, error) {
	var (
		out     model.ReferenceParameters
		targets = []struct {
			name string
			dst  *float64
		}{{FieldL, &out.L}, {FieldM, &out.M}, {FieldS, &out.S}}
	)
	for _, t := range targets {
		raw, ok := fields[t.name]
		if !ok || strings.TrimSpace(raw) == "" {
			return model.ReferenceParameters{}, fmt.Errorf("%w: %s record for %s is missing %s", ErrMalformedRecord, attribute, key, t.name)
		}
		v, err := parseNumber(raw)
		if err != nil {
			return model.ReferenceParameters{}, fmt.Errorf("%w: %s record for %s has non-numeric %s %q", ErrMalformedRecord, attribute, key, t.name, raw)
		}
		*t.dst = v
	}
	return out, nil
}

// parseNumber accepts finite decimals only; ParseFloat alone lets "NaN" and "Inf" through.
func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", raw)
	}
	return v, nil
}

func notFound(attribute model.Attribute, key model.ReferenceKey) error {
	return fmt.Errorf("%w: data for %s at %s", ErrNotFound, attribute, key)
}

func (r Row) fields() map[string]string {
	return map[string]string{FieldL: r.L, FieldM: r.M, FieldS: r.S}
}
