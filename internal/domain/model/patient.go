// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Sex is the assigned sex of a patient, encoded the way reference tables encode it.
type Sex string

// Sex codes used by the reference tables.
const (
	Female Sex = "1"
	Male   Sex = "2"
)

// ParseSex accepts the table codes ("1", "2") and the names female/male/f/m.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "female", "f":
		return Female, nil
	case "2", "male", "m":
		return Male, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSex, s)
}

// Valid reports whether s is one of the known codes.
func (s Sex) Valid() bool { return s == Female || s == Male }

func (s Sex) String() string {
	switch s {
	case Female:
		return "female"
	case Male:
		return "male"
	}
	return "unknown"
}

// Attribute selects which measurement, and therefore which reference table, is scored.
type Attribute string

// Supported attributes.
const (
	Height            Attribute = "height"
	Weight            Attribute = "weight"
	HeadCircumference Attribute = "head_circumference"
	BMI               Attribute = "bmi"
)

// Attributes lists every supported attribute.
var Attributes = []Attribute{Height, Weight, HeadCircumference, BMI}

// ParseAttribute maps a name onto an Attribute.
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, s)
	}
	return a, nil
}

// Valid reports whether a is a supported attribute.
func (a Attribute) Valid() bool {
	for _, known := range Attributes {
		if a == known {
			return true
		}
	}
	return false
}

// Patient carries the measurements submitted for scoring.
// A nil measurement was not supplied; the field for the requested
// attribute must be set.
type Patient struct {
	Agemos            string   // age in months, decimal string
	Sex               Sex      // table code
	HeadCircumference *float64 // centimetres
	Weight            *float64 // kilograms
	Height            *float64 // centimetres
	BMI               *float64
}

// Measurement returns the value recorded for attribute and whether one is present.
func (p Patient) Measurement(attribute Attribute) (float64, bool) {
	switch attribute {
	case HeadCircumference:
		return deref(p.HeadCircumference)
	case Weight:
		return deref(p.Weight)
	case Height:
		return deref(p.Height)
	case BMI:
		return deref(p.BMI)
	}
	return 0, false
}

// WithMeasurement returns a copy of p with the value stored under attribute.
func (p Patient) WithMeasurement(attribute Attribute, v float64) Patient {
	switch attribute {
	case HeadCircumference:
		p.HeadCircumference = &v
	case Weight:
		p.Weight = &v
	case Height:
		p.Height = &v
	case BMI:
		p.BMI = &v
	}
	return p
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
