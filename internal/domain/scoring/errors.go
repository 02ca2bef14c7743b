package scoring

import (
	"errors"
	"strings"

	"github.com/okian/zcalc/internal/domain/lms"
	"github.com/okian/zcalc/internal/domain/model"
)

// ErrValidationFailed matches any *Error of KindValidationFailed.
var ErrValidationFailed = errors.New("validation failed")

// Kind classifies a scoring failure. Callers switch on it instead of
// inspecting messages.
type Kind int

// Failure kinds.
const (
	KindValidationFailed Kind = iota + 1
	KindNotFound
	KindMalformedRecord
	KindInvalidParameters
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidationFailed:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	case KindMalformedRecord:
		return "malformed_record"
	case KindInvalidParameters:
		return "invalid_parameters"
	case KindStoreUnavailable:
		return "store_unavailable"
	}
	return "unknown"
}

// Error is the single failure type returned by ScoreFor.
type Error struct {
	Kind      Kind
	Attribute model.Attribute
	Key       model.ReferenceKey // zero when validation failed before a key existed
	Fields    []string           // offending input fields, validation only
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Attribute != "" {
		b.WriteString(" for ")
		b.WriteString(string(e.Attribute))
	}
	if e.Key.AgeMonths != "" {
		b.WriteString(" at ")
		b.WriteString(e.Key.String())
	}
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrValidationFailed) match validation failures.
// Other kinds match through the wrapped store or transform sentinel.
func (e *Error) Is(target error) bool {
	return target == ErrValidationFailed && e.Kind == KindValidationFailed
}

// KindOf returns the kind of err, or 0 when err is not a scoring failure.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// classify maps a lookup or transform error onto a Kind.
func classify(err error) Kind {
	switch {
	case errors.Is(err, model.ErrReferenceNotFound):
		return KindNotFound
	case errors.Is(err, model.ErrMalformedRecord):
		return KindMalformedRecord
	case errors.Is(err, lms.ErrInvalidParameters):
		return KindInvalidParameters
	}
	return KindStoreUnavailable
}
