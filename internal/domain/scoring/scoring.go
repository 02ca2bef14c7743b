// Package scoring turns a patient measurement into an LMS Z-score:
// validate, look up reference parameters, compute, assemble.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/zcalc/internal/domain/lms"
	"github.com/okian/zcalc/internal/domain/model"
	"github.com/okian/zcalc/pkg/logger"
	"github.com/okian/zcalc/pkg/metrics"
)

const nanosecondsPerMillisecond = 1e6

// ReferenceSource looks up L, M, S for one reference key.
type ReferenceSource interface {
	Fetch(ctx context.Context, attribute model.Attribute, key model.ReferenceKey) (model.ReferenceParameters, error)
	Name() string
}

// Transform computes a Z-score from a measurement and reference parameters.
type Transform func(x, l, m, s float64) (float64, error)

// Scorer scores one measurement.
type Scorer interface {
	// ScoreFor returns the Z-score of the patient's measurement for attribute.
	// Failures are always *Error.
	ScoreFor(ctx context.Context, patient model.Patient, attribute model.Attribute) (model.ZScoreResult, error)
}

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for per-request debug output.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransform replaces the LMS transform.
func WithTransform(t Transform) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.transform = t
		}
	}
}

// WithRequestIDs sets the generator of per-request ids.
func WithRequestIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newID = next
		}
	}
}

// Orchestrator implements Scorer. It holds no per-request state and is safe
// for concurrent use when its source is.
type Orchestrator struct {
	source    ReferenceSource
	transform Transform
	logger    logger.Logger
	newID     func() string
}

// New creates an Orchestrator reading reference parameters from source.
func New(source ReferenceSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:    source,
		transform: lms.Compute,
		logger:    logger.Nop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScoreFor implements Scorer. Each step runs once; the first failure ends the request.
func (o *Orchestrator) ScoreFor(ctx context.Context, patient model.Patient, attribute model.Attribute) (model.ZScoreResult, error) {
	reqID := o.newID()

	key, x, err := validate(patient, attribute)
	if err != nil {
		err.RequestID = reqID
		return o.fail(ctx, err)
	}

	start := time.Now()
	params, lookupErr := o.source.Fetch(ctx, attribute, key)
	outcome := "ok"
	if lookupErr != nil {
		outcome = classify(lookupErr).String()
	}
	metrics.RecordLookupLatency(o.source.Name(), outcome, float64(time.Since(start).Nanoseconds())/nanosecondsPerMillisecond)
	if lookupErr != nil {
		return o.fail(ctx, &Error{Kind: classify(lookupErr), Attribute: attribute, Key: key, RequestID: reqID, Err: lookupErr})
	}

	z, computeErr := o.transform(x, params.L, params.M, params.S)
	if computeErr != nil {
		kind := classify(computeErr)
		if kind != KindInvalidParameters {
			kind = KindInvalidParameters
			computeErr = fmt.Errorf("%w: %v", lms.ErrInvalidParameters, computeErr)
		}
		return o.fail(ctx, &Error{Kind: kind, Attribute: attribute, Key: key, RequestID: reqID, Err: computeErr})
	}

	res := model.ZScoreResult{
		ZScore:    z,
		Attribute: attribute,
		Diagnostics: model.Diagnostics{
			RequestID:  reqID,
			Source:     o.source.Name(),
			Key:        key,
			Parameters: params,
		},
	}
	metrics.RecordScoreComputed(string(attribute), z)
	o.logger.Debug(ctx, "z-score computed",
		logger.String("request_id", reqID),
		logger.String("attribute", string(attribute)),
		logger.String("agemos", key.AgeMonths),
		logger.String("sex", string(key.Sex)),
		logger.Float64("z", z),
	)
	return res, nil
}

func (o *Orchestrator) fail(ctx context.Context, err *Error) (model.ZScoreResult, error) {
	metrics.RecordScoreFailure(string(err.Attribute), err.Kind.String())
	o.logger.Debug(ctx, "z-score failed",
		logger.String("request_id", err.RequestID),
		logger.String("kind", err.Kind.String()),
		logger.Error(err),
	)
	return model.ZScoreResult{}, err
}

// validate checks every input field and reports all failures at once.
func validate(p model.Patient, attribute model.Attribute) (model.ReferenceKey, float64, *Error) {
	var (
		fields []string
		errs   []error
	)
	age, err := model.CanonicalAge(p.Agemos)
	if err != nil {
		fields = append(fields, "agemos")
		errs = append(errs, err)
	}
	if !p.Sex.Valid() {
		fields = append(fields, "sex")
		errs = append(errs, fmt.Errorf("%w: %q", model.ErrUnknownSex, string(p.Sex)))
	}

	var x float64
	if !attribute.Valid() {
		fields = append(fields, "attribute")
		errs = append(errs, fmt.Errorf("%w: %q", model.ErrUnknownAttribute, string(attribute)))
	} else {
		v, ok := p.Measurement(attribute)
		switch {
		case !ok:
			fields = append(fields, string(attribute))
			errs = append(errs, fmt.Errorf("%s is missing", attribute))
		case math.IsNaN(v) || math.IsInf(v, 0) || v <= 0:
			fields = append(fields, string(attribute))
			errs = append(errs, fmt.Errorf("%s must be a positive number, got %g", attribute, v))
		default:
			x = v
		}
	}

	if len(fields) > 0 {
		return model.ReferenceKey{}, 0, &Error{
			Kind:      KindValidationFailed,
			Attribute: attribute,
			Fields:    fields,
			Err:       errors.Join(errs...),
		}
	}
	return model.ReferenceKey{AgeMonths: age, Sex: p.Sex}, x, nil
}
