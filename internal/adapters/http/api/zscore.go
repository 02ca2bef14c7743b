package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/zcalc/internal/domain/model"
	"github.com/okian/zcalc/internal/domain/scoring"
	"github.com/okian/zcalc/pkg/logger"
)

const (
	paramAgemos    = "agemos"
	paramSex       = "sex"
	paramAttribute = "attribute"

	successPrefix = "Z Score calculation was successful!\n\n"
	failurePrefix = "Z Score calculation failed: "
)

// ZScoreHandler handles GET /zscore.
type ZScoreHandler struct {
	deps    Dependencies
	timeout time.Duration
	debug   bool
	logger  logger.Logger
}

// NewZScoreHandler creates a new z-score handler.
func NewZScoreHandler(deps Dependencies, timeout time.Duration, debug bool, log logger.Logger) *ZScoreHandler {
	return &ZScoreHandler{deps: deps, timeout: timeout, debug: debug, logger: log}
}

// HandleZScore handles GET /zscore?agemos=&sex=&head_circumference= requests.
// attribute selects another measurement, read from the parameter of the same name.
func (h *ZScoreHandler) HandleZScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeText(w, http.StatusBadRequest, "Not a valid operation\n")
		return
	}

	patient, attribute, err := decodeQuery(r.URL.Query())
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error()+"\n")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.deps.ZScore(ctx, patient, attribute)
	if err != nil {
		h.writeFailure(ctx, w, err)
		return
	}

	var b strings.Builder
	b.WriteString(successPrefix)
	fmt.Fprintf(&b, "The Z Score for %s is %s\n", res.Attribute, strconv.FormatFloat(res.ZScore, 'g', -1, 64))
	if h.debug {
		writeDiagnostics(&b, res.Diagnostics)
	}
	writeText(w, http.StatusOK, b.String())
}

func (h *ZScoreHandler) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	var se *scoring.Error
	if !errors.As(err, &se) {
		h.logger.Error(ctx, "z-score request could not be served", logger.Error(err))
		writeText(w, http.StatusServiceUnavailable, failurePrefix+"service unavailable\n")
		return
	}

	status := http.StatusBadRequest
	msg := se.Error()
	if se.Kind == scoring.KindStoreUnavailable {
		status = http.StatusInternalServerError
		msg = "reference store unavailable"
		h.logger.Error(ctx, "reference store unavailable",
			logger.String("request_id", se.RequestID),
			logger.Error(err),
		)
	}

	var b strings.Builder
	b.WriteString(failurePrefix)
	b.WriteString(msg)
	b.WriteString("\n")
	if h.debug {
		fmt.Fprintf(&b, "\nrequest: %s\n", se.RequestID)
	}
	writeText(w, status, b.String())
}

func writeDiagnostics(b *strings.Builder, d model.Diagnostics) {
	fmt.Fprintf(b, "\nrequest: %s\nsource: %s\nkey: %s\n", d.RequestID, d.Source, d.Key)
	fmt.Fprintf(b, "L=%s M=%s S=%s\n",
		strconv.FormatFloat(d.Parameters.L, 'g', -1, 64),
		strconv.FormatFloat(d.Parameters.M, 'g', -1, 64),
		strconv.FormatFloat(d.Parameters.S, 'g', -1, 64),
	)
}

// decodeQuery turns query parameters into a Patient. Range and enum checks
// are left to the orchestrator so every invalid field is reported together.
func decodeQuery(q url.Values) (model.Patient, model.Attribute, error) {
	attribute := model.HeadCircumference
	if raw := strings.TrimSpace(q.Get(paramAttribute)); raw != "" {
		a, err := model.ParseAttribute(raw)
		if err != nil {
			return model.Patient{}, "", fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		attribute = a
	}

	measurement := string(attribute)
	var missing []string
	for _, name := range []string{paramAgemos, paramSex, measurement} {
		if strings.TrimSpace(q.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return model.Patient{}, "", fmt.Errorf("%w: %s", ErrMissingParams, strings.Join(missing, ", "))
	}

	raw := strings.TrimSpace(q.Get(measurement))
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return model.Patient{}, "", fmt.Errorf("%w: %s %q is not a number", ErrBadRequest, measurement, raw)
	}

	rawSex := q.Get(paramSex)
	sex, err := model.ParseSex(rawSex)
	if err != nil {
		sex = model.Sex(strings.TrimSpace(rawSex))
	}

	p := model.Patient{Agemos: strings.TrimSpace(q.Get(paramAgemos)), Sex: sex}
	return p.WithMeasurement(attribute, x), attribute, nil
}
