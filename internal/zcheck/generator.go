package zcheck

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/okian/zcalc/internal/domain/model"
)

// Quantile returns the standard normal quantile of p, 0 < p < 1.
func Quantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// GenerateCases reads a reference table and emits one case per row and
// percentile column (P3, P50, P97, ...). Repeated header rows are skipped.
func GenerateCases(attribute model.Attribute, r io.Reader) ([]Case, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	sexCol, ageCol := -1, -1
	percentiles := map[int]float64{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch strings.ToLower(h) {
		case "sex":
			sexCol = i
		case "agemos":
			ageCol = i
		default:
			if p, ok := percentileColumn(h); ok {
				percentiles[i] = p
			}
		}
	}
	if sexCol < 0 || ageCol < 0 {
		return nil, errors.New("table needs Sex and Agemos columns")
	}
	if len(percentiles) == 0 {
		return nil, ErrNoCases
	}

	var cases []Case
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if sexCol >= len(rec) || ageCol >= len(rec) || strings.EqualFold(strings.TrimSpace(rec[sexCol]), "sex") {
			continue
		}

		sex, err := model.ParseSex(rec[sexCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		key, err := model.NewReferenceKey(rec[ageCol], sex)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		for col := range header {
			p, ok := percentiles[col]
			if !ok || col >= len(rec) {
				continue
			}
			x, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s %q is not a number", line, header[col], rec[col])
			}
			cases = append(cases, Case{
				Key:        key,
				Attribute:  attribute,
				Percentile: p,
				X:          x,
				Expected:   Quantile(p / 100),
			})
		}
	}
	return cases, nil
}

// percentileColumn parses headers like "P3" or "P97".
func percentileColumn(h string) (float64, bool) {
	if len(h) < 2 || (h[0] != 'P' && h[0] != 'p') {
		return 0, false
	}
	p, err := strconv.ParseFloat(h[1:], 64)
	if err != nil || p <= 0 || p >= 100 {
		return 0, false
	}
	return p, true
}
