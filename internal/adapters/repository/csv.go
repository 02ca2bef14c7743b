package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/okian/zcalc/internal/domain/model"
)

// ReadCSV parses a reference table with a header row containing Sex, Agemos,
// L, M and S (any case, any order). Other columns such as percentiles are
// ignored, as are repeated header rows. Keys are canonicalized.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make(map[string]int, 5)
	for _, name := range []string{"sex", "agemos", "l", "m", "s"} {
		i, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidCSV, name)
		}
		idx[name] = i
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		get := func(name string) string {
			if i := idx[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		if strings.EqualFold(get("sex"), "sex") {
			continue
		}

		sex, err := model.ParseSex(get("sex"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		key, err := model.NewReferenceKey(get("agemos"), sex)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		row := Row{Key: key, L: get("l"), M: get("m"), S: get("s")}
		for i, v := range [...]string{row.L, row.M, row.S} {
			if _, err := parseNumber(v); err != nil {
				return nil, fmt.Errorf("%w: line %d: %s %q is not a number", ErrInvalidCSV, line, lmsFields[i], v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var lmsFields = [...]string{FieldL, FieldM, FieldS}

// ImportCSV reads a reference table from r and upserts every row under attribute.
// Nothing is written when the table fails to parse.
func ImportCSV(ctx context.Context, w Writer, attribute model.Attribute, r io.Reader) (int, error) {
	if !attribute.Valid() {
		return 0, fmt.Errorf("%w: %q", model.ErrUnknownAttribute, attribute)
	}
	rows, err := ReadCSV(r)
	if err != nil {
		return 0, err
	}
	return w.Upsert(ctx, attribute, rows)
}
