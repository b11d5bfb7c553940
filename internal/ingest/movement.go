package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "bmdscreen/internal/errors"
)

// MovementSeries is one well's activity trace, one value per sample
type MovementSeries struct {
	ID     string
	Values []float64
}

// ReadMovementCSV parses a wide movement table: the first column identifies
// the well and every further column is one sample. Blank samples are errors.
func ReadMovementCSV(in io.Reader) ([]MovementSeries, error) {
	cr := csv.NewReader(in)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewSchemaError("movement table is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewInputError("failed to read movement header", err)
	}
	if len(header) < 2 {
		return nil, apperrors.NewSchemaError("movement table needs an id column and at least one sample", nil)
	}

	var out []MovementSeries
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.NewInputError(fmt.Sprintf("failed to read line %d", line), err)
		}

		s := MovementSeries{ID: strings.TrimSpace(record[0]), Values: make([]float64, len(record)-1)}
		for i, raw := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, apperrors.NewSchemaError(
					fmt.Sprintf("line %d: sample %s is not numeric", line, header[i+1]), err)
			}
			s.Values[i] = v
		}
		out = append(out, s)
	}
	return out, nil
}
