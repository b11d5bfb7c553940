package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "bmdscreen/internal/errors"
	"bmdscreen/pkg/contracts/domain"
)

// Format of the master table file
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Reader parses master tables into validated observations
type Reader struct {
	validator *Validator
}

// NewReader creates a reader with the standard validator
func NewReader() *Reader {
	return &Reader{validator: NewValidator()}
}

// ReadFile reads path as CSV or XLSX. FormatAuto picks by extension. sheet
// is only used for XLSX; empty means the first sheet.
func (r *Reader) ReadFile(path string, format Format, sheet string) ([]domain.WellObservation, error) {
	if format == "" || format == FormatAuto {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx", ".xlsm":
			format = FormatXLSX
		default:
			format = FormatCSV
		}
	}

	switch format {
	case FormatXLSX:
		return r.ReadXLSX(path, sheet)
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewInputError("failed to open master table", err).WithContext("path", path)
		}
		defer f.Close()
		return r.ReadCSV(f)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported input format %q", format), nil)
	}
}

// ReadCSV parses a CSV master table
func (r *Reader) ReadCSV(in io.Reader) ([]domain.WellObservation, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewSchemaError("master table is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewInputError("failed to read header", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []domain.WellObservation
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
		if blank(record) {
			continue
		}

		o, err := r.parseRow(line, record, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}

	return out, nil
}

// ReadXLSX parses the named sheet (or the first sheet) of a workbook
func (r *Reader) ReadXLSX(path, sheet string) ([]domain.WellObservation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewInputError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewSchemaError("workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewInputError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("sheet %q is empty", sheet), nil)
	}

	idx, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	out := make([]domain.WellObservation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		o, err := r.parseRow(i+2, row, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// columnIndex maps each required column to its position in header
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; dup {
			return nil, apperrors.NewSchemaError(fmt.Sprintf("duplicate column %q", name), nil)
		}
		idx[name] = i
	}

	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
	}
	return idx, nil
}

func (r *Reader) parseRow(line int, record []string, idx map[string]int) (domain.WellObservation, error) {
	cell := func(name string) string {
		i := idx[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	conc, err := strconv.ParseFloat(cell("concentration"), 64)
	if err != nil {
		return domain.WellObservation{}, apperrors.NewSchemaError(
			fmt.Sprintf("line %d: invalid concentration %q", line, cell("concentration")), err).WithContext("line", line)
	}

	value, err := domain.ParseValue(cell("value"))
	if err != nil {
		return domain.WellObservation{}, apperrors.NewSchemaError(fmt.Sprintf("line %d", line), err).WithContext("line", line)
	}

	o := domain.WellObservation{
		ChemicalID:    cell("chemical_id"),
		Concentration: conc,
		PlateID:       cell("plate_id"),
		WellID:        cell("well_id"),
		Endpoint:      cell("endpoint"),
		Value:         value,
	}
	if err := r.validator.Observation(line, o); err != nil {
		return domain.WellObservation{}, err
	}
	return o, nil
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
