package exporter

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the screening workbook
const (
	SheetFlags        = "Flags"
	SheetDoseResponse = "DoseResponse"
	SheetFits         = "Fits"
)

// WorkbookWriter accumulates report rows in an xlsx workbook saved on Close
type WorkbookWriter struct {
	path string
	file *excelize.File
	next map[string]int
}

// NewWorkbookWriter creates the workbook with a bold header row per sheet
func NewWorkbookWriter(path string) (*WorkbookWriter, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetFlags); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetDoseResponse, SheetFits} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	w := &WorkbookWriter{path: path, file: f, next: make(map[string]int)}
	headers := map[string][]string{
		SheetFlags:        FlagHeaders,
		SheetDoseResponse: DoseResponseHeaders,
		SheetFits:         FitHeaders,
	}
	for sheet, h := range headers {
		row := make([]interface{}, len(h))
		for i, v := range h {
			row[i] = v
		}
		if err := w.append(sheet, row); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("style header of %s: %w", sheet, err)
		}
	}
	return w, nil
}

// append writes row below the last written row of sheet
func (w *WorkbookWriter) append(sheet string, row []interface{}) error {
	w.next[sheet]++
	cell, err := excelize.CoordinatesToCellName(1, w.next[sheet])
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, w.next[sheet], err)
	}
	return nil
}

// Close saves the workbook and releases it
func (w *WorkbookWriter) Close() error {
	defer w.file.Close()
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// cellFloat leaves undefined statistics as empty cells
func cellFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func cellOptional(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return cellFloat(*f)
}
