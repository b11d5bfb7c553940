package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"bmdscreen/internal/config"
	"bmdscreen/pkg/contracts/domain"
)

// Report column layouts
var (
	FlagHeaders         = []string{"chemical_id", "endpoint", "flag", "flag_label", "p_value", "correlation", "n_groups"}
	DoseResponseHeaders = []string{"chemical_id", "endpoint", "index", "dose", "num_affected", "total_num"}
	FitHeaders          = []string{"chemical_id", "endpoint", "flag", "no_unique_model_found_flag", "model_select_flag", "selected_model", "bmd", "bmdl", "bmdu"}
)

// BatchReporter streams unit results into the batch report files. It is
// driven by a single writer and is not safe for concurrent use.
type BatchReporter struct {
	flags    *StreamWriter
	doses    *StreamWriter
	fits     *StreamWriter
	workbook *WorkbookWriter
	paths    *config.Paths
	logger   *slog.Logger
	closed   bool
}

// NewBatchReporter creates the report files in paths.ReportsDir
func NewBatchReporter(paths *config.Paths, writeXLSX bool, logger *slog.Logger) (*BatchReporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := NewCSVWriter(paths)
	r := &BatchReporter{paths: paths, logger: logger.With(slog.String("component", "batch_reporter"))}

	var err error
	if r.flags, err = w.CreateStreamWriter(filepath.Base(paths.FlagsCSV), FlagHeaders); err != nil {
		return nil, fmt.Errorf("open flags report: %w", err)
	}
	if r.doses, err = w.CreateStreamWriter(filepath.Base(paths.DoseResponseCSV), DoseResponseHeaders); err != nil {
		r.flags.Close()
		return nil, fmt.Errorf("open dose-response report: %w", err)
	}
	if r.fits, err = w.CreateStreamWriter(filepath.Base(paths.FitSummaryCSV), FitHeaders); err != nil {
		r.flags.Close()
		r.doses.Close()
		return nil, fmt.Errorf("open fit summary: %w", err)
	}
	if writeXLSX {
		if r.workbook, err = NewWorkbookWriter(paths.WorkbookXLSX); err != nil {
			r.flags.Close()
			r.doses.Close()
			r.fits.Close()
			return nil, fmt.Errorf("open workbook: %w", err)
		}
	}
	return r, nil
}

// ReportNoFit records a unit flagged 0 or 1
func (r *BatchReporter) ReportNoFit(ctx context.Context, res domain.UnitResult) error {
	if res.Flag.RequiresFit() {
		return fmt.Errorf("unit %s with flag %d belongs on the fit path", res.Key, res.Flag)
	}
	return r.writeUnit(ctx, res)
}

// ReportFit records a unit flagged 2 to 5 together with its fit outcome
func (r *BatchReporter) ReportFit(ctx context.Context, res domain.UnitResult) error {
	if !res.Flag.RequiresFit() {
		return fmt.Errorf("unit %s with flag %d belongs on the no-fit path", res.Key, res.Flag)
	}
	if res.Fit == nil {
		return fmt.Errorf("unit %s has no fit outcome", res.Key)
	}
	if err := r.writeUnit(ctx, res); err != nil {
		return err
	}

	fit := res.Fit
	record := []string{
		res.Key.ChemicalID, res.Key.Endpoint, formatInt(int(res.Flag)),
		formatInt(fit.NoUniqueModelFound), formatInt(int(fit.ModelSelectFlag)), fit.SelectedModel,
		formatOptional(fit.BMD), formatOptional(fit.BMDL), formatOptional(fit.BMDU),
	}
	if err := r.fits.WriteRecord(record); err != nil {
		return fmt.Errorf("write fit summary: %w", err)
	}
	if r.workbook != nil {
		return r.workbook.append(SheetFits, []interface{}{
			res.Key.ChemicalID, res.Key.Endpoint, int(res.Flag),
			fit.NoUniqueModelFound, int(fit.ModelSelectFlag), fit.SelectedModel,
			cellOptional(fit.BMD), cellOptional(fit.BMDL), cellOptional(fit.BMDU),
		})
	}
	return nil
}

func (r *BatchReporter) writeUnit(ctx context.Context, res domain.UnitResult) error {
	if r.closed {
		return errors.New("reporter is closed")
	}

	flagRecord := []string{
		res.Key.ChemicalID, res.Key.Endpoint, formatInt(int(res.Flag)), res.Flag.String(),
		formatFloat(res.PValue), formatFloat(res.Correlation), formatInt(len(res.Groups)),
	}
	if err := r.flags.WriteRecord(flagRecord); err != nil {
		return fmt.Errorf("write flags: %w", err)
	}
	if r.workbook != nil {
		if err := r.workbook.append(SheetFlags, []interface{}{
			res.Key.ChemicalID, res.Key.Endpoint, int(res.Flag), res.Flag.String(),
			cellFloat(res.PValue), cellFloat(res.Correlation), len(res.Groups),
		}); err != nil {
			return err
		}
	}

	for _, row := range res.Table.Rows {
		record := []string{
			res.Key.ChemicalID, res.Key.Endpoint, formatInt(row.Index),
			formatFloat(row.Dose), formatInt(row.NumAffected), formatInt(row.TotalNum),
		}
		if err := r.doses.WriteRecord(record); err != nil {
			return fmt.Errorf("write dose response: %w", err)
		}
		if r.workbook != nil {
			if err := r.workbook.append(SheetDoseResponse, []interface{}{
				res.Key.ChemicalID, res.Key.Endpoint, row.Index, row.Dose, row.NumAffected, row.TotalNum,
			}); err != nil {
				return err
			}
		}
	}

	r.logger.DebugContext(ctx, "unit reported",
		slog.String("unit", res.Key.String()),
		slog.String("flag", res.Flag.String()))
	return nil
}

// Close flushes every report file. It is safe to call more than once.
func (r *BatchReporter) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	errs := []error{r.flags.Close(), r.doses.Close(), r.fits.Close()}
	if r.workbook != nil {
		errs = append(errs, r.workbook.Close())
	}

	r.logger.Info("reports written",
		slog.Int("units", r.flags.Rows()),
		slog.Int("dose_rows", r.doses.Rows()),
		slog.Int("fits", r.fits.Rows()),
		slog.String("dir", r.paths.ReportsDir))
	return errors.Join(errs...)
}

// Files lists the report files produced by this reporter
func (r *BatchReporter) Files() []string {
	files := []string{r.flags.Path(), r.doses.Path(), r.fits.Path()}
	if r.workbook != nil {
		files = append(files, r.workbook.path)
	}
	return files
}
