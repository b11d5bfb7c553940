package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains every file system location a screening run writes to.
// All report locations are derived from the configured output directory.
type Paths struct {
	OutputDir  string
	ReportsDir string
	LogsDir    string
	RunsDir    string

	// Well-known report files
	FlagsCSV        string
	DoseResponseCSV string
	FitSummaryCSV   string
	WorkbookXLSX    string
}

// NewPaths derives the report layout from an output directory
func NewPaths(outputDir string) (*Paths, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	reportsDir := filepath.Join(abs, "reports")
	return &Paths{
		OutputDir:       abs,
		ReportsDir:      reportsDir,
		LogsDir:         filepath.Join(abs, "logs"),
		RunsDir:         filepath.Join(abs, "runs"),
		FlagsCSV:        filepath.Join(reportsDir, "flags.csv"),
		DoseResponseCSV: filepath.Join(reportsDir, "dose_response.csv"),
		FitSummaryCSV:   filepath.Join(reportsDir, "fit_summary.csv"),
		WorkbookXLSX:    filepath.Join(reportsDir, "screening_report.xlsx"),
	}, nil
}

// EnsureDirectories creates the base directories needed by a run
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.OutputDir,
		p.ReportsDir,
		p.LogsDir,
		p.RunsDir,
	}

	logger := slog.Default()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetReportPath returns the full path for a file in the reports directory
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the full path for a file in the logs directory
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetRunPath returns the directory holding artifacts of a single run
func (p *Paths) GetRunPath(runID string) string {
	return filepath.Join(p.RunsDir, runID)
}

// ReportFiles lists the well-known report files in publication order
func (p *Paths) ReportFiles() []string {
	return []string{p.FlagsCSV, p.DoseResponseCSV, p.FitSummaryCSV, p.WorkbookXLSX}
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
