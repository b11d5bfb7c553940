// Package exporter writes the batch report files of a screening run.
//
// BatchReporter implements screening.Reporter. The runner hands it every
// unit result once, in unit order, during its single-writer reduction; rows
// are streamed into three CSV files in the reports directory:
//
//	flags.csv          one row per unit: flag, label, p-value, correlation
//	dose_response.csv  the canonical table of every unit
//	fit_summary.csv    the selection record of every fitted unit
//
// When enabled, the same rows are also written to screening_report.xlsx with
// the sheets Flags, DoseResponse and Fits.
//
// Example usage:
//
//	reporter, err := exporter.NewBatchReporter(paths, true, logger)
//	...
//	batch, err := runner.Run(ctx, observations, screening.SelectAll())
//	err = reporter.Close()
package exporter
