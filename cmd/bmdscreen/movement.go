package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"bmdscreen/internal/endpoints"
	"bmdscreen/internal/exporter"
	"bmdscreen/internal/ingest"
)

var movementFlags struct {
	input       string
	output      string
	window      int
	transitions []int
}

var movementCmd = &cobra.Command{
	Use:   "movement",
	Short: "Derive MOV/AUC behavioural endpoints from movement series",
	Long: `Reads a wide movement table (well ID followed by one column per sample) and
writes one row per well and metric: MOV_k is the jump across light transition
k, AUC_k the difference of the summed windows after and before it.`,
	Example: `  bmdscreen movement --input lpr.csv --output movement.csv
  bmdscreen movement --input lpr.csv --transitions 29,59 --window 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if movementFlags.input == "" {
			return fmt.Errorf("--input is required")
		}

		f, err := os.Open(movementFlags.input)
		if err != nil {
			return fmt.Errorf("open movement table: %w", err)
		}
		defer f.Close()

		series, err := ingest.ReadMovementCSV(f)
		if err != nil {
			return err
		}

		records, err := deriveMovementRecords(series, movementFlags.transitions, movementFlags.window)
		if err != nil {
			return err
		}

		paths, err := cfg.Paths()
		if err != nil {
			return err
		}
		w := exporter.NewCSVWriter(paths)
		if err := w.WriteCSV(movementFlags.output, exporter.WriteOptions{
			Headers:   []string{"id", "metric", "value"},
			Records:   records,
			BOMPrefix: true,
		}); err != nil {
			return err
		}

		logger.Info("movement endpoints written",
			slog.Int("series", len(series)),
			slog.Int("rows", len(records)),
			slog.String("output", movementFlags.output))
		fmt.Fprintf(cmd.OutOrStdout(), "%d series, %d metrics written\n", len(series), len(records))
		return nil
	},
}

func init() {
	f := movementCmd.Flags()
	f.StringVarP(&movementFlags.input, "input", "i", "", "wide movement CSV")
	f.StringVarP(&movementFlags.output, "output", "o", "movement.csv", "output file; relative paths go to the reports directory")
	f.IntVar(&movementFlags.window, "window", endpoints.DefaultWindow, "samples summed on each side of a transition")
	f.IntSliceVar(&movementFlags.transitions, "transitions", endpoints.DefaultTransitions, "transition sample indices")
}

func deriveMovementRecords(series []ingest.MovementSeries, transitions []int, window int) ([][]string, error) {
	var records [][]string
	for _, s := range series {
		metrics, err := endpoints.DeriveMovement(s.Values, transitions, window)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.ID, err)
		}
		for _, m := range metrics {
			records = append(records, []string{s.ID, m.Name, strconv.FormatFloat(m.Value, 'g', -1, 64)})
		}
	}
	return records, nil
}
