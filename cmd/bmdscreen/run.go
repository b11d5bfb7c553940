package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"bmdscreen/internal/blob"
	"bmdscreen/internal/config"
	"bmdscreen/internal/doseresponse"
	"bmdscreen/internal/endpoints"
	"bmdscreen/internal/exporter"
	"bmdscreen/internal/feasibility"
	"bmdscreen/internal/infrastructure"
	"bmdscreen/internal/ingest"
	"bmdscreen/internal/modelfit"
	"bmdscreen/internal/resultstore"
	"bmdscreen/internal/screening"
)

var runFlags struct {
	input    string
	format   string
	sheet    string
	chemical string
	workers  int
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Screen a master observation table",
	Long: `Reads the master table, screens every (chemical, endpoint) unit and writes
flags.csv, dose_response.csv, fit_summary.csv and screening_report.xlsx to
<output.dir>/reports. The batch is stored in the result store and the report
files are published to the blob store when those are configured.

Use --chemical to screen a single chemical while debugging.`,
	Example: `  bmdscreen run --input observations.csv
  bmdscreen run --config bmdscreen.yaml --chemical C042`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFlags.input != "" {
			cfg.Input.Path = runFlags.input
		}
		if runFlags.format != "" {
			cfg.Input.Format = runFlags.format
		}
		if runFlags.sheet != "" {
			cfg.Input.Sheet = runFlags.sheet
		}
		if runFlags.workers > 0 {
			cfg.Screening.Workers = runFlags.workers
		}

		sel := screening.SelectAll()
		if runFlags.chemical != "" {
			sel = screening.SelectChemical(runFlags.chemical)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		batch, err := runScreening(ctx, cfg, sel, logger)
		if batch != nil {
			printSummary(cmd.OutOrStdout(), batch)
		}
		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.input, "input", "i", "", "master table (CSV or XLSX); overrides input.path")
	f.StringVar(&runFlags.format, "format", "", "input format: auto, csv or xlsx")
	f.StringVar(&runFlags.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	f.StringVar(&runFlags.chemical, "chemical", "", "screen only this chemical ID")
	f.IntVarP(&runFlags.workers, "workers", "w", 0, "concurrent units; overrides screening.workers")
}

// runScreening executes one batch end to end. Only input and output
// failures are returned as errors; unit failures are part of the batch.
func runScreening(ctx context.Context, cfg *config.Config, sel screening.Selection, logger *slog.Logger) (*screening.Batch, error) {
	if cfg.Input.Path == "" {
		return nil, fmt.Errorf("no input table: set --input or input.path")
	}

	paths, err := cfg.Paths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	obs, err := ingest.NewReader().ReadFile(cfg.Input.Path, ingest.Format(cfg.Input.Format), cfg.Input.Sheet)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "input loaded", slog.String("path", cfg.Input.Path), slog.Int("observations", len(obs)))

	runner, reporter, err := buildRunner(cfg, paths, providers, logger)
	if err != nil {
		return nil, err
	}

	batch, runErr := runner.Run(ctx, obs, sel)
	if closeErr := reporter.Close(); closeErr != nil && runErr == nil {
		runErr = fmt.Errorf("close reports: %w", closeErr)
	}
	if batch == nil {
		return nil, runErr
	}

	if err := storeBatch(ctx, cfg.Store, batch, logger); err != nil {
		return batch, err
	}
	if err := publishReports(ctx, cfg.Blob, batch.RunID, reporter.Files(), logger); err != nil {
		return batch, err
	}
	return batch, runErr
}

func buildRunner(cfg *config.Config, paths *config.Paths, providers *infrastructure.OTelProviders, logger *slog.Logger) (*screening.Runner, *exporter.BatchReporter, error) {
	variant, err := endpoints.ParseVariant(cfg.Screening.Variant)
	if err != nil {
		return nil, nil, err
	}
	catalogue, err := endpoints.NewCatalogue(variant)
	if err != nil {
		return nil, nil, err
	}
	zeroControl, err := doseresponse.ParseZeroControlPolicy(cfg.Screening.ZeroControlPolicy)
	if err != nil {
		return nil, nil, err
	}
	policy, err := feasibility.ParsePolicy(cfg.Screening.TrendStrategy, cfg.Screening.BucketTable)
	if err != nil {
		return nil, nil, err
	}
	classifier, err := feasibility.NewClassifier(policy)
	if err != nil {
		return nil, nil, err
	}
	tracer, err := screening.NewTracer(providers)
	if err != nil {
		return nil, nil, err
	}

	var modeler modelfit.Modeler
	if cfg.ModelFit.Command != "" {
		modeler = modelfit.NewExecModeler(cfg.ModelFit.Command, cfg.ModelFit.Args, cfg.ModelFit.Timeout, logger)
	} else {
		logger.Warn("no model-fit command configured, units needing a fit are marked not fit")
	}

	reporter, err := exporter.NewBatchReporter(paths, cfg.Output.WriteXLSX, logger)
	if err != nil {
		return nil, nil, err
	}

	runner := screening.NewRunner(catalogue, doseresponse.NewPreparer(zeroControl), classifier,
		modeler, reporter, tracer, logger, screening.Options{
			Workers:     cfg.Screening.Workers,
			UnitTimeout: cfg.Screening.UnitTimeout,
			Endpoints:   cfg.Screening.Endpoints,
		})
	return runner, reporter, nil
}

func storeBatch(ctx context.Context, cfg config.StoreConfig, batch *screening.Batch, logger *slog.Logger) error {
	if cfg.Driver == "none" {
		return nil
	}
	// Persist even when the run was interrupted
	ctx = context.WithoutCancel(ctx)

	store, err := resultstore.Open(ctx, cfg.Driver, cfg.DSN, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveBatch(ctx, batch)
}

func publishReports(ctx context.Context, cfg config.BlobConfig, runID string, files []string, logger *slog.Logger) error {
	store, err := blob.New(ctx, cfg)
	if err != nil || store == nil {
		return err
	}
	_, err = blob.NewPublisher(store, cfg.Prefix, logger).Publish(context.WithoutCancel(ctx), runID, files)
	return err
}

func printSummary(w io.Writer, b *screening.Batch) {
	fmt.Fprintf(w, "run %s (%s, %s, %s)\n", b.RunID, b.Variant, b.Policy, b.Selection)
	fmt.Fprintf(w, "  %s\n", b.Summary)
	for _, r := range b.Results {
		if r.Failed() {
			fmt.Fprintf(w, "  failed %s: %s\n", r.Key, strings.TrimSpace(r.ErrorMessage()))
		}
	}
}
