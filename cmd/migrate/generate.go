package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/danielzillmann-hue/transformation-agent/internal/cli"
	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/ddl"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/danielzillmann-hue/transformation-agent/internal/pipeline"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the Dataform project for a legacy schema",
		Long: `Generate one Dataform definition per analyzed table.

Input is either an analysis document (a JSON array of records, or the
object form keyed by file name) or a directory of DDL scripts parsed
without a model. Tables are grouped into business domains using the
optional categorization document. Each table also gets data-quality
assertions unless validation.assertions is false. ETL mapping records
become views under definitions/intermediate; with --semantic a model
writes their SQL, otherwise a scaffold over the sources is rendered.

Examples:
  migrate generate --analysis runs/abc/analysis_results.json --categorization runs/abc/data_categorization.json
  migrate generate --ddl-dir ./schema --output-root ./out
  migrate generate --analysis gs://bucket/analysis.json --semantic`,
		RunE: runGenerate,
	}

	cmd.Flags().StringP("analysis", "a", "", "analysis document (path or gs://, s3://, az:// URI)")
	cmd.Flags().String("ddl-dir", "", "directory of DDL scripts to parse instead of an analysis document")
	cmd.Flags().StringP("categorization", "c", "", "domain categorization document")
	cmd.Flags().StringP("output-root", "o", "", "directory that receives one folder per run (default: runs)")
	cmd.Flags().String("run-id", "", "run identifier (default: random UUID)")
	cmd.Flags().IntP("workers", "w", 0, "tables generated in parallel (default: 5)")
	cmd.Flags().Bool("semantic", false, "ask a model to classify tables no static rule covers and to write ETL mapping SQL")
	cmd.Flags().Bool("no-history", false, "do not record the run in the history database")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	_ = viper.BindPFlag("generate.analysis", cmd.Flags().Lookup("analysis"))
	_ = viper.BindPFlag("generate.ddl_dir", cmd.Flags().Lookup("ddl-dir"))
	_ = viper.BindPFlag("generate.categorization", cmd.Flags().Lookup("categorization"))
	_ = viper.BindPFlag("generate.run_id", cmd.Flags().Lookup("run-id"))
	_ = viper.BindPFlag("generate.no_history", cmd.Flags().Lookup("no-history"))
	_ = viper.BindPFlag("generate.no_progress", cmd.Flags().Lookup("no-progress"))
	_ = viper.BindPFlag("output_root", cmd.Flags().Lookup("output-root"))
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("classification.semantic", cmd.Flags().Lookup("semantic"))

	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	analysisURI := viper.GetString("generate.analysis")
	ddlDir := viper.GetString("generate.ddl_dir")
	if (analysisURI == "") == (ddlDir == "") {
		return common.NewUserError("exactly one of --analysis or --ddl-dir is required", nil)
	}

	cfg, profile, err := loadRunConfig()
	if err != nil {
		return err
	}

	runID := viper.GetString("generate.run_id")
	if runID == "" {
		runID = uuid.NewString()
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), filepath.Join(cfg.OutputRoot, runID))

	fetcher := newFetcher()

	var records []model.AnalysisRecord
	if ddlDir != "" {
		records, err = ddl.NewAnalyzer(profile, slog.Default()).AnalyzeDir(ctx, ddlDir)
	} else {
		records, err = loadRecords(ctx, fetcher, analysisURI)
	}
	if err != nil {
		return err
	}

	cat, err := loadCategorization(ctx, fetcher, viper.GetString("generate.categorization"))
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		RunID:     runID,
		Overrides: loadOverrides(ctx, fetcher, cfg.TypeOverrides),
		Logger:    slog.Default(),
	}

	if cfg.Classification.Semantic {
		classifier, clsErr := createTableClassifier(cfg)
		if clsErr != nil {
			return common.NewUserError("semantic classification is enabled but no model is available", clsErr)
		}
		opts.Classifier = classifier
		opts.MappingWriter = classifier.MappingWriter()
	}

	if !viper.GetBool("generate.no_history") {
		db, dbErr := openHistory(ctx)
		if dbErr != nil {
			slog.Warn("Run history unavailable", "error", dbErr)
		} else {
			defer closeHistory(db)
			opts.Recorder = db
		}
	}

	out := cmd.OutOrStdout()
	var bar *progressbar.ProgressBar
	if !viper.GetBool("generate.no_progress") {
		bar = cli.NewProgressBar(out, countTables(records), "Generating definitions...")
		opts.Progress = bar
	}

	runner, err := pipeline.NewRunner(*cfg, profile, opts)
	if err != nil {
		return common.NewUserError("invalid classification rules", err)
	}

	slog.Info("Starting generation",
		"run_id", runID,
		"source_system", profile.Name,
		"records", len(records))

	result, err := runner.Run(ctx, records, cat)
	if bar != nil {
		// Skipped records never tick the bar.
		_ = bar.Finish()
	}
	if err != nil {
		if interrupts.WasInterrupted() {
			return fmt.Errorf("generation interrupted: %w", err)
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	return printSummary(out, result)
}

// countTables estimates the progress total from records that may carry a table.
func countTables(records []model.AnalysisRecord) int {
	n := 0
	for _, r := range records {
		if r.FileKind != model.FileKindProcedure && r.FileKind != model.FileKindETLMapping {
			n++
		}
	}
	return n
}

func printSummary(w io.Writer, result *pipeline.Result) error {
	if _, err := fmt.Fprintln(w, cli.RenderRunSummary(result)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if len(result.Failed) > 0 {
		if _, err := fmt.Fprintln(os.Stderr, cli.FormatWarning("Some tables were not generated; see the summary above")); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}
