package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/danielzillmann-hue/transformation-agent/internal/classification"
	"github.com/danielzillmann-hue/transformation-agent/internal/cli"
	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/llm"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show how each table would be loaded, without generating anything",
		Long: `Run the classification rules over an analysis document and print the
decision for every table: its load kind, the rule that decided it and the
confidence. Nothing is written.

Examples:
  migrate classify --analysis analysis_results.json
  migrate classify --analysis analysis_results.json --semantic --json`,
		RunE: runClassify,
	}

	cmd.Flags().StringP("analysis", "a", "", "analysis document (path or URI)")
	cmd.Flags().StringP("categorization", "c", "", "domain categorization document")
	cmd.Flags().Bool("semantic", false, "ask a model to classify tables no static rule covers")
	cmd.Flags().Bool("json", false, "print decisions as JSON")
	_ = cmd.MarkFlagRequired("analysis")

	_ = viper.BindPFlag("classify.analysis", cmd.Flags().Lookup("analysis"))
	_ = viper.BindPFlag("classify.categorization", cmd.Flags().Lookup("categorization"))
	_ = viper.BindPFlag("classify.semantic", cmd.Flags().Lookup("semantic"))
	_ = viper.BindPFlag("classify.json", cmd.Flags().Lookup("json"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, profile, err := loadRunConfig()
	if err != nil {
		return err
	}

	fetcher := newFetcher()
	records, err := loadRecords(ctx, fetcher, viper.GetString("classify.analysis"))
	if err != nil {
		return err
	}
	cat, err := loadCategorization(ctx, fetcher, viper.GetString("classify.categorization"))
	if err != nil {
		return err
	}

	opts := classification.OptionsFromProfile(profile, cfg.Classification)
	opts.Logger = slog.Default()
	if viper.GetBool("classify.semantic") || cfg.Classification.Semantic {
		classifier, clsErr := createTableClassifier(cfg)
		if clsErr != nil {
			return common.NewUserError("semantic classification is enabled but no model is available", clsErr)
		}
		opts.Classifier = classifier
	}

	engine, err := classification.NewEngine(opts)
	if err != nil {
		return common.NewUserError("invalid classification rules", err)
	}

	for _, rec := range records {
		if rec.FileKind == model.FileKindProcedure || rec.FileKind == model.FileKindETLMapping {
			continue
		}
		var analysis model.TableAnalysis
		if err := llm.ParseInto(rec.AnalysisText, &analysis); err != nil {
			slog.Debug("Skipping record", "file", rec.FileName, "error", err)
			continue
		}
		table := analysis.Schema()
		if table.Name == "" {
			continue
		}
		engine.Classify(ctx, table, cat.DomainFor(table.Name, profile.Domain()))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	decisions := engine.Decisions()
	out := cmd.OutOrStdout()

	if viper.GetBool("classify.json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	}

	rows := make([][]string, len(decisions))
	for i, d := range decisions {
		rows[i] = []string{d.TableName, string(d.Kind), string(d.Source), string(d.Confidence)}
	}
	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%d tables classified", len(decisions))))
	fmt.Fprintln(out, cli.RenderTable([]string{"Table", "Load", "Decided by", "Confidence"}, rows))
	fmt.Fprintln(out)
	fmt.Fprintln(out, cli.RenderDecisionSources(engine.Stats()))
	fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("Rules: %v", engine.Rules())))
	return nil
}
