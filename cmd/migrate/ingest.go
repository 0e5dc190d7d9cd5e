package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielzillmann-hue/transformation-agent/internal/cli"
	"github.com/danielzillmann-hue/transformation-agent/internal/ddl"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Parse DDL scripts into an analysis document",
		Long: `Walk a directory of legacy scripts and write the analysis document that
generate consumes. CREATE TABLE statements are parsed directly; stored
procedures and ETL exports are listed without analysis.

Examples:
  migrate ingest ./schema -o analysis_results.json`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().StringP("output", "o", "", "write the document to this file instead of stdout")
	_ = viper.BindPFlag("ingest.output", cmd.Flags().Lookup("output"))

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	_, profile, err := loadRunConfig()
	if err != nil {
		return err
	}

	records, err := ddl.NewAnalyzer(profile, slog.Default()).AnalyzeDir(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	data = append(data, '\n')

	output := viper.GetString("ingest.output")
	if output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(output, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Wrote %d records to %s", len(records), output)))
	return nil
}
