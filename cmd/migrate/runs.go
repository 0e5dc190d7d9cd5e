package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/cli"
	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/service"
	"github.com/danielzillmann-hue/transformation-agent/internal/storage"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the history of generation runs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			db, err := openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory(db)

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRuns(runs))
			return nil
		},
	}
	list.Flags().IntP("limit", "n", 20, "number of runs to show (0 = all)")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the decisions, fallback types and artifacts of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory(db)

			out, err := renderRun(cmd, db, args[0])
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return common.NewUserError("no such run", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	})

	return cmd
}

func renderRun(cmd *cobra.Command, reader service.RunReader, id string) (string, error) {
	ctx := cmd.Context()

	run, err := reader.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	decisions, err := reader.GetDecisions(ctx, id)
	if err != nil {
		return "", err
	}
	fallbacks, err := reader.GetFallbackTypes(ctx, id)
	if err != nil {
		return "", err
	}
	artifacts, err := reader.GetArtifacts(ctx, id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Status:"), run.Status)
	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Source:"), run.SourceSystem)
	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Output:"), run.OutputDir)
	if run.Error != "" {
		fmt.Fprintf(&b, "%s\n", cli.FormatError(run.Error))
	}
	b.WriteString("\n")

	paths := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		paths[strings.ToLower(a.TableName)] = a.Path
	}
	rows := make([][]string, len(decisions))
	for i, d := range decisions {
		rows[i] = []string{d.TableName, string(d.Kind), string(d.Source), string(d.Confidence), paths[strings.ToLower(d.TableName)]}
	}
	b.WriteString(cli.RenderTable([]string{"Table", "Load", "Decided by", "Confidence", "Definition"}, rows))

	if len(fallbacks) > 0 {
		rows = make([][]string, len(fallbacks))
		for i, f := range fallbacks {
			rows[i] = []string{f.BaseType, f.TargetType, strconv.Itoa(f.Occurrences)}
		}
		b.WriteString("\n\n")
		b.WriteString(cli.RenderTable([]string{"Unmapped type", "Used", "Columns"}, rows))
	}

	return cli.RenderBox("Run "+run.ID, b.String()), nil
}
