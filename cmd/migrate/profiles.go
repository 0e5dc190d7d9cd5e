package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/cli"
	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect source-system profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := config.ListProfiles(config.ExpandPath(viper.GetString("profiles_dir")))
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show a profile's type table, static lists and dataset layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.LoadProfile(config.ExpandPath(viper.GetString("profiles_dir")), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProfile(p))
			return nil
		},
	})

	return cmd
}

func renderProfile(p *config.Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Source:"), p.Source)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Description:"), p.Description)
	}
	fmt.Fprintf(&b, "%s %s\n\n", cli.BoldStyle.Render("Default domain:"), p.Domain())

	types := p.BuiltinTypes()
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, types[k]}
	}
	b.WriteString(cli.RenderTable([]string{"Source type", "Target type"}, rows))
	b.WriteString("\n\n")

	domains := make([]string, 0, len(p.DomainMapping))
	for d := range p.DomainMapping {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	rows = make([][]string, len(domains))
	for i, d := range domains {
		rows[i] = []string{d, p.DomainMapping[d]}
	}
	b.WriteString(cli.RenderTable([]string{"Domain", "Dataset"}, rows))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Reference tables:"), strings.Join(p.SCDDetection.Type1Tables, ", "))
	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("History tables:"), strings.Join(p.SCDDetection.Type2Tables, ", "))
	fmt.Fprintf(&b, "%s %s", cli.BoldStyle.Render("Incremental patterns:"), strings.Join(p.IncrementalPatterns, ", "))

	return cli.RenderBox(p.Name, b.String())
}
