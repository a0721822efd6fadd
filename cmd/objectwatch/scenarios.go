package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"objectwatch/internal/scenario"
)

var scenariosShow string

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List built-in scenarios",
	Long:  "scenarios lists the synthetic scenes watch can run without a detector. --show prints one as YAML.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if scenariosShow != "" {
			sc, err := scenario.Lookup(scenariosShow)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(sc); err != nil {
				return err
			}
			return enc.Close()
		}
		builtIn := scenario.BuiltIn()
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tOBJECTS\tDESCRIPTION")
		for _, name := range scenario.Names() {
			sc := builtIn[name]
			fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(sc.Objects), sc.Description)
		}
		return tw.Flush()
	},
}

func init() {
	scenariosCmd.Flags().StringVar(&scenariosShow, "show", "", "Print this scenario as YAML")
}
