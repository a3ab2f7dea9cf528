package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coverdex/internal/workflow"
)

func newGraphCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "graph",
		Short:       "Print the workflow graph topology",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			def := workflow.Definition()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Nodes:")
			for _, node := range def.Nodes {
				fmt.Fprintf(out, "  %s\n", node)
			}
			fmt.Fprintln(out, "Edges:")
			for _, edge := range def.Edges {
				fmt.Fprintf(out, "  %s -> %s\n", edge.From, edge.To)
			}
			return nil
		},
	}
	return cmd
}
