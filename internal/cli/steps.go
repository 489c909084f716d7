package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fortressi/sagaflow/order"
)

func newStepsCommand(a *app) *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Print the configured saga definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := buildDefinition(a.cfg, order.NewSimulated(0, nil))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dot {
				graph, err := def.ExportToDot()
				if err != nil {
					return fmt.Errorf("failed to export definition: %w", err)
				}
				fmt.Fprintln(out, graph)
				return nil
			}

			fmt.Fprintln(out, def.Name())
			for i, name := range def.StepNames() {
				fmt.Fprintf(out, "%d. %s\n", i+1, name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "print the definition as a Graphviz digraph")
	return cmd
}
