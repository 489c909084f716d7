package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortressi/sagaflow"
)

func newDeadLettersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deadletters",
		Short: "List compensation failures reported to the configured sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sink, closeSink, err := buildSink(a.cfg.DeadLetter)
			if err != nil {
				return err
			}
			defer closeSink()

			if _, ok := sink.(*sagaflow.MemorySink); ok {
				return errNotPersistent
			}
			lister, ok := sink.(sagaflow.DeadLetterLister)
			if !ok {
				return errNotPersistent
			}

			letters, err := lister.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FAILED AT\tSAGA\tENTITY\tSTEP\tERROR")
			for _, l := range letters {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.FailedAt.Format(time.RFC3339), l.SagaID, l.EntityID, l.Step, l.Error)
			}
			return tw.Flush()
		},
	}
}
