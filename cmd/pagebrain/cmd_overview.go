package main

import (
	"github.com/spf13/cobra"
)

// overviewCmd prints an overview of a page.
var overviewCmd = &cobra.Command{
	Use:   "overview <url>",
	Short: "Print an overview of a page",
	Long: `Summarizes the page in one request when the model can see all of it,
otherwise summarizes it in overlapping chunks and merges the summaries.`,
	Args: cobra.ExactArgs(1),
	RunE: runOverview,
}

func runOverview(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := bootstrap(ctx, appConfig, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	if a.settings.Snapshot().SelectionRequired() {
		return errNoModel
	}

	sess, err := a.newSession(newPrintSurface(cmd.OutOrStdout(), cmd.ErrOrStderr(), rawOutput), false)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Open(ctx, args[0]); err != nil {
		return err
	}
	return sess.Overview(ctx)
}
