package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askSelection string
	rawOutput    bool
)

// errNoModel is returned by one-shot commands before any model is chosen;
// they cannot prompt for one.
var errNoModel = errors.New("no model selected, run 'pagebrain models' to list them and 'pagebrain models <id>' to choose one")

// askCmd asks one question about a page.
var askCmd = &cobra.Command{
	Use:   "ask <url> <question...>",
	Short: "Ask one question about a page",
	Long: `Loads the page, sends the question together with the page content and
prints the answer.

With --selection the given text is added to the conversation first, as if it
had been selected on the page, so the question can refer to it.

Examples:
  pagebrain ask https://go.dev/doc/effective_go "How should errors be named?"
  pagebrain ask ./notes.md /tldr`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSelection, "selection", "", "Selected text to discuss")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "Print plain text instead of rendered markdown")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	url, question := args[0], strings.Join(args[1:], " ")

	a, err := bootstrap(ctx, appConfig, url)
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

	if err := sess.Open(ctx, url); err != nil {
		return err
	}
	if askSelection != "" {
		if err := sess.DiscussSelection(ctx, askSelection); err != nil {
			return err
		}
	}
	return sess.Submit(ctx, question)
}
