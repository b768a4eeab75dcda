package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pagebrain/internal/logging"
	"pagebrain/internal/research"
	"pagebrain/internal/session"
	"pagebrain/internal/settings"
)

var (
	researchGoal string
	researchStop bool
)

// researchCmd evaluates pages against a research goal in batch.
var researchCmd = &cobra.Command{
	Use:   "research [url...]",
	Short: "Evaluate pages against a research goal",
	Long: `Analyzes each page for the research goal and records a note for it.

--goal starts a new research (the notes are cleared); without it the current
goal is used. --stop leaves research mode and clears the notes.

Example:
  pagebrain research --goal "effects of sleep on memory" https://a.example https://b.example`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&researchGoal, "goal", "", "Start a new research with this goal")
	researchCmd.Flags().BoolVar(&researchStop, "stop", false, "Stop research mode and clear the notes")
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	first := ""
	if len(args) > 0 {
		first = args[0]
	}
	a, err := bootstrap(ctx, appConfig, first)
	if err != nil {
		return err
	}
	defer a.Close()

	out := newPrintSurface(cmd.OutOrStdout(), cmd.ErrOrStderr(), rawOutput)
	sess, err := a.newSession(out, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch {
	case researchStop:
		return sess.Submit(ctx, "/stop-research")
	case strings.TrimSpace(researchGoal) != "":
		if err := a.settings.Update(ctx, settings.Patch{ResearchGoal: settings.String(strings.TrimSpace(researchGoal))}); err != nil {
			return err
		}
		if err := a.notes.Reset(ctx); err != nil {
			return err
		}
	}

	cfg := a.settings.Snapshot()
	if !cfg.ResearchActive() {
		return fmt.Errorf("no research goal set, use --goal")
	}
	if cfg.SelectionRequired() {
		return errNoModel
	}

	failed := 0
	for _, url := range args {
		fmt.Fprintf(cmd.ErrOrStderr(), "== %s\n", url)
		if err := sess.Open(ctx, url); err != nil {
			failed++
			continue
		}
		if err := sess.AnalyzeNow(ctx); err != nil {
			if !session.IsReported(err) {
				return err
			}
			failed++
		}
	}

	logging.Research("Batch research finished: %d pages, %d failed", len(args), failed)
	out.AssistantMessage(research.RenderNotes(cfg.ResearchGoal, a.notes.List()))
	if failed > 0 {
		return fmt.Errorf("%d of %d pages could not be analyzed", failed, len(args))
	}
	return nil
}
