package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pagebrain/internal/research"
)

var notesJSON bool

// notesCmd prints the research notes.
var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Show the research notes",
	RunE:  runNotes,
}

var notesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all research notes",
	Args:  cobra.NoArgs,
	RunE:  runNotesClear,
}

func init() {
	notesCmd.Flags().BoolVar(&notesJSON, "json", false, "Print the notes as JSON")
	notesCmd.AddCommand(notesClearCmd)
}

func runNotes(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	notes := a.notes.List()
	if notesJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(notes)
	}

	out := newPrintSurface(cmd.OutOrStdout(), cmd.ErrOrStderr(), rawOutput)
	out.AssistantMessage(research.RenderNotes(a.settings.Snapshot().ResearchGoal, notes))
	return nil
}

func runNotesClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	n := a.notes.Len()
	if err := a.notes.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d research notes.\n", n)
	return nil
}
