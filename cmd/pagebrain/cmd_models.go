package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pagebrain/internal/settings"
)

// modelsCmd lists the models or selects one.
var modelsCmd = &cobra.Command{
	Use:   "models [id]",
	Short: "List the available models, or select one",
	Long: `Without an argument, lists the models served at models_url; the selected
one is marked with '*'. With an argument, selects that model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		if err := a.settings.Update(ctx, settings.Patch{LLM: settings.String(args[0])}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "I have selected the following LLM: %s\n", args[0])
		return nil
	}

	cfg := a.settings.Snapshot()
	models, err := a.client.ListModels(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to fetch models from %s: %w", cfg.ModelsURL, err)
	}
	if len(models) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No models are available at %s\n", cfg.ModelsURL)
		return nil
	}
	for _, m := range models {
		mark := " "
		if m.ID == cfg.LLM {
			mark = "*"
		}
		if m.OwnedBy != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", mark, m.ID, m.OwnedBy)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, m.ID)
		}
	}
	return nil
}
