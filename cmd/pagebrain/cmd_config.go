package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pagebrain/internal/commands"
	"pagebrain/internal/config"
	"pagebrain/internal/settings"
)

// configCmd manages the persisted assistant settings and the bootstrap file.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the assistant configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (token masked)",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one key: llm, prompt, chat_url, models_url, apiToken, research_goal",
	Long: `Sets one persisted configuration key. An empty value clears it.

Example:
  pagebrain config set chat_url https://api.openai.com/v1/chat/completions
  pagebrain config set apiToken "$OPENAI_API_KEY"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigReset,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config.yaml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configSetCmd, configResetCmd, configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.settings.Snapshot()
	cfg.APIToken = commands.MaskToken(cfg.APIToken)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	patch, err := settings.PatchFor(settings.Key(args[0]), args[1])
	if err != nil {
		return err
	}

	a, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.settings.Update(ctx, patch); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s.\n", args[0])
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.settings.Reset(ctx); err != nil {
		return err
	}
	if err := a.notes.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}
