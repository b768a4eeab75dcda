package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pagebrain/cmd/pagebrain/chat"
	"pagebrain/internal/config"
	"pagebrain/internal/logging"
	"pagebrain/internal/session"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration
	useBrowser bool
	storeFlag  string

	// Loaded in PersistentPreRunE
	appConfig *config.Config
)

// rootCmd opens the interactive chat.
var rootCmd = &cobra.Command{
	Use:   "pagebrain [url]",
	Short: "Talk to a page with an OpenAI-compatible model",
	Long: `pagebrain loads a web page or a local document and lets you converse
about it with any OpenAI-compatible chat-completion endpoint (Ollama,
OpenAI, llama.cpp, ...).

Run with a URL or a path to start the interactive chat. Inside the chat,
type /help to see the commands.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if useBrowser {
			cfg.Browser.Enabled = true
		}
		if storeFlag != "" {
			cfg.Storage.Driver = storeFlag
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if err := logging.Initialize(cfg.LoggingOptions()); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		appConfig = cfg
		logging.Boot("pagebrain starting: command=%s store=%s browser=%v", cmd.Name(), cfg.Storage.Driver, cfg.Browser.Enabled)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Timeout for one-shot commands")
	rootCmd.PersistentFlags().BoolVar(&useBrowser, "browser", false, "Load pages through Chrome (rendered DOM)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Storage driver override: sqlite3, sqlite or memory")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(researchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !session.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// commandContext returns a context bounded by --timeout and cancelled on
// SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	url := ""
	if len(args) > 0 {
		url = args[0]
	}
	if url == "" {
		return cmd.Help()
	}

	surface := chat.NewSurface()
	a, err := bootstrap(ctx, appConfig, url)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.newSession(surface, appConfig.Research.AutoAnalyze)
	if err != nil {
		return err
	}
	defer sess.Close()

	watcher, err := a.watch(ctx, url, surface.Reload)
	if err != nil {
		logging.BootWarn("File watching disabled: %v", err)
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	return chat.Run(ctx, chat.Options{
		URL:     url,
		Session: sess,
		Surface: surface,
	})
}
