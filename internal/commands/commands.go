// Package commands interprets slash commands typed into the chat input.
//
// The table is a fixed, ordered list of tagged variants. Every action takes
// the session surface (Env) as a parameter; nothing is captured.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"pagebrain/internal/logging"
	"pagebrain/internal/research"
	"pagebrain/internal/settings"
)

// Prefix starts every command.
const Prefix = "/"

// Kind tags what a command does with the conversation.
type Kind int

const (
	KindLocal Kind = iota // side effect only, no completion call
	KindQuery             // produces a query to send
	KindAgent             // performs its own completion calls
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindQuery:
		return "query"
	case KindAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Outcome tells the session whether to send Query as a user turn.
type Outcome struct {
	Query string
	Send  bool
}

// ValidationError reports a command used without a required argument.
type ValidationError struct {
	Command string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Command + ": " + e.Message
}

// Env is the session state commands act on.
type Env interface {
	// Notice shows a local message that is not part of the conversation.
	Notice(text string)
	Config() settings.Config
	UpdateSettings(ctx context.Context, p settings.Patch) error
	ResetSettings(ctx context.Context) error
	ResetHistory()
	ResearchNotes() []research.Note
	ResetResearchNotes(ctx context.Context) error
	// ResetPageAnalysis forgets whether the current page was analyzed.
	ResetPageAnalysis()
	SetResearchTrigger(visible bool)
	// AnalyzeIfRequired runs the research pass when the session is set to
	// analyze pages automatically and the current page has no verdict yet.
	AnalyzeIfRequired(ctx context.Context) error
	AnalyzeNow(ctx context.Context) error
	Overview(ctx context.Context) error
	BeginModelSelection(ctx context.Context) error
}

// Command is one entry of the table.
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Kind        Kind
	Run         func(ctx context.Context, env Env, args string) (Outcome, error)
}

// Matches reports whether word (already lower-cased) names this command.
func (c Command) Matches(word string) bool {
	if word == c.Name {
		return true
	}
	for _, alias := range c.Aliases {
		if word == alias {
			return true
		}
	}
	return false
}

// Builtins returns the command table in match order.
func Builtins() []Command {
	return []Command{
		{
			Name:        "/help",
			Usage:       "/help",
			Description: "List the commands",
			Kind:        KindLocal,
			Run:         runHelp,
		},
		{
			Name:        "/overview",
			Usage:       "/overview",
			Description: "Summarize the current page",
			Kind:        KindAgent,
			Run:         runOverview,
		},
		{
			Name:        "/tldr",
			Usage:       "/tldr",
			Description: "Ask for a short summary as part of the conversation",
			Kind:        KindQuery,
			Run:         runTLDR,
		},
		{
			Name:        "/reset",
			Usage:       "/reset",
			Description: "Restore the default configuration, clear research notes and choose a model again",
			Kind:        KindLocal,
			Run:         runReset,
		},
		{
			Name:        "/reset-history",
			Usage:       "/reset-history",
			Description: "Start the conversation about this page over",
			Kind:        KindLocal,
			Run:         runResetHistory,
		},
		{
			Name:        "/research",
			Usage:       "/research <goal>",
			Description: "Evaluate every page you visit against a research goal (clears notes)",
			Kind:        KindAgent,
			Run:         runResearch,
		},
		{
			Name:        "/stop-research",
			Usage:       "/stop-research",
			Description: "Leave research mode and clear notes",
			Kind:        KindLocal,
			Run:         runStopResearch,
		},
		{
			Name:        "/research-now",
			Aliases:     []string{"/reanalyze"},
			Usage:       "/research-now",
			Description: "Analyze the current page for the research goal again",
			Kind:        KindAgent,
			Run:         runResearchNow,
		},
		{
			Name:        "/notes",
			Usage:       "/notes",
			Description: "Show the research notes grouped by relevance",
			Kind:        KindLocal,
			Run:         runNotes,
		},
		{
			Name:        "/config",
			Usage:       "/config",
			Description: "Show the current configuration",
			Kind:        KindLocal,
			Run:         runConfig,
		},
		{
			Name:        "/models",
			Usage:       "/models",
			Description: "List the available models and choose one",
			Kind:        KindLocal,
			Run:         runModels,
		},
	}
}

// Lookup finds the first command named word, case-insensitively.
func Lookup(word string) (Command, bool) {
	word = strings.ToLower(word)
	for _, cmd := range Builtins() {
		if cmd.Matches(word) {
			return cmd, true
		}
	}
	return Command{}, false
}

// Interpret evaluates one submitted input. Text without the prefix is
// returned as the query to send. Errors are for the caller to show; an
// unknown command is reported through env.Notice.
func Interpret(ctx context.Context, env Env, input string) (Outcome, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, Prefix) {
		return Outcome{Query: input, Send: input != ""}, nil
	}

	word, args := input, ""
	if i := strings.IndexFunc(input, unicode.IsSpace); i >= 0 {
		word, args = input[:i], input[i:]
	}
	cmd, ok := Lookup(word)
	if !ok {
		logging.CommandsDebug("Unknown command %q", word)
		env.Notice(fmt.Sprintf("Unknown command: %s. Type /help to see the commands.", word))
		return Outcome{}, nil
	}

	logging.Commands("Running %s (%s)", cmd.Name, cmd.Kind)
	return cmd.Run(ctx, env, strings.TrimSpace(args))
}

// HelpText renders the usage list.
func HelpText(cmds []Command) string {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, cmd := range cmds {
		usage := cmd.Usage
		if len(cmd.Aliases) > 0 {
			usage += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		fmt.Fprintf(&sb, "- `%s`: %s\n", usage, cmd.Description)
	}
	sb.WriteString("\nAnything else is sent to the model together with the page content.")
	return sb.String()
}

func runHelp(_ context.Context, env Env, _ string) (Outcome, error) {
	env.Notice(HelpText(Builtins()))
	return Outcome{}, nil
}

func runOverview(ctx context.Context, env Env, _ string) (Outcome, error) {
	return Outcome{}, env.Overview(ctx)
}

// TLDRQuery is the turn sent for /tldr.
const TLDRQuery = "Give a short summary of the page content in at most five bullet points."

func runTLDR(_ context.Context, _ Env, _ string) (Outcome, error) {
	return Outcome{Query: TLDRQuery, Send: true}, nil
}

func runReset(ctx context.Context, env Env, _ string) (Outcome, error) {
	if err := env.ResetSettings(ctx); err != nil {
		return Outcome{}, err
	}
	if err := env.ResetResearchNotes(ctx); err != nil {
		return Outcome{}, err
	}
	env.ResetPageAnalysis()
	env.SetResearchTrigger(false)
	env.Notice("Configuration reset to defaults.")
	return Outcome{}, env.BeginModelSelection(ctx)
}

func runResetHistory(_ context.Context, env Env, _ string) (Outcome, error) {
	env.ResetHistory()
	env.Notice("Conversation history cleared.")
	return Outcome{}, nil
}

func runResearch(ctx context.Context, env Env, goal string) (Outcome, error) {
	if goal == "" {
		return Outcome{}, &ValidationError{Command: "/research", Message: "a research goal is required, e.g. /research <goal>"}
	}
	if err := env.UpdateSettings(ctx, settings.Patch{ResearchGoal: settings.String(goal)}); err != nil {
		return Outcome{}, err
	}
	if err := env.ResetResearchNotes(ctx); err != nil {
		return Outcome{}, err
	}
	env.ResetPageAnalysis()
	env.SetResearchTrigger(true)
	env.Notice(fmt.Sprintf("Research mode on. Goal: %s", goal))
	return Outcome{}, env.AnalyzeIfRequired(ctx)
}

func runStopResearch(ctx context.Context, env Env, _ string) (Outcome, error) {
	if err := env.UpdateSettings(ctx, settings.Patch{ResearchGoal: settings.String("")}); err != nil {
		return Outcome{}, err
	}
	if err := env.ResetResearchNotes(ctx); err != nil {
		return Outcome{}, err
	}
	env.ResetPageAnalysis()
	env.SetResearchTrigger(false)
	env.Notice("Research mode off.")
	return Outcome{}, nil
}

func runResearchNow(ctx context.Context, env Env, _ string) (Outcome, error) {
	if !env.Config().ResearchActive() {
		return Outcome{}, &ValidationError{Command: "/research-now", Message: "no research goal set, use /research <goal> first"}
	}
	env.ResetPageAnalysis()
	return Outcome{}, env.AnalyzeNow(ctx)
}

func runNotes(_ context.Context, env Env, _ string) (Outcome, error) {
	env.Notice(research.RenderNotes(env.Config().ResearchGoal, env.ResearchNotes()))
	return Outcome{}, nil
}

func runConfig(_ context.Context, env Env, _ string) (Outcome, error) {
	cfg := env.Config()
	cfg.APIToken = MaskToken(cfg.APIToken)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return Outcome{}, fmt.Errorf("render configuration: %w", err)
	}
	env.Notice("The current configuration is:\n```json\n" + string(data) + "\n```")
	return Outcome{}, nil
}

func runModels(ctx context.Context, env Env, _ string) (Outcome, error) {
	return Outcome{}, env.BeginModelSelection(ctx)
}

// MaskToken hides all but the last four characters of a token.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "********"
	}
	return "********" + token[len(token)-4:]
}
