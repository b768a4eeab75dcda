// Package session is the assistant's state machine. A Session merges the page
// content, user turns, assistant turns, configuration changes and research
// mode into one conversation, and reports every outcome to a Surface.
//
// All user actions are serialized: an action arriving while another is in
// flight fails with ErrBusy, and input is disabled on the Surface for the
// duration of each action.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagebrain/internal/commands"
	"pagebrain/internal/history"
	"pagebrain/internal/llm"
	"pagebrain/internal/logging"
	"pagebrain/internal/overview"
	"pagebrain/internal/page"
	"pagebrain/internal/research"
	"pagebrain/internal/settings"
)

// Fixed user-facing texts.
const (
	WelcomeMessage        = "Type '/overview' to get an overview of the page content or /help to see the commands"
	NoModelMessage        = "There is no LLM selected. Choose one from the following:"
	ChooseModelMessage    = "Choose one of the following models:"
	SelectionMessage      = "You have selected text. Feel free to ask questions or discuss it."
	selectedModelTemplate = "I have selected the following LLM: %s"
	notOfferedTemplate    = "%q is not one of the offered models. Pick one from the list."
	keptModelTemplate     = "%q is not one of the offered models. Keeping %s."
)

// Surface is where the session shows its output.
type Surface interface {
	// AssistantMessage shows an assistant-style message.
	AssistantMessage(text string)
	// UserMessage echoes what the user submitted.
	UserMessage(text string)
	// Notice shows a local message that is not part of the conversation.
	Notice(text string)
	// Status sets the status line; an empty text clears it.
	Status(text string)
	SetResearchTrigger(visible bool)
	SetInputEnabled(enabled bool)
	// ModelChoices offers models to pick from; nil withdraws the offer.
	ModelChoices(models []string)
}

// Client is the chat-completion endpoint.
type Client interface {
	SendQuery(ctx context.Context, cfg settings.Config, messages []history.Message) (*llm.Response, error)
	ListModels(ctx context.Context, cfg settings.Config) ([]llm.Model, error)
}

// Deps are the collaborators of a Session. Settings, Notes, Client, Source
// and Surface are required.
type Deps struct {
	Settings *settings.Store
	Notes    *research.Notes
	Client   Client
	Source   page.Source
	Surface  Surface

	Tools    llm.ToolHandler // nil means llm.NoopToolHandler
	Overview *overview.Agent // nil builds one with default chunking
	Research *research.Agent // nil builds one over Notes
	Log      *zap.SugaredLogger

	// AutoAnalyze runs the research pass on every newly opened page while a
	// research goal is set.
	AutoAnalyze bool
}

// Session is one conversation about one page at a time.
type Session struct {
	id          string
	settings    *settings.Store
	notes       *research.Notes
	client      Client
	source      page.Source
	surface     Surface
	tools       llm.ToolHandler
	overview    *overview.Agent
	research    *research.Agent
	log         *zap.SugaredLogger
	autoAnalyze bool

	history  *history.History
	listener settings.ListenerID

	// turn is held for the whole of every user action.
	turn sync.Mutex

	mu         sync.RWMutex
	page       page.Page
	selecting  bool
	offered    []string
	lastPrompt string
}

// New wires a session. Nothing is loaded until Start or Open.
func New(d Deps) (*Session, error) {
	switch {
	case d.Settings == nil:
		return nil, errors.New("session: settings store is required")
	case d.Notes == nil:
		return nil, errors.New("session: research notes are required")
	case d.Client == nil:
		return nil, errors.New("session: chat client is required")
	case d.Source == nil:
		return nil, errors.New("session: page source is required")
	case d.Surface == nil:
		return nil, errors.New("session: surface is required")
	}

	s := &Session{
		id:          uuid.NewString(),
		settings:    d.Settings,
		notes:       d.Notes,
		client:      d.Client,
		source:      d.Source,
		surface:     d.Surface,
		tools:       d.Tools,
		overview:    d.Overview,
		research:    d.Research,
		log:         d.Log,
		autoAnalyze: d.AutoAnalyze,
	}
	if s.tools == nil {
		s.tools = llm.NoopToolHandler{}
	}
	if s.overview == nil {
		s.overview = overview.NewAgent(d.Client, overview.DefaultChunkSize, overview.DefaultOverlap)
	}
	if s.research == nil {
		s.research = research.NewAgent(d.Client, d.Settings, d.Notes)
	}
	if s.log == nil {
		s.log = logging.Get(logging.CategorySession)
	}
	s.log = s.log.With("session", s.id)

	s.history = history.New(
		func() string { return s.settings.Snapshot().Prompt },
		s.pageContent,
	)
	s.lastPrompt = d.Settings.Snapshot().Prompt
	s.listener = d.Settings.AddListener(s.onSettingsChange)
	return s, nil
}

// Close detaches the session from the settings store.
func (s *Session) Close() {
	s.settings.RemoveListener(s.listener)
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Page returns the page being discussed.
func (s *Session) Page() page.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// Messages returns the conversation as it would be sent.
func (s *Session) Messages() []history.Message {
	return s.history.Messages()
}

// Config returns the current configuration.
func (s *Session) Config() settings.Config {
	return s.settings.Snapshot()
}

// Selecting reports whether typed text is taken as a model id.
func (s *Session) Selecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selecting || s.settings.Snapshot().SelectionRequired()
}

func (s *Session) pageContent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page.Content
}

// onSettingsChange keeps the system message in step with the prompt.
func (s *Session) onSettingsChange(cfg settings.Config) {
	s.mu.Lock()
	changed := cfg.Prompt != s.lastPrompt
	s.lastPrompt = cfg.Prompt
	s.mu.Unlock()

	if changed && s.history.Len() > 0 {
		s.log.Debugw("system prompt changed, replacing system message")
		s.history.ReplaceSystemPrompt(cfg.Prompt)
	}
}

// begin takes the turn lock and disables input. The returned func undoes
// both and must always run. The lock is released before input is enabled,
// so the surface may start the next action from SetInputEnabled.
func (s *Session) begin() (func(), error) {
	if !s.turn.TryLock() {
		logging.SessionDebug("Rejected action while busy: session=%s", s.id)
		return nil, s.fail(ErrBusy)
	}
	s.surface.SetInputEnabled(false)
	return func() {
		s.surface.Status("")
		s.turn.Unlock()
		s.surface.SetInputEnabled(true)
	}, nil
}

// fail reports err to the user once and returns it marked as reported.
func (s *Session) fail(err error) error {
	if err == nil {
		return nil
	}
	var r reportedError
	if errors.As(err, &r) {
		return err
	}
	s.log.Warnw("action failed", "error", err)
	s.surface.Notice(DescribeError(err))
	return reportedError{err}
}

// Start greets the user, opens rawURL and asks for a model when none is
// selected.
func (s *Session) Start(ctx context.Context, rawURL string) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	s.surface.AssistantMessage(WelcomeMessage)
	if err := s.navigate(ctx, rawURL); err != nil {
		return err
	}
	if s.settings.Snapshot().SelectionRequired() {
		return s.beginModelSelection(ctx)
	}
	return nil
}

// Open navigates to rawURL.
func (s *Session) Open(ctx context.Context, rawURL string) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()
	return s.navigate(ctx, rawURL)
}

// Reload re-reads the current page, as after a navigation.
func (s *Session) Reload(ctx context.Context) error {
	return s.Open(ctx, s.Page().URL)
}

// navigate loads the page, restarts the conversation on it and resets the
// research state for it.
func (s *Session) navigate(ctx context.Context, rawURL string) error {
	s.surface.Status("Loading " + rawURL + " ...")
	p, err := s.source.Load(ctx, rawURL)
	if err != nil {
		return s.fail(fmt.Errorf("%w %s: %w", ErrPageLoad, rawURL, err))
	}
	if p.URL == "" {
		p.URL = rawURL
	}

	s.mu.Lock()
	s.page = p
	s.mu.Unlock()

	s.history.Init()
	s.research.ResetPage()
	s.log.Infow("page opened", "url", p.URL, "title", p.Title, "chars", len(p.Content))

	cfg := s.settings.Snapshot()
	s.surface.SetResearchTrigger(cfg.ResearchActive())
	return s.analyzeIfRequired(ctx)
}

// Submit handles one line of user input.
func (s *Session) Submit(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	s.surface.UserMessage(input)

	if s.Selecting() && !strings.HasPrefix(input, commands.Prefix) {
		return s.pickModel(ctx, input)
	}

	out, err := commands.Interpret(ctx, turnEnv{s}, input)
	if err != nil {
		return s.fail(err)
	}
	if !out.Send {
		return nil
	}
	return s.ask(ctx, out.Query)
}

// ask sends query as a user turn and records the answer.
func (s *Session) ask(ctx context.Context, query string) error {
	cfg := s.settings.Snapshot()
	if cfg.SelectionRequired() {
		return s.fail(llm.ErrModelRequired)
	}

	s.history.UserMessage(query)
	s.surface.Status("Thinking...")

	timer := logging.StartTimer(logging.CategorySession, "turn")
	resp, err := s.client.SendQuery(ctx, cfg, s.history.Messages())
	timer.Stop()
	if err != nil {
		return s.fail(err)
	}

	answer := resp.Content
	if len(resp.ToolCalls) > 0 {
		if toolAnswer, handled := s.tools.HandleToolCalls(ctx, resp.ToolCalls); handled {
			answer = toolAnswer
		}
	}
	s.history.AIMessage(answer)
	s.surface.AssistantMessage(answer)
	s.log.Debugw("turn completed", "answer_chars", len(answer), "history_len", s.history.Len())
	return nil
}

// SelectModel chooses model as the LLM.
func (s *Session) SelectModel(ctx context.Context, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil
	}
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()
	return s.selectModel(ctx, model)
}

// pickModel takes typed text as the model id. When models were offered only
// an offered id is accepted; otherwise the config is left as it is.
func (s *Session) pickModel(ctx context.Context, input string) error {
	s.mu.RLock()
	offered := s.offered
	s.mu.RUnlock()
	if len(offered) == 0 || slices.Contains(offered, input) {
		return s.selectModel(ctx, input)
	}

	cfg := s.settings.Snapshot()
	if cfg.SelectionRequired() {
		s.surface.Notice(fmt.Sprintf(notOfferedTemplate, input))
		return nil
	}
	s.endSelection()
	s.surface.Notice(fmt.Sprintf(keptModelTemplate, input, cfg.LLM))
	return nil
}

func (s *Session) endSelection() {
	s.mu.Lock()
	s.selecting = false
	s.offered = nil
	s.mu.Unlock()
	s.surface.ModelChoices(nil)
}

func (s *Session) selectModel(ctx context.Context, model string) error {
	err := s.settings.Update(ctx, settings.Patch{LLM: settings.String(model)})
	var persistErr *settings.PersistError
	if err != nil && !errors.As(err, &persistErr) {
		return s.fail(err)
	}

	s.endSelection()
	s.surface.AssistantMessage(fmt.Sprintf(selectedModelTemplate, model))
	s.history.Init()
	s.log.Infow("model selected", "model", model)

	if err != nil {
		// Selected for this session even though it was not saved.
		_ = s.fail(err)
	}
	return s.analyzeIfRequired(ctx)
}

// BeginModelSelection lists the models at models_url and offers them.
func (s *Session) BeginModelSelection(ctx context.Context) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()
	return s.beginModelSelection(ctx)
}

func (s *Session) beginModelSelection(ctx context.Context) error {
	cfg := s.settings.Snapshot()
	s.surface.Status("Fetching models...")
	models, err := s.client.ListModels(ctx, cfg)
	if err != nil {
		return s.fail(fmt.Errorf("failed to fetch models: %w", err))
	}

	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}

	s.mu.Lock()
	s.selecting = true
	s.offered = ids
	s.mu.Unlock()

	switch {
	case len(ids) == 0:
		s.surface.Notice("No models are available at " + cfg.ModelsURL + ". Type a model name to use it anyway.")
	case cfg.SelectionRequired():
		s.surface.Notice(NoModelMessage)
	default:
		s.surface.Notice(ChooseModelMessage)
	}
	s.surface.ModelChoices(ids)
	return nil
}

// DiscussSelection adds selected page text to the conversation so follow-up
// questions can refer to it.
func (s *Session) DiscussSelection(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	s.history.UserMessage("I have the following selected text and I may ask questions or discuss it.\n----\n" + text + "\n----")
	s.history.AIMessage(SelectionMessage)
	s.surface.AssistantMessage(SelectionMessage)
	return nil
}

// AnalyzeNow re-runs the research pass over the current page.
func (s *Session) AnalyzeNow(ctx context.Context) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()
	s.research.ResetPage()
	return s.analyze(ctx)
}

func (s *Session) analyzeIfRequired(ctx context.Context) error {
	if !s.autoAnalyze || s.settings.Snapshot().SelectionRequired() || !s.research.IsAnalysisRequired() {
		return nil
	}
	return s.analyze(ctx)
}

// analyze runs the research pass. The verdict is shown but is not part of
// the conversation.
func (s *Session) analyze(ctx context.Context) error {
	cfg := s.settings.Snapshot()
	if cfg.SelectionRequired() {
		return s.fail(llm.ErrModelRequired)
	}
	if !cfg.ResearchActive() {
		return s.fail(research.ErrNoGoal)
	}

	s.surface.Status("Analyzing page for research goal...")
	p := s.Page()
	msg, err := s.research.AnalyzePageForResearch(ctx, p.URL, p.Content, s.history.Messages())

	var persistErr *settings.PersistError
	switch {
	case err == nil:
	case errors.As(err, &persistErr):
		s.surface.AssistantMessage(s.withInsights(msg))
		return s.fail(err)
	default:
		logging.SessionError("Research analysis failed: session=%s url=%s: %v", s.id, p.URL, err)
		s.surface.AssistantMessage(msg + "\n\n" + DescribeError(err))
		return reportedError{err}
	}

	s.surface.AssistantMessage(s.withInsights(msg))
	return nil
}

func (s *Session) withInsights(msg string) string {
	if insights := s.research.PendingInsights(); insights != "" {
		return msg + "\n\n**Insights:** " + insights
	}
	return msg
}

// Overview generates an overview of the current page.
func (s *Session) Overview(ctx context.Context) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()
	return s.generateOverview(ctx)
}

// generateOverview runs the overview agent; the result becomes an assistant
// turn of the conversation.
func (s *Session) generateOverview(ctx context.Context) error {
	cfg := s.settings.Snapshot()
	if cfg.SelectionRequired() {
		return s.fail(llm.ErrModelRequired)
	}

	s.surface.Status("Generating overview...")
	text, err := s.overview.Generate(ctx, cfg, s.pageContent(), overview.Callbacks{
		OnProgress: func(done, total int) {
			s.surface.Status(fmt.Sprintf("Summarizing part %d of %d...", done, total))
		},
		OnError: func(err error) {
			s.log.Warnw("overview failed", "error", err)
		},
	})
	if err != nil {
		return s.fail(err)
	}
	s.history.AIMessage(text)
	s.surface.AssistantMessage(text)
	return nil
}
