package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebrain/internal/research"
	"pagebrain/internal/settings"
	"pagebrain/internal/store"
)

// fakeEnv records every call; the settings are a real store over memory.
type fakeEnv struct {
	settings *settings.Store
	notes    []research.Note

	notices      []string
	calls        []string
	trigger      *bool
	overviewErr  error
	selectionErr error
}

func newFakeEnv(t *testing.T) *fakeEnv {
	t.Helper()
	defaults := settings.Config{Prompt: "default prompt", ChatURL: "http://chat", ModelsURL: "http://models"}
	return &fakeEnv{settings: settings.New(store.NewMemoryStore(), defaults)}
}

func (f *fakeEnv) Notice(text string)       { f.notices = append(f.notices, text) }
func (f *fakeEnv) Config() settings.Config { return f.settings.Snapshot() }
func (f *fakeEnv) UpdateSettings(ctx context.Context, p settings.Patch) error {
	f.calls = append(f.calls, "update")
	return f.settings.Update(ctx, p)
}
func (f *fakeEnv) ResetSettings(ctx context.Context) error {
	f.calls = append(f.calls, "reset-settings")
	return f.settings.Reset(ctx)
}
func (f *fakeEnv) ResetHistory()                  { f.calls = append(f.calls, "reset-history") }
func (f *fakeEnv) ResearchNotes() []research.Note { return f.notes }
func (f *fakeEnv) ResetResearchNotes(context.Context) error {
	f.calls = append(f.calls, "reset-notes")
	f.notes = nil
	return nil
}
func (f *fakeEnv) ResetPageAnalysis() { f.calls = append(f.calls, "reset-page") }
func (f *fakeEnv) SetResearchTrigger(visible bool) {
	f.trigger = &visible
}
func (f *fakeEnv) AnalyzeIfRequired(context.Context) error {
	f.calls = append(f.calls, "analyze-if-required")
	return nil
}
func (f *fakeEnv) AnalyzeNow(context.Context) error {
	f.calls = append(f.calls, "analyze-now")
	return nil
}
func (f *fakeEnv) Overview(context.Context) error {
	f.calls = append(f.calls, "overview")
	return f.overviewErr
}
func (f *fakeEnv) BeginModelSelection(context.Context) error {
	f.calls = append(f.calls, "select-model")
	return f.selectionErr
}

func TestInterpret_PassThrough(t *testing.T) {
	env := newFakeEnv(t)
	out, err := Interpret(context.Background(), env, "  what is this page about?  ")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Query: "what is this page about?", Send: true}, out)
	assert.Empty(t, env.calls)
	assert.Empty(t, env.notices)
}

func TestInterpret_Empty(t *testing.T) {
	out, err := Interpret(context.Background(), newFakeEnv(t), "   ")
	require.NoError(t, err)
	assert.False(t, out.Send)
}

func TestInterpret_UnknownCommand(t *testing.T) {
	env := newFakeEnv(t)
	out, err := Interpret(context.Background(), env, "/frobnicate now")
	require.NoError(t, err)
	assert.False(t, out.Send)
	require.Len(t, env.notices, 1)
	assert.Contains(t, env.notices[0], "Unknown command: /frobnicate")
}

func TestInterpret_CaseInsensitive(t *testing.T) {
	env := newFakeEnv(t)
	_, err := Interpret(context.Background(), env, "  /HeLp ")
	require.NoError(t, err)
	require.Len(t, env.notices, 1)
	for _, cmd := range Builtins() {
		assert.Contains(t, env.notices[0], cmd.Usage)
	}
	assert.Contains(t, env.notices[0], "/reanalyze")
}

func TestResearch_EmptyGoalIsValidationError(t *testing.T) {
	for _, input := range []string{"/research", "/research   ", "/RESEARCH"} {
		env := newFakeEnv(t)
		before := env.Config()

		out, err := Interpret(context.Background(), env, input)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, input)
		assert.Equal(t, "/research", verr.Command)
		assert.False(t, out.Send)
		assert.Equal(t, before, env.Config(), "no state change")
		assert.Empty(t, env.calls, "no side effects and no network call")
		assert.Nil(t, env.trigger)
	}
}

func TestResearch_SetsGoal(t *testing.T) {
	env := newFakeEnv(t)
	env.notes = []research.Note{{URL: "old"}}

	out, err := Interpret(context.Background(), env, "/research Cats and their Habits")
	require.NoError(t, err)
	assert.False(t, out.Send)
	assert.Equal(t, "Cats and their Habits", env.Config().ResearchGoal)
	assert.Empty(t, env.notes)
	require.NotNil(t, env.trigger)
	assert.True(t, *env.trigger)
	assert.Equal(t, []string{"update", "reset-notes", "reset-page", "analyze-if-required"}, env.calls)
}

func TestResearch_GoalAfterTab(t *testing.T) {
	env := newFakeEnv(t)
	_, err := Interpret(context.Background(), env, "/research\tcats")
	require.NoError(t, err)
	assert.Equal(t, "cats", env.Config().ResearchGoal)
	assert.Equal(t, []string{"Research mode on. Goal: cats"}, env.notices)
}

func TestStopResearch(t *testing.T) {
	env := newFakeEnv(t)
	require.NoError(t, env.settings.Update(context.Background(), settings.Patch{ResearchGoal: settings.String("cats")}))
	env.notes = []research.Note{{URL: "u"}}

	_, err := Interpret(context.Background(), env, "/stop-research")
	require.NoError(t, err)
	assert.False(t, env.Config().ResearchActive())
	assert.Empty(t, env.notes)
	require.NotNil(t, env.trigger)
	assert.False(t, *env.trigger)
}

func TestResearchNow(t *testing.T) {
	env := newFakeEnv(t)
	_, err := Interpret(context.Background(), env, "/research-now")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, env.calls)

	require.NoError(t, env.settings.Update(context.Background(), settings.Patch{ResearchGoal: settings.String("cats")}))
	for _, input := range []string{"/research-now", "/reanalyze"} {
		env.calls = nil
		_, err := Interpret(context.Background(), env, input)
		require.NoError(t, err)
		assert.Equal(t, []string{"reset-page", "analyze-now"}, env.calls, input)
	}
}

func TestReset(t *testing.T) {
	env := newFakeEnv(t)
	ctx := context.Background()
	require.NoError(t, env.settings.Update(ctx, settings.Patch{
		LLM:          settings.String("llama3"),
		Prompt:       settings.String("custom"),
		ChatURL:      settings.String("http://elsewhere"),
		ResearchGoal: settings.String("cats"),
	}))
	env.notes = []research.Note{{URL: "u"}}

	_, err := Interpret(ctx, env, "/reset")
	require.NoError(t, err)

	cfg := env.Config()
	assert.Equal(t, env.settings.Defaults(), cfg)
	assert.Empty(t, cfg.ResearchGoal)
	assert.Empty(t, cfg.LLM)
	assert.Empty(t, env.notes)
	assert.Equal(t, "select-model", env.calls[len(env.calls)-1])
}

func TestOverview_PropagatesError(t *testing.T) {
	env := newFakeEnv(t)
	env.overviewErr = errors.New("boom")
	out, err := Interpret(context.Background(), env, "/overview")
	assert.EqualError(t, err, "boom")
	assert.False(t, out.Send)
}

func TestTLDR_IsQuery(t *testing.T) {
	out, err := Interpret(context.Background(), newFakeEnv(t), "/tldr")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Query: TLDRQuery, Send: true}, out)
}

func TestConfig_MasksToken(t *testing.T) {
	env := newFakeEnv(t)
	require.NoError(t, env.settings.Update(context.Background(), settings.Patch{APIToken: settings.String("sk-supersecret-1234")}))

	_, err := Interpret(context.Background(), env, "/config")
	require.NoError(t, err)
	require.Len(t, env.notices, 1)
	assert.NotContains(t, env.notices[0], "supersecret")
	assert.Contains(t, env.notices[0], "********1234")
	assert.Contains(t, env.notices[0], `"chat_url": "http://chat"`)
}

func TestNotesAndHistory(t *testing.T) {
	env := newFakeEnv(t)
	_, err := Interpret(context.Background(), env, "/notes")
	require.NoError(t, err)
	assert.Equal(t, "No research notes yet.", env.notices[0])

	_, err = Interpret(context.Background(), env, "/reset-history")
	require.NoError(t, err)
	assert.Contains(t, env.calls, "reset-history")
}

func TestModels(t *testing.T) {
	env := newFakeEnv(t)
	_, err := Interpret(context.Background(), env, "/models")
	require.NoError(t, err)
	assert.Equal(t, []string{"select-model"}, env.calls)
}

func TestTable(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range Builtins() {
		assert.True(t, strings.HasPrefix(cmd.Name, Prefix), cmd.Name)
		assert.NotNil(t, cmd.Run, cmd.Name)
		assert.False(t, seen[cmd.Name], "duplicate %s", cmd.Name)
		seen[cmd.Name] = true
		for _, a := range cmd.Aliases {
			assert.False(t, seen[a], "duplicate alias %s", a)
			seen[a] = true
		}
	}
	for _, name := range []string{"/help", "/overview", "/reset", "/reset-history", "/research", "/stop-research", "/research-now", "/reanalyze", "/notes", "/config", "/models"} {
		assert.True(t, seen[name], name)
	}
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "********", MaskToken("short"))
	assert.Equal(t, "********wxyz", MaskToken("abcdefghijklmnopqrstuvwxyz"))
}
