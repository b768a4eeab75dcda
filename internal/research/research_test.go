package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebrain/internal/history"
	"pagebrain/internal/llm"
	"pagebrain/internal/settings"
	"pagebrain/internal/store"
)

type fakeCompleter struct {
	reply string
	err   error
	calls [][]history.Message
}

func (f *fakeCompleter) SendQuery(_ context.Context, _ settings.Config, msgs []history.Message) (*llm.Response, error) {
	f.calls = append(f.calls, msgs)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply}, nil
}

type staticConfig settings.Config

func (c staticConfig) Snapshot() settings.Config { return settings.Config(c) }

type failingKV struct{ store.KV }

func (failingKV) Set(context.Context, string, any) error { return errors.New("disk full") }
func (failingKV) Delete(context.Context, string) error   { return errors.New("disk full") }

var goalConfig = staticConfig{LLM: "m", ResearchGoal: "cats"}

func pageHistory(content string) []history.Message {
	h := history.New(func() string { return "sys" }, func() string { return content })
	h.Init()
	return h.Messages()
}

func fixedClock(a *Agent) time.Time {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return ts }
	return ts
}

func TestAnalyze_EmbeddedJSON(t *testing.T) {
	kv := store.NewMemoryStore()
	notes := NewNotes(kv)
	client := &fakeCompleter{reply: `Sure! {"summary":"a page about cats","isRelevant":true} thanks`}
	agent := NewAgent(client, goalConfig, notes)
	ts := fixedClock(agent)

	require.True(t, agent.IsAnalysisRequired())

	hist := pageHistory("cats purr")
	msg, err := agent.AnalyzePageForResearch(context.Background(), "https://example.org/cats", "cats purr", hist)
	require.NoError(t, err)
	assert.Equal(t, RelevantMessage+"\n\na page about cats", msg)

	require.Equal(t, 1, notes.Len())
	note := notes.List()[0]
	assert.True(t, note.IsRelevant)
	assert.Equal(t, "a page about cats", note.Summary)
	assert.Equal(t, "https://example.org/cats", note.URL)
	assert.Equal(t, ts, note.Timestamp)
	assert.NotEmpty(t, note.ID)

	assert.True(t, agent.Analyzed())
	assert.False(t, agent.IsAnalysisRequired())

	var persisted []Note
	found, err := kv.Get(context.Background(), store.NameResearchNotes, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, notes.List(), persisted)
}

func TestAnalyze_TransientHistory(t *testing.T) {
	client := &fakeCompleter{reply: `{"summary":"s","isRelevant":false,"insights":"none"}`}
	agent := NewAgent(client, goalConfig, NewNotes(store.NewMemoryStore()))

	hist := pageHistory("body text")
	before := append([]history.Message(nil), hist...)

	msg, err := agent.AnalyzePageForResearch(context.Background(), "u", "body text", hist)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, NotRelevantMessage))
	assert.Equal(t, "none", agent.PendingInsights())
	assert.Equal(t, before, hist, "caller history must not change")

	require.Len(t, client.calls, 1)
	sent := client.calls[0]
	require.Len(t, sent, len(hist)+1)
	last := sent[len(sent)-1]
	assert.Equal(t, history.RoleUser, last.Role)
	assert.Contains(t, last.Content, `"cats"`)
	assert.NotContains(t, last.Content, "Page content:", "content already in history is not repeated")
}

func TestAnalyze_IncludesContentWithoutHistory(t *testing.T) {
	client := &fakeCompleter{reply: `{"summary":"s","isRelevant":true}`}
	agent := NewAgent(client, goalConfig, NewNotes(store.NewMemoryStore()))

	_, err := agent.AnalyzePageForResearch(context.Background(), "u", "fresh body", nil)
	require.NoError(t, err)
	require.Len(t, client.calls[0], 1)
	assert.Contains(t, client.calls[0][0].Content, "Page content:\nfresh body")
}

func TestAnalyze_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name:  "no json",
			reply: "I think it is relevant.",
			check: func(t *testing.T, err error) {
				var pe *ParseError
				assert.ErrorAs(t, err, &pe)
			},
		},
		{
			name:  "summary not a string",
			reply: `{"summary": 3, "isRelevant": true}`,
			check: func(t *testing.T, err error) {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Contains(t, pe.Reason, "summary")
			},
		},
		{
			name:  "isRelevant not a boolean",
			reply: `{"summary": "x", "isRelevant": "yes"}`,
			check: func(t *testing.T, err error) {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Contains(t, pe.Reason, "isRelevant")
			},
		},
		{
			name: "auth failure",
			err:  &llm.AuthError{StatusCode: 401, Message: "invalid API token"},
			check: func(t *testing.T, err error) {
				var ae *llm.AuthError
				assert.ErrorAs(t, err, &ae)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := NewNotes(store.NewMemoryStore())
			agent := NewAgent(&fakeCompleter{reply: tt.reply, err: tt.err}, goalConfig, notes)

			msg, err := agent.AnalyzePageForResearch(context.Background(), "u", "c", nil)
			require.Error(t, err)
			assert.Equal(t, FailureMessage, msg)
			tt.check(t, err)

			assert.Zero(t, notes.Len())
			assert.False(t, agent.Analyzed())
			assert.True(t, agent.IsAnalysisRequired(), "a retry must remain possible")
		})
	}
}

func TestAnalyze_NoGoal(t *testing.T) {
	client := &fakeCompleter{}
	agent := NewAgent(client, staticConfig{LLM: "m"}, NewNotes(store.NewMemoryStore()))

	assert.False(t, agent.IsAnalysisRequired())
	_, err := agent.AnalyzePageForResearch(context.Background(), "u", "c", nil)
	assert.ErrorIs(t, err, ErrNoGoal)
	assert.Empty(t, client.calls)
}

func TestAnalyze_PersistFailure(t *testing.T) {
	notes := NewNotes(failingKV{store.NewMemoryStore()})
	agent := NewAgent(&fakeCompleter{reply: `{"summary":"s","isRelevant":true}`}, goalConfig, notes)

	msg, err := agent.AnalyzePageForResearch(context.Background(), "u", "c", nil)
	var pe *settings.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, store.NameResearchNotes, pe.Name)
	assert.True(t, strings.HasPrefix(msg, RelevantMessage))
	assert.Equal(t, 1, notes.Len())
	assert.True(t, agent.Analyzed())
}

func TestResetPage(t *testing.T) {
	agent := NewAgent(&fakeCompleter{reply: `{"summary":"s","isRelevant":true,"insights":["a","b"]}`}, goalConfig, NewNotes(store.NewMemoryStore()))
	_, err := agent.AnalyzePageForResearch(context.Background(), "u", "c", nil)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", agent.PendingInsights())

	agent.ResetPage()
	assert.False(t, agent.Analyzed())
	assert.Empty(t, agent.PendingInsights())
	assert.True(t, agent.IsAnalysisRequired())
}

func TestFindJSONObject(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`prefix {"a":{"b":2}} suffix {"c":3}`, `{"a":{"b":2}}`, true},
		{`{"s":"has } brace"}`, `{"s":"has } brace"}`, true},
		{`{"s":"escaped \" quote }"}`, `{"s":"escaped \" quote }"}`, true},
		{`He said "hi {" then {"ok":true}`, `{" then {"ok":true}`, false},
		{`} stray {"x":1}`, `{"x":1}`, true},
		{`no object here`, ``, false},
		{`{"unterminated": true`, ``, false},
	}
	for _, tt := range tests {
		got, ok := findJSONObject(tt.in)
		if !tt.wantOK {
			if ok {
				// Balanced but not valid JSON still has to fail in ParseVerdict.
				_, err := ParseVerdict(tt.in)
				assert.Error(t, err, tt.in)
			}
			continue
		}
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNotes_LoadResetRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()

	notes, err := LoadNotes(ctx, kv)
	require.NoError(t, err)
	assert.Zero(t, notes.Len())

	require.NoError(t, notes.Add(ctx, Note{ID: "1", URL: "a", Summary: "s1", IsRelevant: true}))
	require.NoError(t, notes.Add(ctx, Note{ID: "2", URL: "b", Summary: "s2"}))

	reloaded, err := LoadNotes(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, notes.List(), reloaded.List())

	require.NoError(t, reloaded.Reset(ctx))
	assert.Zero(t, reloaded.Len())

	again, err := LoadNotes(ctx, kv)
	require.NoError(t, err)
	assert.Zero(t, again.Len())
}

func TestNotes_ResetPersistFailure(t *testing.T) {
	notes := NewNotes(failingKV{store.NewMemoryStore()})
	err := notes.Reset(context.Background())
	var pe *settings.PersistError
	assert.ErrorAs(t, err, &pe)
}

func TestRenderNotes(t *testing.T) {
	assert.Equal(t, "No research notes yet.", RenderNotes("cats", nil))

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := RenderNotes("cats", []Note{
		{URL: "https://b.example", Summary: "later relevant", IsRelevant: true, Timestamp: t0.Add(time.Hour)},
		{URL: "https://x.example", Summary: "about dogs", Timestamp: t0},
		{URL: "https://a.example", Summary: "earlier relevant", Insights: "cats purr", IsRelevant: true, Timestamp: t0},
	})

	assert.Contains(t, out, "# Research notes: cats")
	assert.Contains(t, out, "## Relevant pages (2)")
	assert.Contains(t, out, "## Not relevant (1)")
	assert.Contains(t, out, "**Insights:** cats purr")
	assert.Contains(t, out, "- https://x.example: about dogs")

	relevantIdx := strings.Index(out, "## Relevant pages")
	notRelevantIdx := strings.Index(out, "## Not relevant")
	earlier := strings.Index(out, "https://a.example")
	later := strings.Index(out, "https://b.example")
	assert.Less(t, relevantIdx, earlier)
	assert.Less(t, earlier, later)
	assert.Less(t, later, notRelevantIdx)
}
