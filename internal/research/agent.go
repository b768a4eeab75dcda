// Package research evaluates each visited page once against a standing
// research goal and keeps the resulting verdicts as Research Notes.
package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagebrain/internal/history"
	"pagebrain/internal/llm"
	"pagebrain/internal/logging"
	"pagebrain/internal/settings"
)

// User-facing outcomes of an analysis.
const (
	RelevantMessage    = "This page is relevant to your research goal."
	NotRelevantMessage = "This page does not seem relevant to your research goal."
	FailureMessage     = "Sorry, I could not analyze this page for your research goal. Use /research-now to try again."
)

// ErrNoGoal is returned when analysis is requested without a research goal.
var ErrNoGoal = errors.New("no research goal set")

// Completer sends one completion request.
type Completer interface {
	SendQuery(ctx context.Context, cfg settings.Config, messages []history.Message) (*llm.Response, error)
}

// ConfigSource provides the current configuration.
type ConfigSource interface {
	Snapshot() settings.Config
}

// Agent holds the per-page analysis state. It is reset on navigation, on a
// new goal, and before an explicit re-analysis.
type Agent struct {
	client Completer
	config ConfigSource
	notes  *Notes
	now    func() time.Time

	mu              sync.Mutex
	analyzed        bool
	pendingInsights string
}

// NewAgent creates an agent appending its verdicts to notes.
func NewAgent(client Completer, config ConfigSource, notes *Notes) *Agent {
	return &Agent{client: client, config: config, notes: notes, now: time.Now}
}

// Notes returns the collection verdicts are appended to.
func (a *Agent) Notes() *Notes {
	return a.notes
}

// IsAnalysisRequired is true iff a goal is set and the current page has not
// been analyzed yet.
func (a *Agent) IsAnalysisRequired() bool {
	if !a.config.Snapshot().ResearchActive() {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.analyzed
}

// Analyzed reports whether the current page has a verdict.
func (a *Agent) Analyzed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzed
}

// PendingInsights returns the insights of the latest verdict for this page.
func (a *Agent) PendingInsights() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingInsights
}

// ResetPage forgets the analysis state of the current page.
func (a *Agent) ResetPage() {
	a.mu.Lock()
	a.analyzed = false
	a.pendingInsights = ""
	a.mu.Unlock()
}

// AnalyzePageForResearch asks the model for a relevance verdict on content.
// The instruction is sent on a copy of msgs, so the conversation is not
// changed. On failure FailureMessage is returned along with the cause and the
// page stays unanalyzed. If only persisting the note fails, the verdict
// message is returned together with a *settings.PersistError.
func (a *Agent) AnalyzePageForResearch(ctx context.Context, url, content string, msgs []history.Message) (string, error) {
	cfg := a.config.Snapshot()
	if !cfg.ResearchActive() {
		return FailureMessage, ErrNoGoal
	}

	timer := logging.StartTimer(logging.CategoryResearch, "analyze "+url)
	defer timer.Stop()

	transient := make([]history.Message, 0, len(msgs)+1)
	transient = append(transient, msgs...)
	transient = append(transient, history.Message{
		Role:    history.RoleUser,
		Content: buildPrompt(cfg.ResearchGoal, content, !carriesContent(msgs, content)),
	})

	resp, err := a.client.SendQuery(ctx, cfg, transient)
	if err != nil {
		logging.ResearchWarn("Analysis of %s failed: %v", url, err)
		return FailureMessage, err
	}

	verdict, err := ParseVerdict(resp.Content)
	if err != nil {
		logging.ResearchWarn("Analysis of %s returned an unusable verdict: %v", url, err)
		return FailureMessage, err
	}

	note := Note{
		ID:         uuid.NewString(),
		URL:        url,
		Summary:    verdict.Summary,
		Insights:   verdict.Insights,
		IsRelevant: verdict.IsRelevant,
		Timestamp:  a.now().UTC(),
	}
	persistErr := a.notes.Add(ctx, note)

	a.mu.Lock()
	a.analyzed = true
	a.pendingInsights = verdict.Insights
	a.mu.Unlock()

	logging.Research("Verdict for %s: relevant=%v", url, verdict.IsRelevant)

	msg := NotRelevantMessage
	if verdict.IsRelevant {
		msg = RelevantMessage
	}
	if verdict.Summary != "" {
		msg += "\n\n" + verdict.Summary
	}
	return msg, persistErr
}

// carriesContent reports whether msgs already embed content as the page turn
// written by history.Init.
func carriesContent(msgs []history.Message, content string) bool {
	want := history.PageContentPrefix + content
	for _, m := range msgs {
		if m.Role == history.RoleUser && m.Content == want {
			return true
		}
	}
	return false
}

func buildPrompt(goal, content string, includeContent bool) string {
	prompt := fmt.Sprintf(`I am researching the following goal:
%q

Decide whether the current page content is relevant to this goal.
Reply with ONLY a JSON object, without code fences or any other text, in exactly this form:
{"summary": "<two or three sentences on what the page says about the goal>", "isRelevant": <true or false>, "insights": "<facts from the page that help with the goal, or an empty string>"}`, goal)
	if includeContent {
		prompt += "\n\nPage content:\n" + content
	}
	return prompt
}
