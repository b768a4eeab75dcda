package session

import (
	"context"

	"pagebrain/internal/commands"
	"pagebrain/internal/research"
	"pagebrain/internal/settings"
)

// turnEnv is what commands see while a turn is in progress. Its methods run
// under the turn lock the caller already holds.
type turnEnv struct {
	s *Session
}

var _ commands.Env = turnEnv{}

func (e turnEnv) Notice(text string) { e.s.surface.Notice(text) }

func (e turnEnv) Config() settings.Config { return e.s.settings.Snapshot() }

func (e turnEnv) UpdateSettings(ctx context.Context, p settings.Patch) error {
	return e.s.settings.Update(ctx, p)
}

func (e turnEnv) ResetSettings(ctx context.Context) error {
	return e.s.settings.Reset(ctx)
}

func (e turnEnv) ResetHistory() { e.s.history.Init() }

func (e turnEnv) ResearchNotes() []research.Note { return e.s.notes.List() }

func (e turnEnv) ResetResearchNotes(ctx context.Context) error {
	return e.s.notes.Reset(ctx)
}

func (e turnEnv) ResetPageAnalysis() { e.s.research.ResetPage() }

func (e turnEnv) SetResearchTrigger(visible bool) { e.s.surface.SetResearchTrigger(visible) }

func (e turnEnv) AnalyzeIfRequired(ctx context.Context) error {
	return e.s.analyzeIfRequired(ctx)
}

func (e turnEnv) AnalyzeNow(ctx context.Context) error { return e.s.analyze(ctx) }

func (e turnEnv) Overview(ctx context.Context) error { return e.s.generateOverview(ctx) }

func (e turnEnv) BeginModelSelection(ctx context.Context) error {
	return e.s.beginModelSelection(ctx)
}
