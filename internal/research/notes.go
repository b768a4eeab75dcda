package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pagebrain/internal/logging"
	"pagebrain/internal/settings"
	"pagebrain/internal/store"
)

// Note is one page verdict. Notes are never mutated after creation.
type Note struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Summary    string    `json:"summary"`
	Insights   string    `json:"insights"`
	IsRelevant bool      `json:"isRelevant"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notes is the persisted Research Notes collection.
type Notes struct {
	kv store.KV

	mu    sync.RWMutex
	notes []Note
}

// NewNotes creates an empty collection backed by kv.
func NewNotes(kv store.KV) *Notes {
	return &Notes{kv: kv}
}

// LoadNotes reads the collection persisted under "research_notes".
func LoadNotes(ctx context.Context, kv store.KV) (*Notes, error) {
	n := NewNotes(kv)
	var persisted []Note
	if _, err := kv.Get(ctx, store.NameResearchNotes, &persisted); err != nil {
		return nil, fmt.Errorf("load research notes: %w", err)
	}
	n.notes = persisted
	logging.StoreDebug("Loaded %d research notes", len(persisted))
	return n, nil
}

// Add appends note and waits for it to be persisted. On a persistence
// failure the note stays in memory and a *settings.PersistError is returned.
func (n *Notes) Add(ctx context.Context, note Note) error {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	snapshot := append([]Note(nil), n.notes...)
	n.mu.Unlock()

	if err := n.kv.Set(ctx, store.NameResearchNotes, snapshot); err != nil {
		return &settings.PersistError{Name: store.NameResearchNotes, Err: err}
	}
	return nil
}

// List returns a copy of the notes in insertion order.
func (n *Notes) List() []Note {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Note(nil), n.notes...)
}

// Len returns the number of notes.
func (n *Notes) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.notes)
}

// Reset empties the collection and removes it from the store.
func (n *Notes) Reset(ctx context.Context) error {
	n.mu.Lock()
	n.notes = nil
	n.mu.Unlock()

	if err := n.kv.Delete(ctx, store.NameResearchNotes); err != nil {
		return &settings.PersistError{Name: store.NameResearchNotes, Err: err}
	}
	return nil
}

// RenderNotes formats notes as markdown, relevant pages first, each group in
// chronological order.
func RenderNotes(goal string, notes []Note) string {
	if len(notes) == 0 {
		return "No research notes yet."
	}

	var relevant, other []Note
	for _, note := range notes {
		if note.IsRelevant {
			relevant = append(relevant, note)
		} else {
			other = append(other, note)
		}
	}
	byTime := func(s []Note) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) })
	}
	byTime(relevant)
	byTime(other)

	var sb strings.Builder
	if goal != "" {
		fmt.Fprintf(&sb, "# Research notes: %s\n\n", goal)
	} else {
		sb.WriteString("# Research notes\n\n")
	}

	fmt.Fprintf(&sb, "## Relevant pages (%d)\n\n", len(relevant))
	if len(relevant) == 0 {
		sb.WriteString("_none yet_\n\n")
	}
	for _, note := range relevant {
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", note.URL, note.Summary)
		if note.Insights != "" {
			fmt.Fprintf(&sb, "**Insights:** %s\n\n", note.Insights)
		}
		fmt.Fprintf(&sb, "_analyzed %s_\n\n", note.Timestamp.Local().Format("2006-01-02 15:04"))
	}

	fmt.Fprintf(&sb, "## Not relevant (%d)\n\n", len(other))
	for _, note := range other {
		fmt.Fprintf(&sb, "- %s: %s\n", note.URL, note.Summary)
	}
	return strings.TrimRight(sb.String(), "\n")
}
