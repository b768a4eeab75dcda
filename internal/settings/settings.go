// Package settings is the assistant's Configuration Store: the endpoint URLs,
// API token, system prompt, selected model and research goal, kept in memory,
// persisted to the key-value store under "config", and broadcast to
// listeners whenever the serialized value changes.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"pagebrain/internal/logging"
	"pagebrain/internal/store"
)

// Key names a recognized configuration entry.
type Key string

const (
	KeyLLM          Key = "llm"
	KeyPrompt       Key = "prompt"
	KeyChatURL      Key = "chat_url"
	KeyModelsURL    Key = "models_url"
	KeyAPIToken     Key = "apiToken"
	KeyResearchGoal Key = "research_goal"
)

// Config is the persisted assistant configuration. An empty string stands
// for an absent value: empty LLM means a model must be selected before any
// completion call, empty ResearchGoal means research mode is off.
type Config struct {
	LLM          string `json:"llm,omitempty"`
	Prompt       string `json:"prompt"`
	ChatURL      string `json:"chat_url"`
	ModelsURL    string `json:"models_url"`
	APIToken     string `json:"apiToken,omitempty"`
	ResearchGoal string `json:"research_goal,omitempty"`
}

// SelectionRequired reports whether no model has been chosen yet.
func (c Config) SelectionRequired() bool {
	return c.LLM == ""
}

// ResearchActive reports whether a research goal is set.
func (c Config) ResearchActive() bool {
	return c.ResearchGoal != ""
}

// Lookup returns the value for key and whether it is set.
func (c Config) Lookup(key Key) (string, bool) {
	var v string
	switch key {
	case KeyLLM:
		v = c.LLM
	case KeyPrompt:
		v = c.Prompt
	case KeyChatURL:
		v = c.ChatURL
	case KeyModelsURL:
		v = c.ModelsURL
	case KeyAPIToken:
		v = c.APIToken
	case KeyResearchGoal:
		v = c.ResearchGoal
	default:
		return "", false
	}
	return v, v != ""
}

// Patch is a partial update. Nil fields are left untouched; a pointer to ""
// clears the entry.
type Patch struct {
	LLM          *string
	Prompt       *string
	ChatURL      *string
	ModelsURL    *string
	APIToken     *string
	ResearchGoal *string
}

// String returns a pointer to s, for building patches.
func String(s string) *string {
	return &s
}

// PatchFor builds a single-key patch. Unknown keys return an error.
func PatchFor(key Key, value string) (Patch, error) {
	var p Patch
	switch key {
	case KeyLLM:
		p.LLM = &value
	case KeyPrompt:
		p.Prompt = &value
	case KeyChatURL:
		p.ChatURL = &value
	case KeyModelsURL:
		p.ModelsURL = &value
	case KeyAPIToken:
		p.APIToken = &value
	case KeyResearchGoal:
		p.ResearchGoal = &value
	default:
		return p, fmt.Errorf("unknown configuration key %q", key)
	}
	return p, nil
}

func (p Patch) apply(c Config) Config {
	if p.LLM != nil {
		c.LLM = *p.LLM
	}
	if p.Prompt != nil {
		c.Prompt = *p.Prompt
	}
	if p.ChatURL != nil {
		c.ChatURL = *p.ChatURL
	}
	if p.ModelsURL != nil {
		c.ModelsURL = *p.ModelsURL
	}
	if p.APIToken != nil {
		c.APIToken = *p.APIToken
	}
	if p.ResearchGoal != nil {
		c.ResearchGoal = *p.ResearchGoal
	}
	return c
}

// full returns a patch that overwrites every key with c's values.
func full(c Config) Patch {
	return Patch{
		LLM:          String(c.LLM),
		Prompt:       String(c.Prompt),
		ChatURL:      String(c.ChatURL),
		ModelsURL:    String(c.ModelsURL),
		APIToken:     String(c.APIToken),
		ResearchGoal: String(c.ResearchGoal),
	}
}

// PersistError reports that a change was applied in memory but could not be
// written to the key-value store.
type PersistError struct {
	Name string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Name, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Listener receives the new full configuration after every effective change.
type Listener func(Config)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Store is the Configuration Store.
type Store struct {
	kv       store.KV
	defaults Config

	mu      sync.RWMutex
	current Config
	encoded []byte

	listenersMu sync.Mutex
	listeners   map[ListenerID]Listener
	nextID      ListenerID
}

// New creates a store holding defaults without reading persisted state.
func New(kv store.KV, defaults Config) *Store {
	s := &Store{
		kv:        kv,
		defaults:  defaults,
		listeners: make(map[ListenerID]Listener),
	}
	s.current = defaults
	s.encoded = mustEncode(defaults)
	return s
}

// Load creates a store and seeds it from the value persisted under "config",
// falling back to defaults when nothing is stored.
func Load(ctx context.Context, kv store.KV, defaults Config) (*Store, error) {
	s := New(kv, defaults)
	var persisted Config
	found, err := kv.Get(ctx, store.NameConfig, &persisted)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if found {
		s.current = persisted
		s.encoded = mustEncode(persisted)
		logging.StoreDebug("Loaded persisted settings (model=%q)", persisted.LLM)
	}
	return s, nil
}

func mustEncode(c Config) []byte {
	data, err := json.Marshal(c)
	if err != nil {
		// Config holds only strings.
		panic(err)
	}
	return data
}

// Get returns the value for key, or false when it is unset or unknown.
func (s *Store) Get(key Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Lookup(key)
}

// Snapshot returns a copy of the whole configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Defaults returns the configuration Reset restores.
func (s *Store) Defaults() Config {
	return s.defaults
}

// Update merges p into the current configuration. When the merged value
// serializes identically nothing happens. Otherwise the in-memory value is
// replaced, listeners are invoked synchronously, and the value is persisted;
// a persistence failure is returned as *PersistError with memory already
// updated.
func (s *Store) Update(ctx context.Context, p Patch) error {
	s.mu.Lock()
	next := p.apply(s.current)
	encoded := mustEncode(next)
	if bytes.Equal(encoded, s.encoded) {
		s.mu.Unlock()
		return nil
	}
	s.current = next
	s.encoded = encoded
	s.mu.Unlock()

	s.notify(next)

	if err := s.kv.Set(ctx, store.NameConfig, next); err != nil {
		logging.Get(logging.CategoryStore).Errorw("settings persist failed", "error", err)
		return &PersistError{Name: store.NameConfig, Err: err}
	}
	return nil
}

// Reset restores the default configuration.
func (s *Store) Reset(ctx context.Context) error {
	return s.Update(ctx, full(s.defaults))
}

// AddListener registers fn and returns its id.
func (s *Store) AddListener(fn Listener) ListenerID {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextID++
	s.listeners[s.nextID] = fn
	return s.nextID
}

// RemoveListener unregisters a listener. It is safe to call from inside a
// listener, including for the listener itself.
func (s *Store) RemoveListener(id ListenerID) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	delete(s.listeners, id)
}

func (s *Store) notify(c Config) {
	s.listenersMu.Lock()
	ids := make([]ListenerID, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	snapshot := make(map[ListenerID]Listener, len(s.listeners))
	for id, fn := range s.listeners {
		snapshot[id] = fn
	}
	s.listenersMu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		snapshot[id](c)
	}
}
