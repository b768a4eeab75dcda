package settings

import (
	"context"
	"errors"
	"testing"

	"pagebrain/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaults = Config{
	Prompt:    "You are a helpful assistant.",
	ChatURL:   "http://localhost:11434/v1/chat/completions",
	ModelsURL: "http://localhost:11434/v1/models",
}

// countingKV wraps a MemoryStore, counting writes and optionally failing them.
type countingKV struct {
	*store.MemoryStore
	sets    int
	failSet error
}

func newCountingKV() *countingKV {
	return &countingKV{MemoryStore: store.NewMemoryStore()}
}

func (c *countingKV) Set(ctx context.Context, name string, value any) error {
	c.sets++
	if c.failSet != nil {
		return c.failSet
	}
	return c.MemoryStore.Set(ctx, name, value)
}

func TestUpdate_IdempotentPersistAndNotify(t *testing.T) {
	ctx := context.Background()
	kv := newCountingKV()
	s := New(kv, defaults)

	var calls []Config
	s.AddListener(func(c Config) { calls = append(calls, c) })

	patch := Patch{LLM: String("llama3")}
	require.NoError(t, s.Update(ctx, patch))
	require.NoError(t, s.Update(ctx, patch))

	assert.Equal(t, 1, kv.sets)
	require.Len(t, calls, 1)
	assert.Equal(t, "llama3", calls[0].LLM)
	assert.Equal(t, defaults.Prompt, calls[0].Prompt)

	var persisted Config
	found, err := kv.Get(ctx, store.NameConfig, &persisted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "llama3", persisted.LLM)
}

func TestUpdate_EmptyPatchIsNoop(t *testing.T) {
	kv := newCountingKV()
	s := New(kv, defaults)
	require.NoError(t, s.Update(context.Background(), Patch{}))
	assert.Equal(t, 0, kv.sets)
}

func TestGetAndSnapshot(t *testing.T) {
	s := New(store.NewMemoryStore(), defaults)

	v, ok := s.Get(KeyPrompt)
	assert.True(t, ok)
	assert.Equal(t, defaults.Prompt, v)

	_, ok = s.Get(KeyLLM)
	assert.False(t, ok, "unset model reads as absent")

	_, ok = s.Get(Key("nope"))
	assert.False(t, ok)

	snap := s.Snapshot()
	assert.True(t, snap.SelectionRequired())
	assert.False(t, snap.ResearchActive())
}

func TestListener_RemovesItselfDuringNotify(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore(), defaults)

	var selfCalls, otherCalls int
	var selfID ListenerID
	selfID = s.AddListener(func(Config) {
		selfCalls++
		s.RemoveListener(selfID)
	})
	s.AddListener(func(Config) { otherCalls++ })

	require.NoError(t, s.Update(ctx, Patch{LLM: String("a")}))
	require.NoError(t, s.Update(ctx, Patch{LLM: String("b")}))

	assert.Equal(t, 1, selfCalls)
	assert.Equal(t, 2, otherCalls)
}

func TestUpdate_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	kv := newCountingKV()
	kv.failSet = errors.New("disk full")
	s := New(kv, defaults)

	notified := false
	s.AddListener(func(Config) { notified = true })

	err := s.Update(ctx, Patch{ResearchGoal: String("cats")})

	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, store.NameConfig, perr.Name)
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, notified)
	goal, ok := s.Get(KeyResearchGoal)
	assert.True(t, ok)
	assert.Equal(t, "cats", goal)
}

func TestReset_RestoresDefaults(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore(), defaults)
	require.NoError(t, s.Update(ctx, Patch{
		LLM:          String("llama3"),
		Prompt:       String("custom"),
		ChatURL:      String("http://other/chat"),
		ModelsURL:    String("http://other/models"),
		APIToken:     String("sk"),
		ResearchGoal: String("dogs"),
	}))

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, defaults, s.Snapshot())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()

	s, err := Load(ctx, kv, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, s.Snapshot())

	saved := defaults
	saved.LLM = "mistral"
	require.NoError(t, kv.Set(ctx, store.NameConfig, saved))

	s, err = Load(ctx, kv, defaults)
	require.NoError(t, err)
	assert.Equal(t, "mistral", s.Snapshot().LLM)
	assert.Equal(t, defaults, s.Defaults())

	// Re-applying the loaded value must not count as a change.
	counting := newCountingKV()
	require.NoError(t, counting.MemoryStore.Set(ctx, store.NameConfig, saved))
	s, err = Load(ctx, counting, defaults)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, Patch{LLM: String("mistral")}))
	assert.Equal(t, 0, counting.sets)
}

func TestPatchFor(t *testing.T) {
	p, err := PatchFor(KeyAPIToken, "sk-1")
	require.NoError(t, err)
	require.NotNil(t, p.APIToken)
	assert.Equal(t, "sk-1", *p.APIToken)

	_, err = PatchFor(Key("color"), "red")
	assert.ErrorContains(t, err, "unknown configuration key")
}
