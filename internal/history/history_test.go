package history

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(prompt, content string) *History {
	return New(func() string { return prompt }, func() string { return content })
}

func TestInit(t *testing.T) {
	h := fixed("be helpful", "# Cats\nThey purr.")
	h.Init()

	want := []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "This is the current page content: \n# Cats\nThey purr."},
	}
	if diff := cmp.Diff(want, h.Messages()); diff != "" {
		t.Errorf("Init() mismatch (-want +got):\n%s", diff)
	}
}

func TestInit_Repeatable(t *testing.T) {
	content := "v1"
	h := New(func() string { return "p" }, func() string { return content })
	h.Init()
	h.UserMessage("question")
	h.AIMessage("answer")

	content = "v2"
	h.Init()

	require.Equal(t, 2, h.Len())
	assert.Equal(t, PageContentPrefix+"v2", h.Messages()[1].Content)
}

func TestAppendOrder(t *testing.T) {
	h := fixed("p", "c")
	h.Init()

	var want []Message
	want = append(want, h.Messages()...)
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("turn %d", i)
		if i%3 == 0 {
			h.AIMessage(text)
			want = append(want, Message{Role: RoleAssistant, Content: text})
		} else {
			h.UserMessage(text)
			want = append(want, Message{Role: RoleUser, Content: text})
		}
		last, ok := h.LastMessage()
		require.True(t, ok)
		assert.Equal(t, want[len(want)-1], last)
	}

	if diff := cmp.Diff(want, h.Messages()); diff != "" {
		t.Errorf("history order mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyContentIsLegal(t *testing.T) {
	h := fixed("p", "c")
	h.UserMessage("")
	h.AIMessage("")
	assert.Equal(t, 2, h.Len())
	last, ok := h.LastMessage()
	require.True(t, ok)
	assert.Equal(t, Message{Role: RoleAssistant, Content: ""}, last)
}

func TestLastMessage_Empty(t *testing.T) {
	h := fixed("p", "c")
	_, ok := h.LastMessage()
	assert.False(t, ok)
	assert.Empty(t, h.Messages())
}

func TestMessages_ReturnsCopy(t *testing.T) {
	h := fixed("p", "c")
	h.Init()
	msgs := h.Messages()
	msgs[0].Content = "tampered"
	assert.Equal(t, "p", h.Messages()[0].Content)
}

func TestReplaceSystemPrompt(t *testing.T) {
	h := fixed("old", "c")
	h.Init()
	h.UserMessage("q")
	h.AIMessage("a")

	h.ReplaceSystemPrompt("new")
	h.ReplaceSystemPrompt("newer")

	msgs := h.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, Message{Role: RoleSystem, Content: "newer"}, msgs[0])
	systemCount := 0
	for _, m := range msgs {
		if m.Role == RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount, "prompt changes must not accrete system messages")
}

func TestReplaceSystemPrompt_InitializesEmpty(t *testing.T) {
	h := fixed("from-store", "page")
	h.ReplaceSystemPrompt("ignored")
	require.Equal(t, 2, h.Len())
	assert.Equal(t, "from-store", h.Messages()[0].Content)
}
