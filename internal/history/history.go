// Package history holds the conversation replayed on every completion request.
package history

import "sync"

// Role tags a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PageContentPrefix introduces the page content in the first user turn.
const PageContentPrefix = "This is the current page content: \n"

// History is the ordered, append-only conversation log. Init rebuilds it
// from the current system prompt and page content.
type History struct {
	prompt  func() string
	content func() string

	mu       sync.RWMutex
	messages []Message
}

// New creates an empty history. prompt and content are read on every Init.
func New(prompt, content func() string) *History {
	return &History{prompt: prompt, content: content}
}

// Init replaces the whole sequence with the system prompt followed by a user
// turn embedding the page content.
func (h *History) Init() {
	msgs := []Message{
		{Role: RoleSystem, Content: h.prompt()},
		{Role: RoleUser, Content: PageContentPrefix + h.content()},
	}
	h.mu.Lock()
	h.messages = msgs
	h.mu.Unlock()
}

// ReplaceSystemPrompt swaps the content of the leading system message,
// keeping the rest of the conversation. It initializes an empty history.
func (h *History) ReplaceSystemPrompt(prompt string) {
	h.mu.Lock()
	if len(h.messages) > 0 && h.messages[0].Role == RoleSystem {
		msgs := make([]Message, len(h.messages))
		copy(msgs, h.messages)
		msgs[0] = Message{Role: RoleSystem, Content: prompt}
		h.messages = msgs
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.Init()
}

// UserMessage appends a user turn.
func (h *History) UserMessage(text string) {
	h.append(Message{Role: RoleUser, Content: text})
}

// AIMessage appends an assistant turn.
func (h *History) AIMessage(text string) {
	h.append(Message{Role: RoleAssistant, Content: text})
}

func (h *History) append(m Message) {
	h.mu.Lock()
	h.messages = append(h.messages, m)
	h.mu.Unlock()
}

// LastMessage returns the most recently appended message.
func (h *History) LastMessage() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// Messages returns the sequence for transmission. Treat it as read-only.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}
