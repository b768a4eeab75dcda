package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Messages delivered from the session to the Model.
type (
	assistantMsg string
	userMsg      string
	noticeMsg    string
	statusMsg    string
	triggerMsg   bool
	inputMsg     bool
	choicesMsg   []string
	reloadMsg    struct{}
)

// Surface forwards session output into a running bubbletea program. Its
// methods are called from the goroutines running session actions; output
// produced before the program runs is dropped.
type Surface struct {
	mu      sync.Mutex
	program *tea.Program
}

// NewSurface creates a detached surface. Run attaches it.
func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) attach(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
}

func (s *Surface) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (s *Surface) AssistantMessage(text string) { s.send(assistantMsg(text)) }

func (s *Surface) UserMessage(text string) { s.send(userMsg(text)) }

func (s *Surface) Notice(text string) { s.send(noticeMsg(text)) }

func (s *Surface) Status(text string) { s.send(statusMsg(text)) }

func (s *Surface) SetResearchTrigger(visible bool) { s.send(triggerMsg(visible)) }

func (s *Surface) SetInputEnabled(enabled bool) { s.send(inputMsg(enabled)) }

func (s *Surface) ModelChoices(models []string) {
	s.send(choicesMsg(append([]string(nil), models...)))
}

// Reload asks the chat to re-read the page, as after a navigation. The file
// watcher calls it when a local document changes.
func (s *Surface) Reload() { s.send(reloadMsg{}) }
