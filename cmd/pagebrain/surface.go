package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	choiceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
)

// printSurface writes session output for one-shot commands. Assistant
// messages go to out as rendered markdown; notices go to errOut so that
// out can be piped.
type printSurface struct {
	out      io.Writer
	errOut   io.Writer
	renderer *glamour.TermRenderer
	raw      bool

	mu      sync.Mutex
	choices []string
}

func newPrintSurface(out, errOut io.Writer, raw bool) *printSurface {
	s := &printSurface{out: out, errOut: errOut, raw: raw}
	if !raw {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			s.renderer = r
		}
	}
	return s
}

func (s *printSurface) render(text string) string {
	if s.renderer == nil {
		return text + "\n"
	}
	rendered, err := s.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return rendered
}

func (s *printSurface) AssistantMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, s.render(text))
}

// UserMessage is not echoed; the user typed it on the command line.
func (s *printSurface) UserMessage(string) {}

func (s *printSurface) Notice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw {
		fmt.Fprintln(s.errOut, text)
		return
	}
	fmt.Fprintln(s.errOut, noticeStyle.Render(strings.TrimRight(text, "\n")))
}

// Status has no place in line-oriented output.
func (s *printSurface) Status(string) {}

func (s *printSurface) SetResearchTrigger(bool) {}

func (s *printSurface) SetInputEnabled(bool) {}

func (s *printSurface) ModelChoices(models []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choices = models
	for _, m := range models {
		fmt.Fprintln(s.errOut, choiceStyle.Render("  "+m))
	}
}
