// Package overview summarizes page content of any length: one pass when the
// model can see everything, map-reduce over overlapping chunks otherwise.
package overview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pagebrain/internal/history"
	"pagebrain/internal/llm"
	"pagebrain/internal/logging"
	"pagebrain/internal/settings"
)

const (
	DefaultChunkSize = 12000
	DefaultOverlap   = 400

	BeginMarker = "<<<BEGIN PAGE CONTENT>>>"
	EndMarker   = "<<<END PAGE CONTENT>>>"
	// Sentinel is the reply requested when the content is cut off.
	Sentinel = "CONTENT_NOT_FULLY_VISIBLE"
)

const summaryInstruction = `Summarize the page content, focus on the main story. Structure the summary as follows:
- Add a short introduction about the general subject of the page
- Create an outline of the main topics, similar to a table of contents
- Explore the main topics shortly as bullet points with a short explanation of each topic
- If a topic is about an external story, include a link to the story, use markdown links
- When creating outlines, don't add empty topics and don't add duplicate topics
- Draw no conclusions, just write the summary`

// Completer sends one completion request.
type Completer interface {
	SendQuery(ctx context.Context, cfg settings.Config, messages []history.Message) (*llm.Response, error)
}

// Callbacks report progress without the agent knowing how it is shown.
// Either may be nil.
type Callbacks struct {
	OnProgress func(done, total int)
	OnError    func(err error)
}

func (c Callbacks) progress(done, total int) {
	if c.OnProgress != nil {
		c.OnProgress(done, total)
	}
}

func (c Callbacks) fail(err error) error {
	if c.OnError != nil {
		c.OnError(err)
	}
	return err
}

// Agent generates overviews.
type Agent struct {
	client    Completer
	ChunkSize int
	Overlap   int
}

// NewAgent creates an agent. Non-positive sizes fall back to the defaults.
func NewAgent(client Completer, chunkSize, overlap int) *Agent {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Agent{client: client, ChunkSize: chunkSize, Overlap: overlap}
}

// Generate returns an overview of content. A single pass is tried first; it
// falls through to chunking when the model answers with the sentinel or the
// endpoint rejects the request (e.g. context overflow). Authentication and
// transport failures abort. Any chunking failure goes to cb.OnError and is
// returned; no partial overview is produced.
func (a *Agent) Generate(ctx context.Context, cfg settings.Config, content string, cb Callbacks) (string, error) {
	timer := logging.StartTimer(logging.CategoryOverview, "generate overview")
	defer timer.Stop()

	reply, err := a.ask(ctx, cfg, singlePassPrompt(content))
	switch {
	case err == nil && !strings.Contains(reply, Sentinel) && strings.TrimSpace(reply) != "":
		logging.Overview("Single-pass overview succeeded (%d chars of content)", len([]rune(content)))
		return reply, nil
	case err == nil:
		logging.Overview("Model could not see the whole page, falling back to chunks")
	case isRejection(err):
		logging.Overview("Single pass rejected (%v), falling back to chunks", err)
	default:
		return "", cb.fail(err)
	}

	chunks := Split(content, a.ChunkSize, a.Overlap)
	total := len(chunks)
	summaries := make([]string, 0, total)
	for i, chunk := range chunks {
		cb.progress(i+1, total)
		logging.OverviewDebug("Summarizing chunk %d/%d (%d runes)", i+1, total, len([]rune(chunk)))
		summary, err := a.ask(ctx, cfg, chunkPrompt(chunk, i+1, total))
		if err != nil {
			return "", cb.fail(fmt.Errorf("summarize chunk %d/%d: %w", i+1, total, err))
		}
		summaries = append(summaries, summary)
	}

	merged, err := a.ask(ctx, cfg, mergePrompt(summaries))
	if err != nil {
		return "", cb.fail(fmt.Errorf("merge chunk summaries: %w", err))
	}
	logging.Overview("Chunked overview merged from %d chunks", total)
	return merged, nil
}

// ask runs one standalone exchange under the configured system prompt.
func (a *Agent) ask(ctx context.Context, cfg settings.Config, prompt string) (string, error) {
	resp, err := a.client.SendQuery(ctx, cfg, []history.Message{
		{Role: history.RoleSystem, Content: cfg.Prompt},
		{Role: history.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func isRejection(err error) bool {
	var apiErr *llm.APIError
	return errors.As(err, &apiErr)
}

func singlePassPrompt(content string) string {
	return summaryInstruction + "\n\n" +
		"The complete page content is enclosed between " + BeginMarker + " and " + EndMarker + ". " +
		"If you cannot see both markers and everything between them, reply with exactly " + Sentinel + " and nothing else.\n\n" +
		BeginMarker + "\n" + content + "\n" + EndMarker
}

func chunkPrompt(chunk string, part, total int) string {
	return fmt.Sprintf("This is part %d of %d of a longer page. Summarize the key points of this part as concise bullet points. "+
		"Keep markdown links to external stories. Do not add an introduction or conclusion.\n\n%s\n%s\n%s",
		part, total, BeginMarker, chunk, EndMarker)
}

func mergePrompt(summaries []string) string {
	var sb strings.Builder
	sb.WriteString("Below are summaries of consecutive parts of one page. Merge them into a single coherent overview and remove duplicate points.\n\n")
	sb.WriteString(summaryInstruction)
	for i, s := range summaries {
		fmt.Fprintf(&sb, "\n\n### Part %d\n%s", i+1, s)
	}
	return sb.String()
}
