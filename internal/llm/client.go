// Package llm is a stateless client for OpenAI-compatible chat-completion and
// model-listing endpoints. It never touches the conversation history: callers
// append the outgoing user turn and the returned assistant turn themselves.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pagebrain/internal/history"
	"pagebrain/internal/logging"
	"pagebrain/internal/settings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	} `json:"function"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

// Response is the assistant turn returned by the endpoint.
type Response struct {
	Model     string
	Content   string
	ToolCalls []ToolCall
}

// Model is one entry of the models listing.
type Model struct {
	ID      string
	OwnedBy string
}

// Client talks to the chat-completion and models endpoints.
type Client struct {
	httpClient *http.Client
	tools      []ToolDefinition
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTools offers tool definitions with every completion request.
func WithTools(tools ...ToolDefinition) Option {
	return func(c *Client) { c.tools = append(c.tools, tools...) }
}

// NewClient creates a client. timeout is the only timeout this system applies;
// zero means none.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string            `json:"model"`
	Stream   bool              `json:"stream"`
	Messages []history.Message `json:"messages"`
	Tools    []ToolDefinition  `json:"tools,omitempty"`
}

type wireMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	// Ollama's native /api/chat shape.
	Message *wireMessage `json:"message"`
}

// SendQuery posts the full message sequence to cfg.ChatURL and returns the
// assistant turn. Errors are *AuthError, *APIError or *TransportError, or
// ErrModelRequired / ErrEndpointRequired before any I/O. There is no retry.
func (c *Client) SendQuery(ctx context.Context, cfg settings.Config, messages []history.Message) (*Response, error) {
	if cfg.SelectionRequired() {
		return nil, ErrModelRequired
	}
	if cfg.ChatURL == "" {
		return nil, ErrEndpointRequired
	}

	body, err := json.Marshal(chatRequest{
		Model:    cfg.LLM,
		Stream:   false,
		Messages: messages,
		Tools:    c.tools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ChatURL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	authorize(req, cfg.APIToken)

	start := time.Now()
	logging.APIDebug("SendQuery: model=%s messages=%d bytes=%d", cfg.LLM, len(messages), len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("SendQuery: request failed: %v", err)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		logging.APIError("SendQuery: %v", err)
		return nil, err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &TransportError{Status: resp.Status, Err: fmt.Errorf("malformed response body: %w", err)}
	}

	var msg *wireMessage
	switch {
	case len(parsed.Choices) > 0:
		msg = &parsed.Choices[0].Message
	case parsed.Message != nil:
		msg = parsed.Message
	default:
		return nil, &TransportError{Status: resp.Status, Err: fmt.Errorf("response had no choices")}
	}

	logging.API("SendQuery: model=%s completed in %v content_len=%d tool_calls=%d",
		cfg.LLM, time.Since(start), len(msg.Content), len(msg.ToolCalls))

	return &Response{
		Model:     parsed.Model,
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
	}, nil
}

// ListModels fetches cfg.ModelsURL. Both the OpenAI {data:[{id}]} and the
// Ollama {models:[{model}]} shapes are accepted.
func (c *Client) ListModels(ctx context.Context, cfg settings.Config) ([]Model, error) {
	if cfg.ModelsURL == "" {
		return nil, ErrEndpointRequired
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ModelsURL, nil)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	authorize(req, cfg.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			ID      string `json:"id"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
		Models []struct {
			Model string `json:"model"`
			Name  string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &TransportError{Status: resp.Status, Err: fmt.Errorf("malformed models listing: %w", err)}
	}

	models := make([]Model, 0, len(parsed.Data)+len(parsed.Models))
	for _, d := range parsed.Data {
		if d.ID != "" {
			models = append(models, Model{ID: d.ID, OwnedBy: d.OwnedBy})
		}
	}
	for _, m := range parsed.Models {
		id := m.Model
		if id == "" {
			id = m.Name
		}
		if id != "" {
			models = append(models, Model{ID: id})
		}
	}
	logging.APIDebug("ListModels: %d models from %s", len(models), cfg.ModelsURL)
	return models, nil
}

func authorize(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{StatusCode: resp.StatusCode, Message: "invalid API token"}
	case resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: "forbidden / check token"}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	default:
		return &TransportError{Status: resp.Status}
	}
}

// errorMessage extracts error.message, tolerating {"error":"..."} and raw text.
func errorMessage(body []byte, status string) string {
	var structured struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && len(structured.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(structured.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		var text string
		if err := json.Unmarshal(structured.Error, &text); err == nil && text != "" {
			return text
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return status
}
