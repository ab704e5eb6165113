package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voiceline-ai/voiceline/config"
)

// Client is the authenticated request wrapper around the voice-agent
// platform REST API. It maps HTTP statuses onto the typed errors in this
// package and never retries on its own.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	logger  *log.Logger
}

// NewClient builds a platform client from config. A missing API key is not an
// error here; every call fails fast with ErrNotConfigured instead, so the
// server can boot without a credential and report it per request.
func NewClient(cfg config.VoicePlatformConfig, logger *log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PLATFORM] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// KeyPrefix returns a redacted view of the credential for diagnostics.
func (c *Client) KeyPrefix() string {
	if len(c.apiKey) <= 12 {
		return c.apiKey
	}
	return c.apiKey[:12] + "..."
}

// Call performs an authenticated JSON request and returns the raw response
// body. DELETE with an empty/204 response is normalized to {"success": true}.
func (c *Client) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	return c.call(ctx, method, path, body, c.timeout)
}

func (c *Client) call(ctx context.Context, method, path string, body any, timeout time.Duration) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Printf("%s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp.StatusCode, path, raw)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		// DELETE with no content, and any other empty 2xx body.
		return json.RawMessage(`{"success":true}`), nil
	}
	return json.RawMessage(raw), nil
}

// statusError maps a >=400 response onto the error taxonomy, probing the JSON
// body for a human-readable message under error, detail, then message.
func (c *Client) statusError(status int, path string, raw []byte) error {
	msg := errorMessage(raw)
	c.logger.Printf("API error: %d %s: %s", status, path, msg)
	switch status {
	case http.StatusUnauthorized:
		return &AuthError{Message: "invalid voice platform API key"}
	case http.StatusNotFound:
		return &NotFoundError{Path: path}
	default:
		return &APIError{Status: status, Message: msg}
	}
}

// errorMessage extracts the first present field of error, detail, message —
// in that priority order — falling back to the raw response text.
func errorMessage(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"error", "detail", "message"} {
			if v, ok := body[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	raw, err := c.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// ListAgents returns every agent known to the platform.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.get(ctx, "/list-agents", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// GetAgent fetches a single remote agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var agent Agent
	err := c.get(ctx, "/get-agent/"+agentID, &agent)
	return agent, err
}

// CreateAgent registers an agent on the platform. The payload is forwarded
// opaquely; the platform validates it.
func (c *Client) CreateAgent(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, "/create-agent", payload)
}

// UpdateAgent patches an existing remote agent.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, payload map[string]any) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPatch, "/update-agent/"+agentID, payload)
}

// DeleteAgent removes a remote agent.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	_, err := c.Call(ctx, http.MethodDelete, "/delete-agent/"+agentID, nil)
	return err
}

// GetLLM fetches the LLM resource behind an agent's response engine.
func (c *Client) GetLLM(ctx context.Context, llmID string) (LLM, error) {
	var llm LLM
	err := c.get(ctx, "/get-retell-llm/"+llmID, &llm)
	return llm, err
}

// ListVoices returns the available TTS voices.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	var voices []Voice
	if err := c.get(ctx, "/list-voices", &voices); err != nil {
		return nil, err
	}
	return voices, nil
}

// CreateWebCall starts a browser call against an agent and returns the
// access token the client joins with.
func (c *Client) CreateWebCall(ctx context.Context, agentID string, metadata map[string]any) (WebCall, error) {
	payload := map[string]any{"agent_id": agentID}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	raw, err := c.Call(ctx, http.MethodPost, "/v2/create-web-call", payload)
	if err != nil {
		return WebCall{}, err
	}
	var wc WebCall
	if err := json.Unmarshal(raw, &wc); err != nil {
		return WebCall{}, err
	}
	return wc, nil
}

// ListCalls queries the paginated call log. The platform sometimes answers
// with a bare array and sometimes with {"calls": [...]}; both are accepted.
func (c *Client) ListCalls(ctx context.Context, params ListCallsParams) ([]Call, error) {
	raw, err := c.Call(ctx, http.MethodPost, "/v2/list-calls", params)
	if err != nil {
		return nil, err
	}
	return decodeCallList(raw)
}

// GetCall fetches one call with transcript and analysis.
func (c *Client) GetCall(ctx context.Context, callID string) (Call, error) {
	var call Call
	err := c.get(ctx, "/v2/get-call/"+callID, &call)
	return call, err
}

// ChatMessage is one turn of a remote chat completion.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletion asks the LLM resource behind an agent for the next chat
// turn. The platform answers with either a response or a content field.
func (c *Client) ChatCompletion(ctx context.Context, llmID, systemPrompt string, messages []ChatMessage, temperature float64) (string, error) {
	payload := map[string]any{
		"llm_id":        llmID,
		"messages":      messages,
		"system_prompt": systemPrompt,
		"temperature":   temperature,
	}
	raw, err := c.Call(ctx, http.MethodPost, "/v2/create-chat-completion", payload)
	if err != nil {
		return "", err
	}
	var resp struct {
		Response string `json:"response"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if resp.Response != "" {
		return resp.Response, nil
	}
	return resp.Content, nil
}

func decodeCallList(raw json.RawMessage) ([]Call, error) {
	var calls []Call
	if err := json.Unmarshal(raw, &calls); err == nil {
		return calls, nil
	}
	var wrapped struct {
		Calls []Call `json:"calls"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode call list: %w", err)
	}
	return wrapped.Calls, nil
}

// ListKnowledgeBases returns every knowledge base on the platform.
func (c *Client) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	var kbs []KnowledgeBase
	if err := c.get(ctx, "/list-knowledge-bases", &kbs); err != nil {
		return nil, err
	}
	return kbs, nil
}

// GetKnowledgeBase fetches one knowledge base with its sources.
func (c *Client) GetKnowledgeBase(ctx context.Context, kbID string) (KnowledgeBase, error) {
	var kb KnowledgeBase
	err := c.get(ctx, "/get-knowledge-base/"+kbID, &kb)
	return kb, err
}

// DeleteKnowledgeBase removes a remote knowledge base.
func (c *Client) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	_, err := c.Call(ctx, http.MethodDelete, "/delete-knowledge-base/"+kbID, nil)
	return err
}

// DeleteKnowledgeBaseSource removes one source document from a knowledge base.
func (c *Client) DeleteKnowledgeBaseSource(ctx context.Context, kbID, sourceID string) error {
	_, err := c.Call(ctx, http.MethodDelete, "/delete-knowledge-base-source/"+kbID+"/source/"+sourceID, nil)
	return err
}

// TextSource is an inline text document for knowledge-base creation.
type TextSource struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// CreateKnowledgeBase creates a knowledge base. The platform takes this as
// multipart form data, with the text and URL sources JSON-encoded into fields.
func (c *Client) CreateKnowledgeBase(ctx context.Context, name string, texts []TextSource, urls []string) (KnowledgeBase, error) {
	var kb KnowledgeBase
	raw, err := c.multipart(ctx, "/create-knowledge-base", name, texts, urls, 60*time.Second)
	if err != nil {
		return kb, err
	}
	err = json.Unmarshal(raw, &kb)
	return kb, err
}

// AddKnowledgeBaseSources adds sources to an existing knowledge base.
func (c *Client) AddKnowledgeBaseSources(ctx context.Context, kbID string, texts []TextSource, urls []string) (KnowledgeBase, error) {
	var kb KnowledgeBase
	raw, err := c.multipart(ctx, "/add-knowledge-base-sources/"+kbID, "", texts, urls, 60*time.Second)
	if err != nil {
		return kb, err
	}
	err = json.Unmarshal(raw, &kb)
	return kb, err
}

func (c *Client) multipart(ctx context.Context, path, name string, texts []TextSource, urls []string, timeout time.Duration) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if name != "" {
		if err := w.WriteField("knowledge_base_name", name); err != nil {
			return nil, err
		}
	}
	if len(texts) > 0 {
		b, err := json.Marshal(texts)
		if err != nil {
			return nil, err
		}
		if err := w.WriteField("knowledge_base_texts", string(b)); err != nil {
			return nil, err
		}
	}
	if len(urls) > 0 {
		b, err := json.Marshal(urls)
		if err != nil {
			return nil, err
		}
		if err := w.WriteField("knowledge_base_urls", string(b)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.logger.Printf("POST %s (multipart)", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp.StatusCode, path, raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{"success":true}`), nil
	}
	return json.RawMessage(raw), nil
}
