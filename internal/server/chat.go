package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
	"github.com/voiceline-ai/voiceline/provider"
)

const defaultSystemPrompt = "You are a helpful AI assistant."

// ChatHandler proxies conversations with a configured agent. The LLM deployed
// behind the agent on the voice platform answers first; agents without a
// remote deployment, and remote completions that fail, fall back to the
// configured provider.
type ChatHandler struct {
	Store    *store.Store
	Platform *platform.Client
	LLM      provider.Provider
}

func (h *ChatHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.chat)
	g.POST("/test", h.testChat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	ctx := c.Request().Context()
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AgentID == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id and message required")
	}
	agent, err := h.Store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return httpError(err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	systemPrompt := agent.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	messages := make([]provider.Message, 0, len(req.History)+1)
	for _, t := range req.History {
		messages = append(messages, provider.Message{Role: chatRole(t.Role), Content: t.Content})
	}
	messages = append(messages, provider.Message{Role: "user", Content: req.Message})

	response, err := h.complete(ctx, c, agent, systemPrompt, messages)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ChatResponse{Response: response, SessionID: sessionID})
}

// complete tries the agent's remote LLM first. Any remote failure is logged
// and answered by the provider instead, so chat stays available when the
// platform is down or the account has no chat-completion support.
func (h *ChatHandler) complete(ctx context.Context, c echo.Context, agent store.AgentRecord, systemPrompt string, messages []provider.Message) (string, error) {
	if agent.RemoteLLMID != "" && h.Platform != nil && h.Platform.Configured() {
		remote := make([]platform.ChatMessage, 0, len(messages))
		for _, m := range messages {
			remote = append(remote, platform.ChatMessage{Role: m.Role, Content: m.Content})
		}
		response, err := h.Platform.ChatCompletion(ctx, agent.RemoteLLMID, systemPrompt, remote, chatTemperature(agent))
		if err == nil && response != "" {
			return response, nil
		}
		if err != nil {
			c.Logger().Warnf("remote chat completion for agent %s failed, using provider: %v", agent.ID, err)
		}
	}
	return h.LLM.Complete(ctx, systemPrompt, messages)
}

func (h *ChatHandler) testChat(c echo.Context) error {
	var req TestChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	response, err := h.LLM.Complete(c.Request().Context(), defaultSystemPrompt, []provider.Message{
		{Role: "user", Content: req.Message},
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"response": response})
}

func chatRole(role string) string {
	if role == "assistant" || role == "agent" {
		return "assistant"
	}
	return "user"
}

func chatTemperature(agent store.AgentRecord) float64 {
	if t, ok := agent.ChatConfig["temperature"].(float64); ok && t > 0 {
		return t
	}
	return 0.7
}
