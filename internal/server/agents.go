package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
	syncer "github.com/voiceline-ai/voiceline/internal/sync"
)

// AgentsHandler owns the locally stored agent configurations and their
// deployment to the voice platform.
type AgentsHandler struct {
	Store    *store.Store
	Platform *platform.Client
	Orch     *syncer.Orchestrator
}

func (h *AgentsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.POST("/cleanup", h.cleanup)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/deploy", h.deploy)
}

func (h *AgentsHandler) list(c echo.Context) error {
	items, err := h.Store.ListAgents(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []store.AgentRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AgentsHandler) create(c echo.Context) error {
	var req CreateAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if req.Type == "" {
		req.Type = "chat"
	}
	now := h.Orch.Clock.Time()
	rec := store.AgentRecord{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.Type,
		Status:          "draft",
		SystemPrompt:    req.SystemPrompt,
		GreetingMessage: req.Greeting,
		VoiceConfig:     req.VoiceConfig,
		ChatConfig:      req.ChatConfig,
		Tools:           req.Tools,
		KnowledgeBases:  req.KnowledgeBases,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Language != "" {
		if rec.VoiceConfig == nil {
			rec.VoiceConfig = map[string]any{}
		}
		rec.VoiceConfig["language"] = req.Language
	}
	if err := h.Store.InsertAgent(c.Request().Context(), rec); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *AgentsHandler) get(c echo.Context) error {
	rec, err := h.Store.GetAgent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *AgentsHandler) update(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.Store.GetAgent(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	var req CreateAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != "" {
		rec.Name = req.Name
	}
	if req.Description != "" {
		rec.Description = req.Description
	}
	if req.SystemPrompt != "" {
		rec.SystemPrompt = req.SystemPrompt
	}
	if req.Greeting != "" {
		rec.GreetingMessage = req.Greeting
	}
	if req.VoiceConfig != nil {
		rec.VoiceConfig = req.VoiceConfig
	}
	if req.ChatConfig != nil {
		rec.ChatConfig = req.ChatConfig
	}
	if req.Tools != nil {
		rec.Tools = req.Tools
	}
	if req.KnowledgeBases != nil {
		rec.KnowledgeBases = req.KnowledgeBases
	}
	rec.UpdatedAt = h.Orch.Clock.Time()
	if err := h.Store.UpdateAgent(ctx, rec); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *AgentsHandler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.Store.GetAgent(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	// best-effort remote delete; a dangling remote agent would be purged by
	// the platform-side cleanup anyway
	if rec.RemoteAgentID != "" && h.Platform.Configured() {
		if err := h.Platform.DeleteAgent(ctx, rec.RemoteAgentID); err != nil {
			c.Logger().Warnf("remote delete agent %s: %v", rec.RemoteAgentID, err)
		}
	}
	if err := h.Store.DeleteAgent(ctx, rec.ID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// deploy pushes the local configuration to the voice platform, creating the
// remote agent on first deploy and patching it afterwards.
func (h *AgentsHandler) deploy(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.Store.GetAgent(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	payload := map[string]any{
		"agent_name": rec.Name,
	}
	if rec.VoiceConfig != nil {
		if v, ok := rec.VoiceConfig["voice_id"].(string); ok && v != "" {
			payload["voice_id"] = v
		}
		if v, ok := rec.VoiceConfig["language"].(string); ok && v != "" {
			payload["language"] = v
		}
	}

	if rec.RemoteAgentID == "" {
		raw, err := h.Platform.CreateAgent(ctx, payload)
		if err != nil {
			return httpError(err)
		}
		var created platform.Agent
		if err := json.Unmarshal(raw, &created); err != nil {
			return httpError(err)
		}
		rec.RemoteAgentID = created.AgentID
		if created.ResponseEngine != nil {
			rec.RemoteLLMID = created.ResponseEngine.LLMID
		}
	} else {
		if _, err := h.Platform.UpdateAgent(ctx, rec.RemoteAgentID, payload); err != nil {
			return httpError(err)
		}
	}

	rec.Status = "deployed"
	rec.UpdatedAt = h.Orch.Clock.Time()
	if err := h.Store.UpdateAgent(ctx, rec); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *AgentsHandler) cleanup(c echo.Context) error {
	res, err := h.Orch.CleanupStale(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
