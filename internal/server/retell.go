package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/analytics"
	"github.com/voiceline-ai/voiceline/internal/platform"
	syncer "github.com/voiceline-ai/voiceline/internal/sync"
)

// RetellHandler fronts the voice platform: reconciliation triggers, the
// call-history and analytics views, and a thin proxy over remote resources.
type RetellHandler struct {
	Platform *platform.Client
	Orch     *syncer.Orchestrator
}

func (h *RetellHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })

	g.POST("/sync-agents", h.syncAgents)
	g.GET("/test-api-key", h.testAPIKey)
	g.GET("/history", h.history)
	g.GET("/analytics/overview", h.analyticsOverview)

	g.GET("/agents", h.listAgents)
	g.GET("/agents/:id", h.getAgent)
	g.DELETE("/agents/:id", h.deleteAgent)
	g.POST("/agents/:id/web-call", h.webCall)
	g.GET("/calls/:id", h.getCall)
	g.GET("/voices", h.listVoices)

	g.POST("/knowledge-bases/sync", h.syncKnowledgeBases)
	g.GET("/knowledge-bases", h.listKnowledgeBases)
	g.GET("/knowledge-bases/:id", h.getKnowledgeBase)
	g.DELETE("/knowledge-bases/:id", h.deleteKnowledgeBase)
	g.DELETE("/knowledge-bases/:id/sources/:sourceId", h.deleteKnowledgeBaseSource)
}

func (h *RetellHandler) syncAgents(c echo.Context) error {
	res, err := h.Orch.SyncAgents(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RetellHandler) syncKnowledgeBases(c echo.Context) error {
	res, err := h.Orch.SyncKnowledgeBases(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// testAPIKey verifies the configured credential with a cheap list call.
func (h *RetellHandler) testAPIKey(c echo.Context) error {
	if !h.Platform.Configured() {
		return c.JSON(http.StatusOK, map[string]any{"valid": false, "error": "api key not configured"})
	}
	if _, err := h.Platform.ListVoices(c.Request().Context()); err != nil {
		return c.JSON(http.StatusOK, map[string]any{"valid": false, "error": err.Error(), "key_prefix": h.Platform.KeyPrefix()})
	}
	return c.JSON(http.StatusOK, map[string]any{"valid": true, "key_prefix": h.Platform.KeyPrefix()})
}

func (h *RetellHandler) history(c echo.Context) error {
	limit := intParam(c, "limit", 50)
	days := intParam(c, "days", 30)
	res, err := h.Orch.History(c.Request().Context(), limit, days, c.QueryParam("agent_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RetellHandler) analyticsOverview(c echo.Context) error {
	days := intParam(c, "days", 30)
	res, err := h.Orch.Overview(c.Request().Context(), days, c.QueryParam("agent_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RetellHandler) listAgents(c echo.Context) error {
	agents, err := h.Platform.ListAgents(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, agents)
}

func (h *RetellHandler) getAgent(c echo.Context) error {
	agent, err := h.Platform.GetAgent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, agent)
}

func (h *RetellHandler) deleteAgent(c echo.Context) error {
	if err := h.Platform.DeleteAgent(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (h *RetellHandler) webCall(c echo.Context) error {
	var req WebCallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	call, err := h.Platform.CreateWebCall(c.Request().Context(), c.Param("id"), req.Metadata)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, call)
}

// getCall fetches one call with transcript and analysis. Calls predating the
// trust cutoff are withheld even when the platform still returns them.
func (h *RetellHandler) getCall(c echo.Context) error {
	call, err := h.Platform.GetCall(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if call.Timestamp() < analytics.CutoffTimestampMs {
		return echo.NewHTTPError(http.StatusNotFound, "call not found")
	}
	return c.JSON(http.StatusOK, call)
}

func (h *RetellHandler) listVoices(c echo.Context) error {
	voices, err := h.Platform.ListVoices(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, voices)
}

func (h *RetellHandler) listKnowledgeBases(c echo.Context) error {
	kbs, err := h.Platform.ListKnowledgeBases(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, kbs)
}

func (h *RetellHandler) getKnowledgeBase(c echo.Context) error {
	kb, err := h.Platform.GetKnowledgeBase(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, kb)
}

func (h *RetellHandler) deleteKnowledgeBase(c echo.Context) error {
	if err := h.Platform.DeleteKnowledgeBase(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (h *RetellHandler) deleteKnowledgeBaseSource(c echo.Context) error {
	if err := h.Platform.DeleteKnowledgeBaseSource(c.Request().Context(), c.Param("id"), c.Param("sourceId")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// intParam reads a positive integer query parameter with a default.
func intParam(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
