package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	syncer "github.com/voiceline-ai/voiceline/internal/sync"
)

// AnalyticsHandler serves the dashboard aggregation endpoints.
type AnalyticsHandler struct {
	Orch *syncer.Orchestrator
}

func (h *AnalyticsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/chart-data", h.chartData)
	g.GET("/calls", h.calls)
	g.GET("/recent-calls", h.recentCalls)
	g.GET("/agents/:id", h.agentOverview)
}

func (h *AnalyticsHandler) chartData(c echo.Context) error {
	days := intParam(c, "days", 7)
	res, err := h.Orch.ChartData(c.Request().Context(), days)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AnalyticsHandler) calls(c echo.Context) error {
	days := intParam(c, "days", 30)
	res, err := h.Orch.Overview(c.Request().Context(), days, c.QueryParam("agent_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AnalyticsHandler) recentCalls(c echo.Context) error {
	limit := intParam(c, "limit", 10)
	res, err := h.Orch.RecentCalls(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"calls": res, "total": len(res)})
}

func (h *AnalyticsHandler) agentOverview(c echo.Context) error {
	days := intParam(c, "days", 30)
	res, err := h.Orch.AgentOverview(c.Request().Context(), c.Param("id"), days)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
