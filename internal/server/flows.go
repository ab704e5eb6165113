package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/store"
)

// FlowsHandler stores conversation-flow graphs per agent. Node and edge
// payloads are opaque documents owned by the flow editor.
type FlowsHandler struct {
	Store *store.Store
}

func (h *FlowsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/:id/flows", h.list)
	g.POST("/:id/flows", h.create)
	g.GET("/:id/flows/:flowId", h.get)
	g.PUT("/:id/flows/:flowId", h.update)
	g.DELETE("/:id/flows/:flowId", h.delete)
}

func (h *FlowsHandler) list(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.Store.GetAgent(ctx, c.Param("id")); err != nil {
		return httpError(err)
	}
	items, err := h.Store.ListFlows(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []store.FlowRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *FlowsHandler) create(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.Store.GetAgent(ctx, c.Param("id")); err != nil {
		return httpError(err)
	}
	var req FlowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	now := time.Now().UTC()
	rec := store.FlowRecord{
		ID:        uuid.NewString(),
		AgentID:   c.Param("id"),
		Name:      req.Name,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec.Nodes == nil {
		rec.Nodes = []any{}
	}
	if rec.Edges == nil {
		rec.Edges = []any{}
	}
	if err := h.Store.InsertFlow(ctx, rec); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *FlowsHandler) get(c echo.Context) error {
	rec, err := h.Store.GetFlow(c.Request().Context(), c.Param("id"), c.Param("flowId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *FlowsHandler) update(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.Store.GetFlow(ctx, c.Param("id"), c.Param("flowId"))
	if err != nil {
		return httpError(err)
	}
	var req FlowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != "" {
		rec.Name = req.Name
	}
	if req.Nodes != nil {
		rec.Nodes = req.Nodes
	}
	if req.Edges != nil {
		rec.Edges = req.Edges
	}
	rec.UpdatedAt = time.Now().UTC()
	if err := h.Store.UpdateFlow(ctx, rec); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *FlowsHandler) delete(c echo.Context) error {
	if err := h.Store.DeleteFlow(c.Request().Context(), c.Param("id"), c.Param("flowId")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
