package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/knowledge"
	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/scrape"
	"github.com/voiceline-ai/voiceline/internal/store"
)

// KnowledgeHandler owns local knowledge bases: records in the store, a remote
// counterpart on the voice platform when configured, and a full-text index
// for the search endpoint.
type KnowledgeHandler struct {
	Store    *store.Store
	Platform *platform.Client
	Index    *knowledge.Index
	Fetcher  *scrape.Fetcher
}

func (h *KnowledgeHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/search", h.search)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

func (h *KnowledgeHandler) list(c echo.Context) error {
	items, err := h.Store.ListKnowledgeBases(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []store.KnowledgeBaseRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *KnowledgeHandler) create(c echo.Context) error {
	ctx := c.Request().Context()
	var req CreateKnowledgeBaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if len(req.Texts) == 0 && len(req.URLs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one text or url source required")
	}

	rec := store.KnowledgeBaseRecord{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		Type:           "documents",
		DocumentsCount: len(req.Texts) + len(req.URLs),
		CreatedAt:      time.Now().UTC(),
	}

	if h.Platform.Configured() {
		texts := make([]platform.TextSource, 0, len(req.Texts))
		for _, t := range req.Texts {
			texts = append(texts, platform.TextSource{Title: t.Title, Text: t.Text})
		}
		remote, err := h.Platform.CreateKnowledgeBase(ctx, req.Name, texts, req.URLs)
		if err != nil {
			return httpError(err)
		}
		rec.RemoteKBID = remote.KnowledgeBaseID
	}

	if err := h.Store.InsertKnowledgeBase(ctx, rec); err != nil {
		return httpError(err)
	}
	h.indexSources(c, rec.ID, req)
	return c.JSON(http.StatusCreated, rec)
}

// indexSources feeds the new sources into the search index and persists them
// so the index can be rebuilt after a restart. Index failures and unreachable
// URLs degrade search only, so they are logged and skipped.
func (h *KnowledgeHandler) indexSources(c echo.Context, kbID string, req CreateKnowledgeBaseRequest) {
	for _, t := range req.Texts {
		doc := knowledge.Doc{ID: uuid.NewString(), KnowledgeBaseID: kbID, Title: t.Title, Text: t.Text}
		h.indexSource(c, doc)
	}
	for _, u := range req.URLs {
		res, err := h.Fetcher.Exec(c.Request().Context(), u)
		if err != nil {
			c.Logger().Warnf("fetch url source %s: %v", u, err)
			continue
		}
		doc := knowledge.Doc{ID: uuid.NewString(), KnowledgeBaseID: kbID, Title: res.Title, Text: res.Text, URL: u}
		h.indexSource(c, doc)
	}
}

func (h *KnowledgeHandler) indexSource(c echo.Context, doc knowledge.Doc) {
	if err := h.Index.Add(doc); err != nil {
		c.Logger().Warnf("index source %q: %v", doc.Title, err)
		return
	}
	if err := h.Store.InsertDoc(c.Request().Context(), "knowledge_sources", doc.ID, doc); err != nil {
		c.Logger().Warnf("persist source %q: %v", doc.Title, err)
	}
}

// LoadSearchIndex replays the persisted knowledge sources into a fresh
// mem-only index. Called once at startup.
func LoadSearchIndex(ctx context.Context, st *store.Store, ix *knowledge.Index) (int, error) {
	docs, err := st.ListDocs(ctx, "knowledge_sources", 10000)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range docs {
		var doc knowledge.Doc
		if err := json.Unmarshal(d.Doc, &doc); err != nil {
			continue
		}
		if err := ix.Add(doc); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (h *KnowledgeHandler) get(c echo.Context) error {
	rec, err := h.Store.GetKnowledgeBase(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *KnowledgeHandler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.Store.GetKnowledgeBase(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if rec.RemoteKBID != "" && h.Platform.Configured() {
		if err := h.Platform.DeleteKnowledgeBase(ctx, rec.RemoteKBID); err != nil {
			c.Logger().Warnf("remote delete knowledge base %s: %v", rec.RemoteKBID, err)
		}
	}
	if err := h.Store.DeleteKnowledgeBase(ctx, rec.ID); err != nil {
		return httpError(err)
	}
	if err := h.Index.DeleteKnowledgeBase(rec.ID); err != nil {
		c.Logger().Warnf("drop index for knowledge base %s: %v", rec.ID, err)
	}
	if err := h.Store.DeleteKnowledgeSources(ctx, rec.ID); err != nil {
		c.Logger().Warnf("drop persisted sources for knowledge base %s: %v", rec.ID, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (h *KnowledgeHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	hits, err := h.Index.Search(q, intParam(c, "limit", 10))
	if err != nil {
		return httpError(err)
	}
	if hits == nil {
		hits = []knowledge.Hit{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: q, Results: hits, Total: len(hits)})
}
