package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/store"
	syncer "github.com/voiceline-ai/voiceline/internal/sync"
)

func testAgentsHandler(t *testing.T) (*AgentsHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	st := &store.Store{DB: db}
	orch := syncer.NewOrchestrator(nil, st, nil, log.New(io.Discard, "", 0))
	return &AgentsHandler{Store: st, Orch: orch}, mock, func() { db.Close() }
}

func TestCreateAgent(t *testing.T) {
	e := echo.New()
	handler, mock, closeDB := testAgentsHandler(t)
	defer closeDB()

	mock.ExpectExec(`INSERT INTO agents`).
		WithArgs(sqlmock.AnyArg(), nil, "Support Bot", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"name":"Support Bot","type":"voice","system_prompt":"Help customers.","language":"en-US"}`
	req := httptest.NewRequest(http.MethodPost, "/api/agents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}

	var resp store.AgentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" || resp.Status != "draft" || resp.Type != "voice" {
		t.Fatalf("unexpected record: %+v", resp)
	}
	if resp.VoiceConfig["language"] != "en-US" {
		t.Fatalf("language not folded into voice config: %+v", resp.VoiceConfig)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAgentRequiresName(t *testing.T) {
	e := echo.New()
	handler, _, closeDB := testAgentsHandler(t)
	defer closeDB()

	req := httptest.NewRequest(http.MethodPost, "/api/agents", strings.NewReader(`{"type":"chat"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())

	err := handler.create(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	e := echo.New()
	handler, mock, closeDB := testAgentsHandler(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT doc FROM agents WHERE id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/missing", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	err := handler.get(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestUpdateAgentMergesFields(t *testing.T) {
	e := echo.New()
	handler, mock, closeDB := testAgentsHandler(t)
	defer closeDB()

	existing := store.AgentRecord{ID: "a1", Name: "Old", Type: "chat", Status: "draft", SystemPrompt: "Old prompt."}
	doc, _ := json.Marshal(existing)
	mock.ExpectQuery(`SELECT doc FROM agents WHERE id=\$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))
	mock.ExpectExec(`UPDATE agents SET`).
		WithArgs("a1", nil, "New", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPut, "/api/agents/a1", strings.NewReader(`{"name":"New"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("a1")

	if err := handler.update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	var resp store.AgentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "New" || resp.SystemPrompt != "Old prompt." {
		t.Fatalf("merge broke fields: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
