package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/config"
	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
	"github.com/voiceline-ai/voiceline/provider"
)

type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Complete(ctx context.Context, systemPrompt string, messages []provider.Message) (string, error) {
	reply := s.replies[s.calls%len(s.replies)]
	s.calls++
	return reply, nil
}

func evalPlatform(t *testing.T, h http.HandlerFunc) (*platform.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(h)
	client := platform.NewClient(config.VoicePlatformConfig{
		APIKey:  "key_test",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	}, log.New(io.Discard, "", 0))
	return client, srv.Close
}

func TestRunBatchFallsBackWhenUnsupportedUpstream(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// remote batch endpoint does not exist on this account
	client, closeSrv := evalPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	defer closeSrv()

	agent := store.AgentRecord{ID: "a1", RemoteAgentID: "ra1", Name: "Bot", SystemPrompt: "Be brief."}
	agentDoc, _ := json.Marshal(agent)
	tc := TestCase{ID: "tc1", Name: "greeting", AgentID: "a1", UserPrompt: "Hi", ExpectedBehavior: "greets back"}
	tcDoc, _ := json.Marshal(tc)

	mock.ExpectQuery(`SELECT doc FROM agents WHERE id=\$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(agentDoc))
	mock.ExpectQuery(`SELECT doc FROM documents WHERE collection=\$1 AND id=\$2`).
		WithArgs("test_cases", "tc1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(tcDoc))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("batch_tests", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	llm := &scriptedLLM{replies: []string{
		"Hello! How can I help?",
		`{"passed": true, "reason": "greets the user"}`,
	}}
	handler := &EvalsHandler{
		Store:    &store.Store{DB: db},
		Platform: client,
		LLM:      llm,
		Delay:    time.Millisecond,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/retell/batch-tests", strings.NewReader(`{"agent_id":"a1","test_case_ids":["tc1"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.runBatch(ctx); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}

	var batch BatchTest
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if batch.Mode != "local" {
		t.Fatalf("expected local fallback, got mode %q", batch.Mode)
	}
	if batch.Status != "completed" || len(batch.Results) != 1 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if !batch.Results[0].Passed || batch.Results[0].Reason != "greets the user" {
		t.Fatalf("unexpected result: %+v", batch.Results[0])
	}
	if llm.calls != 2 {
		t.Fatalf("expected agent + judge completions, got %d calls", llm.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunBatchSurfacesUnexpectedRemoteFailure(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	client, closeSrv := evalPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusPaymentRequired)
	})
	defer closeSrv()

	agent := store.AgentRecord{ID: "a1", RemoteAgentID: "ra1", Name: "Bot"}
	agentDoc, _ := json.Marshal(agent)
	tc := TestCase{ID: "tc1", AgentID: "a1", UserPrompt: "Hi"}
	tcDoc, _ := json.Marshal(tc)

	mock.ExpectQuery(`SELECT doc FROM agents WHERE id=\$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(agentDoc))
	mock.ExpectQuery(`SELECT doc FROM documents WHERE collection=\$1 AND id=\$2`).
		WithArgs("test_cases", "tc1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(tcDoc))

	handler := &EvalsHandler{
		Store:    &store.Store{DB: db},
		Platform: client,
		LLM:      &scriptedLLM{replies: []string{"unused"}},
		Delay:    time.Millisecond,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/retell/batch-tests", strings.NewReader(`{"agent_id":"a1","test_case_ids":["tc1"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())

	err = handler.runBatch(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusPaymentRequired {
		t.Fatalf("expected upstream 402 to pass through, got %v", err)
	}
}

func TestRunBatchUsesLocalWhenAgentNotDeployed(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	agent := store.AgentRecord{ID: "a1", Name: "Chat Only", SystemPrompt: "Be helpful."}
	agentDoc, _ := json.Marshal(agent)
	tc := TestCase{ID: "tc1", AgentID: "a1", UserPrompt: "Hi"}
	tcDoc, _ := json.Marshal(tc)

	mock.ExpectQuery(`SELECT doc FROM agents WHERE id=\$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(agentDoc))
	mock.ExpectQuery(`SELECT doc FROM documents WHERE collection=\$1 AND id=\$2`).
		WithArgs("test_cases", "tc1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(tcDoc))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("batch_tests", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := &EvalsHandler{
		Store: &store.Store{DB: db},
		LLM: &scriptedLLM{replies: []string{
			"Sure, happy to help.",
			`{"passed": false, "reason": "misses the criteria"}`,
		}},
		Delay: time.Millisecond,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/retell/batch-tests", strings.NewReader(`{"agent_id":"a1","test_case_ids":["tc1"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.runBatch(ctx); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	var batch BatchTest
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if batch.Mode != "local" || batch.Results[0].Passed {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}
