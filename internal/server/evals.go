package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
	"github.com/voiceline-ai/voiceline/provider"
)

// TestCase is an eval scenario run against an agent configuration.
type TestCase struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	AgentID          string    `json:"agent_id"`
	UserPrompt       string    `json:"user_prompt"`
	ExpectedBehavior string    `json:"expected_behavior"`
	SuccessCriteria  []string  `json:"success_criteria"`
	CreatedAt        time.Time `json:"created_at"`
}

// TestResult is the outcome of one test case within a batch.
type TestResult struct {
	TestCaseID string `json:"test_case_id"`
	Passed     bool   `json:"passed"`
	Response   string `json:"response,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchTest records one batch run. Mode is "remote" when the platform ran the
// simulation and "local" when evaluation fell back to the LLM judge.
type BatchTest struct {
	ID          string       `json:"id"`
	AgentID     string       `json:"agent_id"`
	TestCaseIDs []string     `json:"test_case_ids"`
	Status      string       `json:"status"`
	Mode        string       `json:"mode"`
	Results     []TestResult `json:"results"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt time.Time    `json:"completed_at,omitempty"`
}

// EvalsHandler runs agent test cases, remotely when the platform supports
// batch simulation and locally otherwise.
type EvalsHandler struct {
	Store    *store.Store
	Platform *platform.Client
	LLM      provider.Provider

	// Delay throttles consecutive local LLM evaluations.
	Delay time.Duration
}

func (h *EvalsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/test-cases", h.listTestCases)
	g.POST("/test-cases", h.createTestCase)
	g.GET("/test-cases/:id", h.getTestCase)
	g.PUT("/test-cases/:id", h.updateTestCase)
	g.DELETE("/test-cases/:id", h.deleteTestCase)
	g.POST("/batch-tests", h.runBatch)
	g.GET("/batch-tests", h.listBatches)
	g.GET("/batch-tests/:id", h.getBatch)
}

func (h *EvalsHandler) listTestCases(c echo.Context) error {
	docs, err := h.Store.ListDocs(c.Request().Context(), "test_cases", 200)
	if err != nil {
		return httpError(err)
	}
	out := make([]TestCase, 0, len(docs))
	for _, d := range docs {
		var tc TestCase
		if err := json.Unmarshal(d.Doc, &tc); err != nil {
			return httpError(err)
		}
		out = append(out, tc)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvalsHandler) createTestCase(c echo.Context) error {
	var req TestCaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.AgentID == "" || req.UserPrompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name, agent_id and user_prompt required")
	}
	if _, err := h.Store.GetAgent(c.Request().Context(), req.AgentID); err != nil {
		return httpError(err)
	}
	tc := TestCase{
		ID:               uuid.NewString(),
		Name:             req.Name,
		AgentID:          req.AgentID,
		UserPrompt:       req.UserPrompt,
		ExpectedBehavior: req.ExpectedBehavior,
		SuccessCriteria:  req.SuccessCriteria,
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.Store.InsertDoc(c.Request().Context(), "test_cases", tc.ID, tc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tc)
}

func (h *EvalsHandler) getTestCase(c echo.Context) error {
	var tc TestCase
	if err := h.Store.GetDoc(c.Request().Context(), "test_cases", c.Param("id"), &tc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tc)
}

func (h *EvalsHandler) updateTestCase(c echo.Context) error {
	ctx := c.Request().Context()
	var tc TestCase
	if err := h.Store.GetDoc(ctx, "test_cases", c.Param("id"), &tc); err != nil {
		return httpError(err)
	}
	var req TestCaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != "" {
		tc.Name = req.Name
	}
	if req.UserPrompt != "" {
		tc.UserPrompt = req.UserPrompt
	}
	if req.ExpectedBehavior != "" {
		tc.ExpectedBehavior = req.ExpectedBehavior
	}
	if req.SuccessCriteria != nil {
		tc.SuccessCriteria = req.SuccessCriteria
	}
	if err := h.Store.UpdateDoc(ctx, "test_cases", tc.ID, tc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tc)
}

func (h *EvalsHandler) deleteTestCase(c echo.Context) error {
	if err := h.Store.DeleteDoc(c.Request().Context(), "test_cases", c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// runBatch tries the platform's batch simulation first. A 404 from the remote
// means the account or API version has no batch support, which is not a
// failure: evaluation falls back to local sequential LLM runs. Any other
// remote error is surfaced as-is.
func (h *EvalsHandler) runBatch(c echo.Context) error {
	ctx := c.Request().Context()
	var req BatchTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AgentID == "" || len(req.TestCaseIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id and test_case_ids required")
	}
	agent, err := h.Store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return httpError(err)
	}
	cases := make([]TestCase, 0, len(req.TestCaseIDs))
	for _, id := range req.TestCaseIDs {
		var tc TestCase
		if err := h.Store.GetDoc(ctx, "test_cases", id, &tc); err != nil {
			return httpError(err)
		}
		cases = append(cases, tc)
	}

	batch := BatchTest{
		ID:          uuid.NewString(),
		AgentID:     req.AgentID,
		TestCaseIDs: req.TestCaseIDs,
		Status:      "running",
		CreatedAt:   time.Now().UTC(),
	}

	results, mode, err := h.runRemote(ctx, agent, cases)
	if err != nil {
		var nf *platform.NotFoundError
		if !errors.As(err, &nf) {
			return httpError(err)
		}
		results, err = h.runLocal(ctx, agent, cases)
		if err != nil {
			return httpError(err)
		}
		mode = "local"
	}

	batch.Mode = mode
	batch.Results = results
	batch.Status = "completed"
	batch.CompletedAt = time.Now().UTC()
	if err := h.Store.InsertDoc(ctx, "batch_tests", batch.ID, batch); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, batch)
}

// runRemote submits the test cases to the platform batch endpoint.
func (h *EvalsHandler) runRemote(ctx context.Context, agent store.AgentRecord, cases []TestCase) ([]TestResult, string, error) {
	if agent.RemoteAgentID == "" {
		return nil, "", &platform.NotFoundError{Path: "agent has no remote deployment"}
	}
	payload := map[string]any{"agent_id": agent.RemoteAgentID}
	tests := make([]map[string]any, 0, len(cases))
	for _, tc := range cases {
		tests = append(tests, map[string]any{
			"name":              tc.Name,
			"user_prompt":       tc.UserPrompt,
			"expected_behavior": tc.ExpectedBehavior,
			"success_criteria":  tc.SuccessCriteria,
		})
	}
	payload["test_cases"] = tests

	raw, err := h.Platform.Call(ctx, http.MethodPost, "/create-batch-test", payload)
	if err != nil {
		return nil, "", err
	}
	var resp struct {
		Results []TestResult `json:"results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, "", fmt.Errorf("failed to parse batch test response: %w", err)
	}
	return resp.Results, "remote", nil
}

// runLocal evaluates each case with the LLM judge, sequentially with a fixed
// delay so the completions API is not hammered.
func (h *EvalsHandler) runLocal(ctx context.Context, agent store.AgentRecord, cases []TestCase) ([]TestResult, error) {
	delay := h.Delay
	if delay <= 0 {
		delay = time.Second
	}
	results := make([]TestResult, 0, len(cases))
	for i, tc := range cases {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		results = append(results, h.evalCase(ctx, agent, tc))
	}
	return results, nil
}

func (h *EvalsHandler) evalCase(ctx context.Context, agent store.AgentRecord, tc TestCase) TestResult {
	res := TestResult{TestCaseID: tc.ID}
	response, err := h.LLM.Complete(ctx, agent.SystemPrompt, []provider.Message{
		{Role: "user", Content: tc.UserPrompt},
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Response = response

	verdict, err := h.LLM.Complete(ctx, judgeSystemPrompt, []provider.Message{
		{Role: "user", Content: judgeUserPrompt(tc, response)},
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	var parsed struct {
		Passed bool   `json:"passed"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(verdict)), &parsed); err != nil {
		res.Error = fmt.Sprintf("failed to parse verdict: %v", err)
		return res
	}
	res.Passed = parsed.Passed
	res.Reason = parsed.Reason
	return res
}

const judgeSystemPrompt = `You are an evaluation judge for AI agent responses.
Given an agent response, the expected behavior and the success criteria,
decide whether the response satisfies them.
Respond ONLY with valid JSON: {"passed": true|false, "reason": "one sentence"}.
Do not include any other text or explanation.`

func judgeUserPrompt(tc TestCase, response string) string {
	return fmt.Sprintf(`EXPECTED BEHAVIOR:
%s

SUCCESS CRITERIA:
%s

AGENT RESPONSE:
%s`, tc.ExpectedBehavior, strings.Join(tc.SuccessCriteria, "\n"), response)
}

func (h *EvalsHandler) listBatches(c echo.Context) error {
	docs, err := h.Store.ListDocs(c.Request().Context(), "batch_tests", 100)
	if err != nil {
		return httpError(err)
	}
	out := make([]BatchTest, 0, len(docs))
	for _, d := range docs {
		var bt BatchTest
		if err := json.Unmarshal(d.Doc, &bt); err != nil {
			return httpError(err)
		}
		out = append(out, bt)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvalsHandler) getBatch(c echo.Context) error {
	var bt BatchTest
	if err := h.Store.GetDoc(c.Request().Context(), "batch_tests", c.Param("id"), &bt); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, bt)
}
