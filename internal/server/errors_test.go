package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
	syncer "github.com/voiceline-ai/voiceline/internal/sync"
)

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not configured", platform.ErrNotConfigured, http.StatusServiceUnavailable},
		{"store miss", store.ErrNotFound, http.StatusNotFound},
		{"sync running", syncer.ErrSyncInProgress, http.StatusConflict},
		{"upstream auth", &platform.AuthError{}, http.StatusUnauthorized},
		{"upstream missing", &platform.NotFoundError{Path: "/get-agent/x"}, http.StatusNotFound},
		{"upstream api", &platform.APIError{Status: http.StatusUnprocessableEntity, Message: "bad voice"}, http.StatusUnprocessableEntity},
		{"network", &platform.ConnectivityError{Err: errors.New("refused")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			he, ok := httpError(tc.err).(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %T", httpError(tc.err))
			}
			if he.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, he.Code)
			}
		})
	}
}

func TestHTTPErrorPassthrough(t *testing.T) {
	orig := echo.NewHTTPError(http.StatusTeapot, "kept")
	if got := httpError(orig); got != orig {
		t.Fatalf("echo errors must pass through, got %v", got)
	}
}
