package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
	syncer "github.com/voiceline-ai/voiceline/internal/sync"
)

// httpError translates domain errors into echo HTTP errors. Upstream API
// errors keep their upstream status so the caller sees what the platform said.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	if errors.Is(err, platform.ErrNotConfigured) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "voice platform not configured")
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, syncer.ErrSyncInProgress) {
		return echo.NewHTTPError(http.StatusConflict, "sync already running")
	}
	var authErr *platform.AuthError
	if errors.As(err, &authErr) {
		return echo.NewHTTPError(http.StatusUnauthorized, authErr.Error())
	}
	var nfErr *platform.NotFoundError
	if errors.As(err, &nfErr) {
		return echo.NewHTTPError(http.StatusNotFound, nfErr.Error())
	}
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return echo.NewHTTPError(apiErr.Status, apiErr.Message)
	}
	var connErr *platform.ConnectivityError
	if errors.As(err, &connErr) {
		return echo.NewHTTPError(http.StatusBadGateway, connErr.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
