package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/media"
)

// MediaHandler mints room access tokens for browser voice sessions.
type MediaHandler struct {
	Issuer media.Issuer
}

func (h *MediaHandler) Register(g *echo.Group, secret []byte) {
	g.POST("/token", withAuth(h.token, secret))
}

func (h *MediaHandler) token(c echo.Context) error {
	var req VoiceTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Room == "" {
		req.Room = "voice-" + uuid.NewString()
	}
	identity := req.Identity
	if identity == "" {
		identity = c.Get("user_id").(string)
	}
	tok, err := h.Issuer.Token(req.Room, identity)
	if err != nil {
		if err == media.ErrNotConfigured {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "media service not configured")
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, VoiceTokenResponse{Token: tok, Room: req.Room})
}
