package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/voiceline-ai/voiceline/internal/payments"
	"github.com/voiceline-ai/voiceline/internal/store"
)

// PaymentsHandler creates hosted checkout sessions and records the provider's
// webhook events.
type PaymentsHandler struct {
	Store         *store.Store
	Payments      *payments.Client
	WebhookSecret string
}

// Register wires the payment routes. The webhook is authenticated by its HMAC
// signature, not by a user token, so it sits outside the auth group.
func (h *PaymentsHandler) Register(g *echo.Group, secret []byte) {
	g.POST("/checkout", withAuth(h.checkout, secret))
	g.POST("/webhook", h.webhook)
}

func (h *PaymentsHandler) checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ProductID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}
	userID := c.Get("user_id").(string)
	meta := req.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	meta["user_id"] = userID

	link, err := h.Payments.Checkout(c.Request().Context(), payments.CheckoutRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Metadata:  meta,
		ReturnURL: req.ReturnURL,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, CheckoutResponse{CheckoutURL: link})
}

// PaymentRecord is the stored projection of one webhook event.
type PaymentRecord struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// SubscriptionRecord tracks the latest subscription state per user.
type SubscriptionRecord struct {
	UserID         string    `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
	Status         string    `json:"status"`
	ProductID      string    `json:"product_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (h *PaymentsHandler) webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	sig := c.Request().Header.Get("webhook-signature")
	if sig == "" {
		sig = c.Request().Header.Get("X-Signature")
	}
	if !payments.VerifySignature(h.WebhookSecret, body, sig) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}
	ev, err := payments.ParseEvent(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	userID := eventUserID(ev)
	rec := PaymentRecord{
		ID:        uuid.NewString(),
		EventType: ev.Type,
		UserID:    userID,
		Data:      ev.Data,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.InsertDoc(ctx, "payments", rec.ID, rec); err != nil {
		return httpError(err)
	}

	if userID != "" {
		if sub, ok := subscriptionFromEvent(ev, userID); ok {
			err := h.Store.UpdateDoc(ctx, "user_subscriptions", userID, sub)
			if errors.Is(err, store.ErrNotFound) {
				err = h.Store.InsertDoc(ctx, "user_subscriptions", userID, sub)
			}
			if err != nil {
				return httpError(err)
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func eventUserID(ev payments.Event) string {
	if meta, ok := ev.Data["metadata"].(map[string]any); ok {
		if id, ok := meta["user_id"].(string); ok {
			return id
		}
	}
	return ""
}

func subscriptionFromEvent(ev payments.Event, userID string) (SubscriptionRecord, bool) {
	var status string
	switch ev.Type {
	case "subscription.active", "subscription.renewed", "payment.succeeded":
		status = "active"
	case "subscription.cancelled", "subscription.expired", "subscription.failed":
		status = "inactive"
	default:
		return SubscriptionRecord{}, false
	}
	sub := SubscriptionRecord{
		UserID:    userID,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}
	if id, ok := ev.Data["subscription_id"].(string); ok {
		sub.SubscriptionID = id
	}
	if id, ok := ev.Data["product_id"].(string); ok {
		sub.ProductID = id
	}
	return sub, true
}
