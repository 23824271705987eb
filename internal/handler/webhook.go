// This file implements the Stripe webhook handler.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// The route is PUBLIC (no auth middleware) because Stripe calls it
// directly. Authentication is the webhook signature verification.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/sami8890/Sam-pixels/internal/billing"
	"github.com/sami8890/Sam-pixels/internal/service"
)

// maxWebhookBodyBytes limits how much of a webhook payload is read.
const maxWebhookBodyBytes = 65536

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(
	billingService billing.Service,
	subscriptions service.SubscriptionService,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		billing:       billingService,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// HandleStripeWebhook verifies and applies an incoming Stripe event.
//
// A processing failure returns 500 so Stripe retries the delivery;
// signature failures return 400 and are not retried meaningfully.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	if err := h.subscriptions.HandleWebhookEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to process webhook event",
			"type", event.Type, "id", event.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
