package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sami8890/Sam-pixels/internal/auth"
	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/service"
)

// BillingHandler handles plan catalog and subscription endpoints.
type BillingHandler struct {
	subscriptions service.SubscriptionService
	entitlements  service.EntitlementService
	logger        *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(
	subscriptions service.SubscriptionService,
	entitlements service.EntitlementService,
	logger *slog.Logger,
) *BillingHandler {
	return &BillingHandler{
		subscriptions: subscriptions,
		entitlements:  entitlements,
		logger:        logger,
	}
}

// =============================================================================
// Request / Response Types
// =============================================================================

type checkoutRequest struct {
	Plan       string `json:"plan"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type portalRequest struct {
	ReturnURL string `json:"return_url"`
}

type planResponse struct {
	ID            string          `json:"id"`
	Name          domain.PlanName `json:"name"`
	DisplayName   string          `json:"display_name"`
	Description   string          `json:"description"`
	PriceCents    int64           `json:"price_cents"`
	BillingPeriod string          `json:"billing_period"`

	// MonthlyProcessingLimit is null for unlimited tiers.
	MonthlyProcessingLimit *int `json:"monthly_processing_limit"`

	MaxFileSizeMB int      `json:"max_file_size_mb"`
	MaxResolution string   `json:"max_resolution"`
	Capabilities  []string `json:"capabilities"`
}

func toPlanResponse(p *domain.SubscriptionPlan) planResponse {
	caps := p.Capabilities.Names()
	if caps == nil {
		caps = []string{}
	}
	return planResponse{
		ID:                     p.ID.String(),
		Name:                   p.Name,
		DisplayName:            p.Title(),
		Description:            p.Description,
		PriceCents:             p.PriceCents,
		BillingPeriod:          p.BillingPeriod,
		MonthlyProcessingLimit: p.MonthlyProcessingLimit,
		MaxFileSizeMB:          p.MaxFileSizeMB,
		MaxResolution:          p.MaxResolution,
		Capabilities:           caps,
	}
}

type subscriptionResponse struct {
	ID                 string                    `json:"id"`
	Plan               *planResponse             `json:"plan,omitempty"`
	Status             domain.SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time                 `json:"current_period_start"`
	CurrentPeriodEnd   time.Time                 `json:"current_period_end"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
}

func toSubscriptionResponse(s *domain.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:                 s.ID.String(),
		Status:             s.Status,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
	}
	if s.Plan != nil {
		plan := toPlanResponse(s.Plan)
		resp.Plan = &plan
	}
	return resp
}

type paymentResponse struct {
	ID          string               `json:"id"`
	AmountCents int64                `json:"amount_cents"`
	Currency    string               `json:"currency"`
	Status      domain.PaymentStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID.String(),
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

// =============================================================================
// Handlers
// =============================================================================

// ListPlans handles GET /api/billing/plans. Public: no authentication.
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.entitlements.ListPlans(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]planResponse, 0, len(plans))
	for i := range plans {
		out = append(out, toPlanResponse(&plans[i]))
	}

	respondJSON(w, h.logger, http.StatusOK, map[string][]planResponse{"plans": out})
}

// Subscription handles GET /api/billing/subscription, returning the user's
// active subscription or null when on the free tier.
func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	sub, err := h.entitlements.ActiveSubscription(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if sub == nil {
		respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"subscription": nil})
		return
	}

	respondJSON(w, h.logger, http.StatusOK,
		map[string]subscriptionResponse{"subscription": toSubscriptionResponse(sub)})
}

// Checkout handles POST /api/billing/checkout, returning a Stripe Checkout
// URL for the requested plan.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.subscriptions.Checkout(r.Context(), service.CheckoutParams{
		UserID:     user.ID,
		PlanName:   domain.PlanName(req.Plan),
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]string{"url": url})
}

// Portal handles POST /api/billing/portal, returning a Stripe Customer
// Portal URL.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req portalRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.subscriptions.PortalURL(r.Context(), user.ID, req.ReturnURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]string{"url": url})
}

// Cancel handles POST /api/billing/cancel, scheduling cancellation at the
// end of the current period.
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := h.subscriptions.Cancel(r.Context(), user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/billing/history.
func (h *BillingHandler) History(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	subs, err := h.subscriptions.History(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, toSubscriptionResponse(&subs[i]))
	}

	respondJSON(w, h.logger, http.StatusOK, map[string][]subscriptionResponse{"subscriptions": out})
}

// Payments handles GET /api/billing/payments.
func (h *BillingHandler) Payments(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	payments, err := h.subscriptions.Payments(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, toPaymentResponse(&payments[i]))
	}

	respondJSON(w, h.logger, http.StatusOK, map[string][]paymentResponse{"payments": out})
}
