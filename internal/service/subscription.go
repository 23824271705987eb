// This file implements the subscription service: checkout, cancellation,
// and Stripe webhook reconciliation against the subscriptions table.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/sami8890/Sam-pixels/internal/billing"
	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/repository"
)

// CheckoutParams describes a checkout session request.
type CheckoutParams struct {
	UserID     uuid.UUID
	PlanName   domain.PlanName
	SuccessURL string
	CancelURL  string
}

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService manages the lifecycle of paid subscriptions.
type SubscriptionService interface {
	// Checkout creates a Stripe Checkout session for upgrading to the named
	// plan and returns its URL.
	Checkout(ctx context.Context, params CheckoutParams) (string, error)

	// PortalURL returns a Stripe Customer Portal URL for the user.
	PortalURL(ctx context.Context, userID uuid.UUID, returnURL string) (string, error)

	// Cancel schedules the user's subscription for cancellation at period end.
	Cancel(ctx context.Context, userID uuid.UUID) error

	// HandleWebhookEvent applies a verified Stripe event to local state.
	// Unrecognized event types are ignored.
	HandleWebhookEvent(ctx context.Context, event stripe.Event) error

	// History returns the user's subscription rows, newest first.
	History(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)

	// Payments returns the user's payment history, newest first.
	Payments(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error)
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	queries      *repository.Queries
	billing      billing.Service
	entitlements EntitlementService
	users        UserService
	logger       *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(
	queries *repository.Queries,
	billingSvc billing.Service,
	entitlements EntitlementService,
	users UserService,
	logger *slog.Logger,
) SubscriptionService {
	return &subscriptionService{
		queries:      queries,
		billing:      billingSvc,
		entitlements: entitlements,
		users:        users,
		logger:       logger,
	}
}

// Checkout creates a Stripe Checkout session for the named plan.
func (s *subscriptionService) Checkout(ctx context.Context, params CheckoutParams) (string, error) {
	const op = "SubscriptionService.Checkout"

	if s.billing == nil {
		return "", domain.Invalid(op, "Billing is not configured")
	}
	if !params.PlanName.Valid() || params.PlanName == domain.PlanFree {
		return "", domain.Invalid(op, "Unknown plan")
	}

	plan, err := s.queries.GetPlanByName(ctx, params.PlanName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NotFound(op, "plan", string(params.PlanName))
		}
		return "", domain.Internal(err, op, "Failed to look up plan")
	}
	if plan.StripePriceID == "" {
		return "", domain.Invalid(op, "Plan is not purchasable")
	}

	user, err := s.users.GetByID(ctx, params.UserID)
	if err != nil {
		return "", err
	}

	customerID, err := s.customerIDForUser(ctx, params.UserID, user.Email, user.Name)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to resolve billing customer")
	}

	url, err := s.billing.CreateCheckoutSession(customerID, plan.StripePriceID, params.SuccessURL, params.CancelURL)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to create checkout session")
	}

	s.logger.Info("checkout session created", "user_id", params.UserID, "plan", params.PlanName)
	return url, nil
}

// customerIDForUser reuses the customer ID from any prior subscription or
// creates a fresh Stripe customer.
func (s *subscriptionService) customerIDForUser(ctx context.Context, userID uuid.UUID, email, name string) (string, error) {
	subs, err := s.queries.ListSubscriptionsForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, sub := range subs {
		if sub.StripeCustomerID != "" {
			return sub.StripeCustomerID, nil
		}
	}
	return s.billing.CreateCustomer(email, name)
}

// PortalURL returns a Stripe Customer Portal URL for the user.
func (s *subscriptionService) PortalURL(ctx context.Context, userID uuid.UUID, returnURL string) (string, error) {
	const op = "SubscriptionService.PortalURL"

	if s.billing == nil {
		return "", domain.Invalid(op, "Billing is not configured")
	}
	sub, err := s.entitlements.ActiveSubscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.StripeCustomerID == "" {
		return "", domain.Invalid(op, "No billing account on file")
	}

	url, err := s.billing.CreatePortalSession(sub.StripeCustomerID, returnURL)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to create portal session")
	}
	return url, nil
}

// Cancel schedules the user's subscription for cancellation at period end.
// The subscription row keeps its active status until the webhook confirms
// the final state.
func (s *subscriptionService) Cancel(ctx context.Context, userID uuid.UUID) error {
	const op = "SubscriptionService.Cancel"

	if s.billing == nil {
		return domain.Invalid(op, "Billing is not configured")
	}
	sub, err := s.entitlements.ActiveSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.Invalid(op, "No active subscription to cancel")
	}
	if sub.StripeSubscriptionID == "" {
		return domain.Invalid(op, "Subscription is not managed by billing")
	}

	if err := s.billing.CancelSubscription(sub.StripeSubscriptionID); err != nil {
		return domain.Internal(err, op, "Failed to cancel subscription")
	}

	s.logger.Info("subscription cancellation scheduled", "user_id", userID, "subscription_id", sub.ID)
	return nil
}

// HandleWebhookEvent applies a verified Stripe event to local state.
func (s *subscriptionService) HandleWebhookEvent(ctx context.Context, event stripe.Event) error {
	const op = "SubscriptionService.HandleWebhookEvent"

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return domain.Wrap(err, domain.EINVALID, op, "Malformed subscription payload")
		}
		return s.syncSubscription(ctx, &stripeSub)

	case "customer.subscription.deleted":
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return domain.Wrap(err, domain.EINVALID, op, "Malformed subscription payload")
		}
		return s.markCancelled(ctx, stripeSub.ID)

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return domain.Wrap(err, domain.EINVALID, op, "Malformed invoice payload")
		}
		return s.recordPayment(ctx, &invoice, domain.PaymentStatusSucceeded)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return domain.Wrap(err, domain.EINVALID, op, "Malformed invoice payload")
		}
		if err := s.recordPayment(ctx, &invoice, domain.PaymentStatusFailed); err != nil {
			return err
		}
		return s.markPastDue(ctx, &invoice)

	default:
		s.logger.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}
}

// syncSubscription upserts the local row matching a Stripe subscription.
func (s *subscriptionService) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription) error {
	const op = "SubscriptionService.syncSubscription"

	if len(stripeSub.Items.Data) == 0 {
		return domain.Invalid(op, "Subscription has no items")
	}
	priceID := stripeSub.Items.Data[0].Price.ID

	plan, err := s.queries.GetPlanByStripePriceID(ctx, priceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Errorf(domain.EINVALID, op, "No plan mapped to price %q", priceID)
		}
		return domain.Internal(err, op, "Failed to look up plan")
	}

	status := mapStripeStatus(stripeSub.Status)
	periodStart := time.Unix(stripeSub.CurrentPeriodStart, 0).UTC()
	periodEnd := time.Unix(stripeSub.CurrentPeriodEnd, 0).UTC()

	existing, err := s.queries.GetSubscriptionByStripeID(ctx, stripeSub.ID)
	if err == nil {
		return s.updateExisting(ctx, existing, status, periodStart, periodEnd)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Internal(err, op, "Failed to look up subscription")
	}

	// First sight of this subscription: find the user via the customer's
	// prior rows.
	prior, err := s.queries.GetLatestSubscriptionByStripeCustomer(ctx, stripeSub.Customer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("webhook for unknown customer", "customer_id", stripeSub.Customer.ID)
			return domain.Errorf(domain.ENOTFOUND, op, "Unknown customer %q", stripeSub.Customer.ID)
		}
		return domain.Internal(err, op, "Failed to look up customer")
	}

	_, err = s.queries.CreateSubscription(ctx, repository.CreateSubscriptionParams{
		UserID:               prior.UserID,
		PlanID:               plan.ID,
		StripeSubscriptionID: stripeSub.ID,
		StripeCustomerID:     stripeSub.Customer.ID,
		Status:               status,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to create subscription")
	}

	s.logger.Info("subscription created from webhook",
		"user_id", prior.UserID, "plan", plan.Name, "status", status)
	return nil
}

func (s *subscriptionService) updateExisting(ctx context.Context, existing domain.Subscription, status domain.SubscriptionStatus, periodStart, periodEnd time.Time) error {
	const op = "SubscriptionService.updateExisting"

	var cancelledAt *time.Time
	if status == domain.SubscriptionStatusCancelled {
		now := time.Now().UTC()
		cancelledAt = &now
	}

	err := s.queries.UpdateSubscriptionStatus(ctx, repository.UpdateSubscriptionStatusParams{
		ID:                 existing.ID,
		Status:             status,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		CancelledAt:        cancelledAt,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update subscription")
	}

	s.logger.Info("subscription updated from webhook",
		"subscription_id", existing.ID, "status", status)
	return nil
}

// markCancelled finalizes a deleted Stripe subscription.
func (s *subscriptionService) markCancelled(ctx context.Context, stripeSubID string) error {
	const op = "SubscriptionService.markCancelled"

	existing, err := s.queries.GetSubscriptionByStripeID(ctx, stripeSubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Nothing local to cancel; treat as already converged.
			return nil
		}
		return domain.Internal(err, op, "Failed to look up subscription")
	}

	return s.updateExisting(ctx, existing, domain.SubscriptionStatusCancelled,
		existing.CurrentPeriodStart, existing.CurrentPeriodEnd)
}

// markPastDue flips the subscription tied to a failed invoice.
func (s *subscriptionService) markPastDue(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil
	}
	existing, err := s.queries.GetSubscriptionByStripeID(ctx, invoice.Subscription.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return domain.Internal(err, "SubscriptionService.markPastDue", "Failed to look up subscription")
	}
	return s.updateExisting(ctx, existing, domain.SubscriptionStatusPastDue,
		existing.CurrentPeriodStart, existing.CurrentPeriodEnd)
}

// recordPayment appends a payment history row for an invoice event.
func (s *subscriptionService) recordPayment(ctx context.Context, invoice *stripe.Invoice, status domain.PaymentStatus) error {
	const op = "SubscriptionService.recordPayment"

	if invoice.Subscription == nil {
		return nil
	}

	sub, err := s.queries.GetSubscriptionByStripeID(ctx, invoice.Subscription.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("invoice for unknown subscription", "stripe_subscription_id", invoice.Subscription.ID)
			return nil
		}
		return domain.Internal(err, op, "Failed to look up subscription")
	}

	var intentID string
	if invoice.PaymentIntent != nil {
		intentID = invoice.PaymentIntent.ID
	}

	_, err = s.queries.CreatePayment(ctx, repository.CreatePaymentParams{
		UserID:                sub.UserID,
		SubscriptionID:        sub.ID,
		StripePaymentIntentID: intentID,
		AmountCents:           invoice.AmountPaid,
		Currency:              string(invoice.Currency),
		Status:                status,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to record payment")
	}
	return nil
}

// History returns the user's subscription rows, newest first.
func (s *subscriptionService) History(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	const op = "SubscriptionService.History"

	subs, err := s.queries.ListSubscriptionsForUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list subscriptions")
	}
	return subs, nil
}

// Payments returns the user's payment history, newest first.
func (s *subscriptionService) Payments(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	const op = "SubscriptionService.Payments"

	payments, err := s.queries.ListPaymentsForUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list payments")
	}
	return payments, nil
}

// mapStripeStatus converts Stripe subscription status to local status.
func mapStripeStatus(status stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return domain.SubscriptionStatusCancelled
	case stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionStatusUnpaid
	default:
		return domain.SubscriptionStatusInactive
	}
}
