package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid    SubscriptionStatus = "unpaid"
)

// Subscription is an entitlement record tying a user to a plan for a
// billing period. A user accumulates subscription rows over time; rows are
// never hard-deleted (cancellation is a status change).
type Subscription struct {
	ID     uuid.UUID
	UserID uuid.UUID
	PlanID uuid.UUID

	// Plan is populated by lookups that join the plan catalog. An active
	// subscription whose plan row is missing is a data-integrity error and
	// is surfaced by the entitlement resolver, never defaulted.
	Plan *SubscriptionPlan

	StripeSubscriptionID string
	StripeCustomerID     string

	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt *time.Time
}

// IsActive reports whether the subscription is both marked active and
// inside its billing period.
//
// Note: the entitlement lookup itself filters on status only and does NOT
// apply this period check, so an expired-but-still-active-status row keeps
// granting its paid limits. That matches the original behavior; callers
// that want strict expiry must check IsActive explicitly.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && now.Before(s.CurrentPeriodEnd)
}

// DaysRemaining returns the whole days left in the billing period, or 0
// when the subscription is not active.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.IsActive(now) {
		return 0
	}
	return int(s.CurrentPeriodEnd.Sub(now).Hours() / 24)
}

// PaymentStatus represents the state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is an append-only record of a billing event for a subscription.
type Payment struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	SubscriptionID        uuid.UUID
	StripePaymentIntentID string
	AmountCents           int64
	Currency              string
	Status                PaymentStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
