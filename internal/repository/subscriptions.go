package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const subscriptionColumns = `id, user_id, plan_id, stripe_subscription_id, stripe_customer_id,
	status, current_period_start, current_period_end, created_at, updated_at, cancelled_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (domain.Subscription, error) {
	var (
		s           domain.Subscription
		stripeSub   sql.NullString
		stripeCust  sql.NullString
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.PlanID,
		&stripeSub,
		&stripeCust,
		&s.Status,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
		&cancelledAt,
	)
	if err != nil {
		return domain.Subscription{}, err
	}
	s.StripeSubscriptionID = domain.NullStringValue(stripeSub)
	s.StripeCustomerID = domain.NullStringValue(stripeCust)
	s.CancelledAt = domain.NullTimeValue(cancelledAt)
	return s, nil
}

// CreateSubscriptionParams contains the fields needed to insert a
// subscription row.
type CreateSubscriptionParams struct {
	UserID               uuid.UUID
	PlanID               uuid.UUID
	StripeSubscriptionID string
	StripeCustomerID     string
	Status               domain.SubscriptionStatus
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
}

// CreateSubscription inserts a new subscription row.
func (q *Queries) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (domain.Subscription, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions
			(id, user_id, plan_id, stripe_subscription_id, stripe_customer_id,
			 status, current_period_start, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+subscriptionColumns,
		uuid.New(),
		params.UserID,
		params.PlanID,
		domain.ToNullString(params.StripeSubscriptionID),
		domain.ToNullString(params.StripeCustomerID),
		params.Status,
		params.CurrentPeriodStart,
		params.CurrentPeriodEnd,
	)
	return scanSubscription(row)
}

// GetActiveSubscription returns the user's subscription row with status
// 'active', or sql.ErrNoRows when none exists.
//
// The lookup filters on status only; the billing-period window is not
// re-checked here. When several rows are simultaneously active, the one
// with the most recently started period wins.
func (q *Queries) GetActiveSubscription(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status = $2
		ORDER BY current_period_start DESC
		LIMIT 1`,
		userID, domain.SubscriptionStatusActive,
	)
	return scanSubscription(row)
}

// GetSubscriptionByStripeID fetches a subscription by its Stripe
// subscription identifier.
func (q *Queries) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (domain.Subscription, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE stripe_subscription_id = $1`,
		stripeSubscriptionID,
	)
	return scanSubscription(row)
}

// GetLatestSubscriptionByStripeCustomer returns the most recent subscription
// row for a Stripe customer. Used by webhook handlers to find the user.
func (q *Queries) GetLatestSubscriptionByStripeCustomer(ctx context.Context, stripeCustomerID string) (domain.Subscription, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE stripe_customer_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		stripeCustomerID,
	)
	return scanSubscription(row)
}

// ListSubscriptionsForUser returns the user's full subscription history,
// newest first.
func (q *Queries) ListSubscriptionsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// UpdateSubscriptionStatusParams contains the fields for a status update.
type UpdateSubscriptionStatusParams struct {
	ID                 uuid.UUID
	Status             domain.SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelledAt        *time.Time
}

// UpdateSubscriptionStatus transitions a subscription's status and billing
// window. Rows are never deleted; cancellation flows through here.
func (q *Queries) UpdateSubscriptionStatus(ctx context.Context, params UpdateSubscriptionStatusParams) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $2,
		    current_period_start = $3,
		    current_period_end = $4,
		    cancelled_at = $5,
		    updated_at = now()
		WHERE id = $1`,
		params.ID,
		params.Status,
		params.CurrentPeriodStart,
		params.CurrentPeriodEnd,
		domain.ToNullTime(params.CancelledAt),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CreatePaymentParams contains the fields needed to insert a payment row.
type CreatePaymentParams struct {
	UserID                uuid.UUID
	SubscriptionID        uuid.UUID
	StripePaymentIntentID string
	AmountCents           int64
	Currency              string
	Status                domain.PaymentStatus
}

// CreatePayment appends a payment history record.
func (q *Queries) CreatePayment(ctx context.Context, params CreatePaymentParams) (domain.Payment, error) {
	var (
		p      domain.Payment
		intent sql.NullString
	)
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO payment_history
			(id, user_id, subscription_id, stripe_payment_intent_id, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, subscription_id, stripe_payment_intent_id,
			amount_cents, currency, status, created_at, updated_at`,
		uuid.New(),
		params.UserID,
		params.SubscriptionID,
		domain.ToNullString(params.StripePaymentIntentID),
		params.AmountCents,
		params.Currency,
		params.Status,
	).Scan(&p.ID, &p.UserID, &p.SubscriptionID, &intent,
		&p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Payment{}, err
	}
	p.StripePaymentIntentID = domain.NullStringValue(intent)
	return p, nil
}

// ListPaymentsForUser returns a user's payment history, newest first.
func (q *Queries) ListPaymentsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, subscription_id, stripe_payment_intent_id,
			amount_cents, currency, status, created_at, updated_at
		FROM payment_history
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var (
			p      domain.Payment
			intent sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &intent,
			&p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.StripePaymentIntentID = domain.NullStringValue(intent)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
