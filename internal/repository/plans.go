package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const planColumns = `id, name, display_name, description, price_cents, billing_period,
	stripe_price_id, monthly_processing_limit, max_file_size_mb, max_resolution,
	capabilities, is_active, created_at, updated_at`

func scanPlan(row interface{ Scan(...interface{}) error }) (domain.SubscriptionPlan, error) {
	var (
		p            domain.SubscriptionPlan
		stripePrice  sql.NullString
		monthlyLimit sql.NullInt64
		capabilities int64
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.DisplayName,
		&p.Description,
		&p.PriceCents,
		&p.BillingPeriod,
		&stripePrice,
		&monthlyLimit,
		&p.MaxFileSizeMB,
		&p.MaxResolution,
		&capabilities,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.SubscriptionPlan{}, err
	}
	p.StripePriceID = domain.NullStringValue(stripePrice)
	if monthlyLimit.Valid {
		limit := int(monthlyLimit.Int64)
		p.MonthlyProcessingLimit = &limit
	}
	p.Capabilities = domain.CapabilitySet(capabilities)
	return p, nil
}

// GetPlanByID fetches a plan by primary key.
func (q *Queries) GetPlanByID(ctx context.Context, id uuid.UUID) (domain.SubscriptionPlan, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id)
	return scanPlan(row)
}

// GetPlanByName fetches a plan by its unique tier name.
func (q *Queries) GetPlanByName(ctx context.Context, name domain.PlanName) (domain.SubscriptionPlan, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM subscription_plans WHERE name = $1`, name)
	return scanPlan(row)
}

// GetPlanByStripePriceID fetches the plan mapped to a Stripe price.
func (q *Queries) GetPlanByStripePriceID(ctx context.Context, priceID string) (domain.SubscriptionPlan, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM subscription_plans WHERE stripe_price_id = $1`, priceID)
	return scanPlan(row)
}

// ListActivePlans returns all purchasable plans ordered by price.
func (q *Queries) ListActivePlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM subscription_plans WHERE is_active = true ORDER BY price_cents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
