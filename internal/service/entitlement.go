package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/sami8890/Sam-pixels/internal/domain"
	"github.com/sami8890/Sam-pixels/internal/repository"
)

// Plan rows are reference data that changes on deploys, not at runtime, so
// a short TTL cache in front of the catalog removes one query per request.
const (
	planCacheTTL     = 5 * time.Minute
	planCacheCleanup = 10 * time.Minute
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService resolves which plan, if any, a user's requests are
// entitled to.
type EntitlementService interface {
	// ActiveSubscription returns the user's active subscription with its
	// plan populated, or (nil, nil) when the user has no active subscription
	// and free-tier limits apply.
	//
	// The lookup filters on subscription status only; it does not re-check
	// the billing-period window. An active subscription referencing a
	// missing plan row is a data-integrity fault and returns EINTERNAL
	// rather than silently downgrading the user to free limits.
	ActiveSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// PlanByID returns a plan from the catalog, served from cache when warm.
	PlanByID(ctx context.Context, planID uuid.UUID) (*domain.SubscriptionPlan, error)

	// ListPlans returns all purchasable plans ordered by price.
	ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	queries *repository.Queries
	logger  *slog.Logger
	plans   *cache.Cache
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(queries *repository.Queries, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		queries: queries,
		logger:  logger,
		plans:   cache.New(planCacheTTL, planCacheCleanup),
	}
}

// ActiveSubscription resolves the user's current entitlement.
func (s *entitlementService) ActiveSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	const op = "EntitlementService.ActiveSubscription"

	sub, err := s.queries.GetActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No active subscription: the caller applies free-tier limits.
			return nil, nil
		}
		return nil, domain.Internal(err, op, "Failed to look up subscription")
	}

	plan, err := s.PlanByID(ctx, sub.PlanID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			// The subscription points at a plan that does not exist. Failing
			// loudly beats quietly treating a paying user as free tier.
			s.logger.Error("active subscription references missing plan",
				"user_id", userID, "subscription_id", sub.ID, "plan_id", sub.PlanID)
			return nil, domain.Internal(err, op, "Subscription plan is missing")
		}
		return nil, err
	}

	sub.Plan = plan
	return &sub, nil
}

// PlanByID returns a plan from the catalog, caching hits.
func (s *entitlementService) PlanByID(ctx context.Context, planID uuid.UUID) (*domain.SubscriptionPlan, error) {
	const op = "EntitlementService.PlanByID"

	key := planID.String()
	if cached, ok := s.plans.Get(key); ok {
		plan := cached.(domain.SubscriptionPlan)
		return &plan, nil
	}

	plan, err := s.queries.GetPlanByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "plan", key)
		}
		return nil, domain.Internal(err, op, "Failed to look up plan")
	}

	s.plans.Set(key, plan, cache.DefaultExpiration)
	return &plan, nil
}

// ListPlans returns all purchasable plans ordered by price.
func (s *entitlementService) ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	const op = "EntitlementService.ListPlans"

	plans, err := s.queries.ListActivePlans(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list plans")
	}
	return plans, nil
}
