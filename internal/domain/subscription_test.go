package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_IsActive(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    SubscriptionStatus
		periodEnd time.Time
		want      bool
	}{
		{"active inside period", SubscriptionStatusActive, now.Add(24 * time.Hour), true},
		{"active past period end", SubscriptionStatusActive, now.Add(-time.Hour), false},
		{"cancelled inside period", SubscriptionStatusCancelled, now.Add(24 * time.Hour), false},
		{"past_due inside period", SubscriptionStatusPastDue, now.Add(24 * time.Hour), false},
		{"unpaid inside period", SubscriptionStatusUnpaid, now.Add(24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &Subscription{Status: tt.status, CurrentPeriodEnd: tt.periodEnd}
			assert.Equal(t, tt.want, sub.IsActive(now))
		})
	}
}

func TestSubscription_DaysRemaining(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	active := &Subscription{
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: now.AddDate(0, 0, 10),
	}
	assert.Equal(t, 10, active.DaysRemaining(now))

	expired := &Subscription{
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: now.AddDate(0, 0, -1),
	}
	assert.Equal(t, 0, expired.DaysRemaining(now))
}
