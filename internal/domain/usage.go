// Package domain contains core business types and interfaces.
//
// This file implements the daily usage ledger and the quota accounting
// rules: limit-table construction, the admission check, and the counter
// increment mapping. These are pure functions of ledger + entitlement
// state; persistence lives in the repository layer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OperationType identifies a processing operation family as carried on
// inbound requests.
type OperationType string

const (
	OpBackgroundRemoval OperationType = "background-removal"
	OpImageUpscaling    OperationType = "image-upscaling"
	OpTextWatermark     OperationType = "text-watermark"
	OpCropResize        OperationType = "crop-resize"
)

// Bucket is one of the three logical quota categories that usage and
// limits are tracked against. Watermark and crop-resize share the
// image-transform bucket.
type Bucket string

const (
	BucketBackgroundRemoval Bucket = "background-removal"
	BucketImageUpscaling    Bucket = "image-upscaling"
	BucketImageTransform    Bucket = "image-transform"
)

// UnlimitedLimit is the sentinel limit value meaning "no ceiling".
const UnlimitedLimit = -1

// Free-tier daily ceilings, applied when a user has no active subscription.
const (
	FreeBackgroundRemovalLimit = 10
	FreeImageUpscalingLimit    = 5
	FreeImageTransformLimit    = 20
)

// BucketFor maps an operation type to its quota bucket.
//
// Anything that is not background removal or upscaling falls through to the
// image-transform bucket, including unrecognized operation strings. That
// silent catch-all is deliberate (inherited behavior): an unknown operation
// is admitted against the transform ceiling rather than rejected.
func BucketFor(op OperationType) Bucket {
	switch op {
	case OpBackgroundRemoval:
		return BucketBackgroundRemoval
	case OpImageUpscaling:
		return BucketImageUpscaling
	default:
		return BucketImageTransform
	}
}

// LimitEntry is the used/limit pair reported for one bucket.
// Limit is UnlimitedLimit (-1) when the bucket has no ceiling.
type LimitEntry struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// LimitTable maps each quota bucket to its current usage and ceiling.
// The key set and shape are identical across free, unlimited, and limited
// tiers so callers can treat it uniformly.
type LimitTable map[Bucket]LimitEntry

// DailyUsage is the per-user per-calendar-day ledger row. The (UserID, Date)
// pair is unique; rows are created lazily on first access for a day and
// never deleted. Counters only ever increase within a day.
type DailyUsage struct {
	ID     int64
	UserID uuid.UUID
	Date   time.Time // calendar date, time component zero

	BackgroundRemovalCount int
	ImageUpscalingCount    int
	TextWatermarkCount     int
	CropResizeCount        int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// transformUsed returns the combined count for the image-transform bucket.
func (u DailyUsage) transformUsed() int {
	return u.TextWatermarkCount + u.CropResizeCount
}

// Limits builds the limit table for this ledger row under the given plan.
//
// plan == nil means the user has no active subscription and the fixed
// free-tier ceilings apply. A plan with a nil MonthlyProcessingLimit grants
// unlimited usage (-1 ceilings). A plan with a finite limit N assigns N to
// every bucket independently: it is a flat per-bucket ceiling, not a pooled
// budget shared across buckets.
func (u DailyUsage) Limits(plan *SubscriptionPlan) LimitTable {
	if plan == nil {
		return LimitTable{
			BucketBackgroundRemoval: {Used: u.BackgroundRemovalCount, Limit: FreeBackgroundRemovalLimit},
			BucketImageUpscaling:    {Used: u.ImageUpscalingCount, Limit: FreeImageUpscalingLimit},
			BucketImageTransform:    {Used: u.transformUsed(), Limit: FreeImageTransformLimit},
		}
	}

	limit := UnlimitedLimit
	if plan.MonthlyProcessingLimit != nil {
		limit = *plan.MonthlyProcessingLimit
	}

	return LimitTable{
		BucketBackgroundRemoval: {Used: u.BackgroundRemovalCount, Limit: limit},
		BucketImageUpscaling:    {Used: u.ImageUpscalingCount, Limit: limit},
		BucketImageTransform:    {Used: u.transformUsed(), Limit: limit},
	}
}

// CanProcess reports whether one more operation of the given type is
// admissible under the plan's ceilings. Admission is granted when the
// mapped bucket is unlimited or strictly under its ceiling; hitting the
// ceiling exactly denies. This is a pure read: the ledger is not mutated.
func (u DailyUsage) CanProcess(plan *SubscriptionPlan, op OperationType) bool {
	entry := u.Limits(plan)[BucketFor(op)]
	return entry.Limit == UnlimitedLimit || entry.Used < entry.Limit
}

// Increment bumps the raw counter matching the operation type by one.
//
// Only the four exact operation strings map to a counter; any other value
// leaves every counter untouched. Callers persist the row either way, so an
// unrecognized type is a durable no-op rather than an error (inherited
// permissive behavior).
func (u *DailyUsage) Increment(op OperationType) {
	switch op {
	case OpBackgroundRemoval:
		u.BackgroundRemovalCount++
	case OpImageUpscaling:
		u.ImageUpscalingCount++
	case OpTextWatermark:
		u.TextWatermarkCount++
	case OpCropResize:
		u.CropResizeCount++
	}
}
