package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func limitedPlan(n int) *SubscriptionPlan {
	return &SubscriptionPlan{Name: PlanStarter, MonthlyProcessingLimit: intPtr(n)}
}

func unlimitedPlan() *SubscriptionPlan {
	return &SubscriptionPlan{Name: PlanPro}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		op   OperationType
		want Bucket
	}{
		{OpBackgroundRemoval, BucketBackgroundRemoval},
		{OpImageUpscaling, BucketImageUpscaling},
		{OpTextWatermark, BucketImageTransform},
		{OpCropResize, BucketImageTransform},
		// Unrecognized types silently fall through to image-transform.
		{"super-resolution", BucketImageTransform},
		{"", BucketImageTransform},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, BucketFor(tt.op))
		})
	}
}

func TestDailyUsage_Limits_FreeTier(t *testing.T) {
	usage := DailyUsage{
		BackgroundRemovalCount: 3,
		ImageUpscalingCount:    1,
		TextWatermarkCount:     4,
		CropResizeCount:        2,
	}

	limits := usage.Limits(nil)

	assert.Equal(t, LimitEntry{Used: 3, Limit: 10}, limits[BucketBackgroundRemoval])
	assert.Equal(t, LimitEntry{Used: 1, Limit: 5}, limits[BucketImageUpscaling])
	// Watermark and crop-resize are summed into image-transform.
	assert.Equal(t, LimitEntry{Used: 6, Limit: 20}, limits[BucketImageTransform])
}

func TestDailyUsage_Limits_UnlimitedPlan(t *testing.T) {
	usage := DailyUsage{
		BackgroundRemovalCount: 999,
		ImageUpscalingCount:    500,
		TextWatermarkCount:     250,
		CropResizeCount:        250,
	}

	limits := usage.Limits(unlimitedPlan())

	// Every bucket reports -1 regardless of usage, but used still reflects
	// the actual counts.
	assert.Equal(t, LimitEntry{Used: 999, Limit: UnlimitedLimit}, limits[BucketBackgroundRemoval])
	assert.Equal(t, LimitEntry{Used: 500, Limit: UnlimitedLimit}, limits[BucketImageUpscaling])
	assert.Equal(t, LimitEntry{Used: 500, Limit: UnlimitedLimit}, limits[BucketImageTransform])
}

func TestDailyUsage_Limits_LimitedPlan(t *testing.T) {
	usage := DailyUsage{
		BackgroundRemovalCount: 90,
		ImageUpscalingCount:    80,
		TextWatermarkCount:     40,
		CropResizeCount:        30,
	}

	limits := usage.Limits(limitedPlan(100))

	// A finite plan limit applies to each bucket independently. Heavy usage
	// of one bucket never reduces another bucket's ceiling.
	assert.Equal(t, LimitEntry{Used: 90, Limit: 100}, limits[BucketBackgroundRemoval])
	assert.Equal(t, LimitEntry{Used: 80, Limit: 100}, limits[BucketImageUpscaling])
	assert.Equal(t, LimitEntry{Used: 70, Limit: 100}, limits[BucketImageTransform])
}

func TestDailyUsage_Limits_ShapeIsStable(t *testing.T) {
	plans := map[string]*SubscriptionPlan{
		"free":      nil,
		"unlimited": unlimitedPlan(),
		"limited":   limitedPlan(50),
	}

	for name, plan := range plans {
		t.Run(name, func(t *testing.T) {
			limits := DailyUsage{}.Limits(plan)
			assert.Len(t, limits, 3)
			assert.Contains(t, limits, BucketBackgroundRemoval)
			assert.Contains(t, limits, BucketImageUpscaling)
			assert.Contains(t, limits, BucketImageTransform)
		})
	}
}

func TestDailyUsage_CanProcess(t *testing.T) {
	tests := []struct {
		name  string
		usage DailyUsage
		plan  *SubscriptionPlan
		op    OperationType
		want  bool
	}{
		{
			name:  "free tier under limit",
			usage: DailyUsage{BackgroundRemovalCount: 9},
			op:    OpBackgroundRemoval,
			want:  true,
		},
		{
			name:  "free tier at limit denies",
			usage: DailyUsage{BackgroundRemovalCount: 10},
			op:    OpBackgroundRemoval,
			want:  false,
		},
		{
			name:  "buckets are independent",
			usage: DailyUsage{BackgroundRemovalCount: 10},
			op:    OpImageUpscaling,
			want:  true,
		},
		{
			name:  "free tier transform sums watermark and crop",
			usage: DailyUsage{TextWatermarkCount: 15, CropResizeCount: 5},
			op:    OpCropResize,
			want:  false,
		},
		{
			name:  "unlimited plan always admits",
			usage: DailyUsage{ImageUpscalingCount: 100000},
			plan:  unlimitedPlan(),
			op:    OpImageUpscaling,
			want:  true,
		},
		{
			name:  "limited plan under combined transform ceiling",
			usage: DailyUsage{TextWatermarkCount: 40, CropResizeCount: 30},
			plan:  limitedPlan(100),
			op:    OpCropResize,
			want:  true,
		},
		{
			name:  "limited plan at ceiling denies",
			usage: DailyUsage{TextWatermarkCount: 60, CropResizeCount: 40},
			plan:  limitedPlan(100),
			op:    OpTextWatermark,
			want:  false,
		},
		{
			name:  "unrecognized operation checks transform bucket",
			usage: DailyUsage{TextWatermarkCount: 20},
			op:    "super-resolution",
			want:  false,
		},
		{
			name:  "unrecognized operation admitted when transform has room",
			usage: DailyUsage{TextWatermarkCount: 19},
			op:    "super-resolution",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.usage.CanProcess(tt.plan, tt.op))
		})
	}
}

func TestDailyUsage_CanProcessDoesNotMutate(t *testing.T) {
	usage := DailyUsage{BackgroundRemovalCount: 5}
	before := usage

	usage.CanProcess(nil, OpBackgroundRemoval)
	usage.CanProcess(limitedPlan(100), OpTextWatermark)

	assert.Equal(t, before, usage)
}

func TestDailyUsage_Increment(t *testing.T) {
	tests := []struct {
		name string
		op   OperationType
		want DailyUsage
	}{
		{"background removal", OpBackgroundRemoval, DailyUsage{BackgroundRemovalCount: 1}},
		{"image upscaling", OpImageUpscaling, DailyUsage{ImageUpscalingCount: 1}},
		{"text watermark", OpTextWatermark, DailyUsage{TextWatermarkCount: 1}},
		{"crop resize", OpCropResize, DailyUsage{CropResizeCount: 1}},
		// Unknown operation types leave every counter untouched.
		{"unrecognized is a no-op", "super-resolution", DailyUsage{}},
		{"empty is a no-op", "", DailyUsage{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var usage DailyUsage
			usage.Increment(tt.op)
			assert.Equal(t, tt.want, usage)
		})
	}
}

func TestDailyUsage_IncrementThenLimits(t *testing.T) {
	// A crop-resize increment shows up in the combined transform bucket.
	usage := DailyUsage{TextWatermarkCount: 40, CropResizeCount: 30}
	usage.Increment(OpCropResize)

	limits := usage.Limits(limitedPlan(100))
	assert.Equal(t, 71, limits[BucketImageTransform].Used)
}
