package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitySet(t *testing.T) {
	var set CapabilitySet
	set = set.With(CapBackgroundRemoval, CapImageUpscaling)

	assert.True(t, set.Has(CapBackgroundRemoval))
	assert.True(t, set.Has(CapImageUpscaling))
	assert.False(t, set.Has(CapTextWatermark))
	assert.False(t, set.Has(CapAPIAccess))

	assert.Equal(t, []string{"background-removal", "image-upscaling"}, set.Names())
}

func TestCapabilitySet_NamesOrder(t *testing.T) {
	set := CapabilitySet(0).With(CapPrioritySupport, CapBackgroundRemoval, CapBatchProcessing)
	assert.Equal(t, []string{"background-removal", "batch-processing", "priority-support"}, set.Names())
}

func TestPlanName_Valid(t *testing.T) {
	for _, n := range []PlanName{PlanFree, PlanStarter, PlanPro, PlanEnterprise} {
		assert.True(t, n.Valid(), string(n))
	}
	assert.False(t, PlanName("platinum").Valid())
}

func TestSubscriptionPlan_Title(t *testing.T) {
	withDisplay := &SubscriptionPlan{Name: PlanPro, DisplayName: "Pro (Annual)"}
	assert.Equal(t, "Pro (Annual)", withDisplay.Title())

	fallback := &SubscriptionPlan{Name: PlanEnterprise}
	assert.Equal(t, "Enterprise", fallback.Title())
}

func TestSubscriptionPlan_Allows(t *testing.T) {
	plan := &SubscriptionPlan{
		Capabilities: CapabilitySet(0).With(CapBackgroundRemoval, CapCropResize),
	}

	assert.True(t, plan.Allows(OpBackgroundRemoval))
	assert.False(t, plan.Allows(OpImageUpscaling))
	assert.False(t, plan.Allows(OpTextWatermark))
	assert.True(t, plan.Allows(OpCropResize))
	// Unknown ops are treated as transform requests.
	assert.True(t, plan.Allows("super-resolution"))
}

func TestSubscriptionPlan_Allows_NilPlanIsFreeTier(t *testing.T) {
	var plan *SubscriptionPlan

	assert.True(t, plan.Allows(OpBackgroundRemoval))
	assert.True(t, plan.Allows(OpImageUpscaling))
	assert.True(t, plan.Allows(OpTextWatermark))
	assert.True(t, plan.Allows(OpCropResize))
}

func TestFreeTierCapabilities_ExcludesPaidFeatures(t *testing.T) {
	assert.False(t, FreeTierCapabilities.Has(CapBatchProcessing))
	assert.False(t, FreeTierCapabilities.Has(CapAPIAccess))
	assert.False(t, FreeTierCapabilities.Has(CapWhiteLabel))
	assert.False(t, FreeTierCapabilities.Has(CapPrioritySupport))
}
