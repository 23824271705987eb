// Package domain contains core business types and interfaces.
//
// This file defines the subscription plan catalog: the named pricing tiers
// and the capability set and processing ceilings each tier grants. Plan rows
// are provisioned administratively (migrations / admin tooling) and are
// read-only at runtime.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlanName identifies a subscription tier. The set is fixed.
type PlanName string

const (
	PlanFree       PlanName = "free"
	PlanStarter    PlanName = "starter"
	PlanPro        PlanName = "pro"
	PlanEnterprise PlanName = "enterprise"
)

// Valid reports whether the plan name is one of the known tiers.
func (n PlanName) Valid() bool {
	switch n {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Capability is a single feature a plan may grant. Capabilities are stored
// as a bitmask so adding a feature does not require a schema change.
type Capability uint32

const (
	CapBackgroundRemoval Capability = 1 << iota
	CapImageUpscaling
	CapTextWatermark
	CapCropResize
	CapBatchProcessing
	CapAPIAccess
	CapWhiteLabel
	CapPrioritySupport
)

// capabilityNames maps each capability bit to its wire/display name.
var capabilityNames = map[Capability]string{
	CapBackgroundRemoval: "background-removal",
	CapImageUpscaling:    "image-upscaling",
	CapTextWatermark:     "text-watermark",
	CapCropResize:        "crop-resize",
	CapBatchProcessing:   "batch-processing",
	CapAPIAccess:         "api-access",
	CapWhiteLabel:        "white-label",
	CapPrioritySupport:   "priority-support",
}

// CapabilitySet is a bitmask of capabilities granted by a plan.
type CapabilitySet uint32

// Has reports whether the set contains the given capability.
func (s CapabilitySet) Has(c Capability) bool {
	return uint32(s)&uint32(c) != 0
}

// With returns a copy of the set with the given capabilities added.
func (s CapabilitySet) With(caps ...Capability) CapabilitySet {
	out := s
	for _, c := range caps {
		out |= CapabilitySet(c)
	}
	return out
}

// Names returns the wire names of all capabilities in the set, in bit order.
func (s CapabilitySet) Names() []string {
	var names []string
	for c := CapBackgroundRemoval; c <= CapPrioritySupport; c <<= 1 {
		if s.Has(c) {
			names = append(names, capabilityNames[c])
		}
	}
	return names
}

// SubscriptionPlan is reference data describing a pricing tier.
//
// Invariants: Name is unique; PriceCents is non-negative; a nil
// MonthlyProcessingLimit means the tier is unlimited.
type SubscriptionPlan struct {
	ID            uuid.UUID
	Name          PlanName
	DisplayName   string
	Description   string
	PriceCents    int64
	BillingPeriod string // "monthly" or "yearly"
	StripePriceID string

	// MonthlyProcessingLimit is the flat per-bucket ceiling granted by the
	// tier. nil means no ceiling.
	MonthlyProcessingLimit *int

	MaxFileSizeMB int
	MaxResolution string

	Capabilities CapabilitySet

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var titleCaser = cases.Title(language.English)

// Title returns the plan's display name, falling back to a title-cased
// version of the tier name when no display name was provisioned.
func (p *SubscriptionPlan) Title() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return titleCaser.String(strings.ReplaceAll(string(p.Name), "-", " "))
}

// FreeTierCapabilities is what users without a subscription operate
// under: the four core operations at free-tier ceilings, nothing more.
var FreeTierCapabilities = CapabilitySet(0).With(
	CapBackgroundRemoval,
	CapImageUpscaling,
	CapTextWatermark,
	CapCropResize,
)

// Allows reports whether the plan grants the capability needed for the
// given operation type. A nil receiver means no subscription and uses
// the free-tier capability set. Unknown operation types map to the
// transform capabilities, mirroring the admission check's catch-all
// bucket.
func (p *SubscriptionPlan) Allows(op OperationType) bool {
	caps := FreeTierCapabilities
	if p != nil {
		caps = p.Capabilities
	}
	switch op {
	case OpBackgroundRemoval:
		return caps.Has(CapBackgroundRemoval)
	case OpImageUpscaling:
		return caps.Has(CapImageUpscaling)
	case OpTextWatermark:
		return caps.Has(CapTextWatermark)
	case OpCropResize:
		return caps.Has(CapCropResize)
	default:
		return caps.Has(CapTextWatermark) || caps.Has(CapCropResize)
	}
}
