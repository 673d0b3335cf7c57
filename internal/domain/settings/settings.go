package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Workflow holds the tenant-configurable knobs of the exchange workflow.
type Workflow struct {
	// MaxHourVariancePercent is the tolerated gap between the two parties'
	// reported hours before an exchange is disputed.
	MaxHourVariancePercent float64 `json:"max_hour_variance_percent"`

	// AllowHourAdjustment, when false, pins confirmed hours to the proposed
	// hours regardless of what either party reports.
	AllowHourAdjustment bool `json:"allow_hour_adjustment"`

	// ConfirmationDeadlineHours is surfaced to the external scheduler that
	// escalates stale ready_for_confirmation exchanges. The core itself never
	// auto-expires.
	ConfirmationDeadlineHours int `json:"confirmation_deadline_hours"`

	MinProposedHours decimal.Decimal `json:"min_proposed_hours"`
	MaxProposedHours decimal.Decimal `json:"max_proposed_hours"`
}

// DefaultWorkflow returns the fallback knobs used when a tenant has no
// overrides stored.
func DefaultWorkflow() Workflow {
	return Workflow{
		MaxHourVariancePercent:    25,
		AllowHourAdjustment:       true,
		ConfirmationDeadlineHours: 168,
		MinProposedHours:          decimal.RequireFromString("0.25"),
		MaxProposedHours:          decimal.RequireFromString("24"),
	}
}

// ConfirmWindow is the confirmation deadline as a duration.
func (w Workflow) ConfirmWindow() time.Duration {
	return time.Duration(w.ConfirmationDeadlineHours) * time.Hour
}

// ClampProposedHours brings the requested hours into the tenant's allowed band.
func (w Workflow) ClampProposedHours(hours decimal.Decimal) decimal.Decimal {
	if hours.LessThan(w.MinProposedHours) {
		return w.MinProposedHours
	}
	if hours.GreaterThan(w.MaxProposedHours) {
		return w.MaxProposedHours
	}
	return hours
}
