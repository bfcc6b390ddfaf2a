package domain

import "time"

// DeadlinePolicy derives a complaint's resolution deadline from its
// category window and priority.
type DeadlinePolicy struct {
	Multipliers map[ComplaintPriority]float64
}

// DefaultDeadlineMultipliers shrink the window as urgency grows.
var DefaultDeadlineMultipliers = map[ComplaintPriority]float64{
	PriorityLow:    1.5,
	PriorityMedium: 1.0,
	PriorityHigh:   0.75,
	PriorityUrgent: 0.5,
}

// NewDeadlinePolicy builds a policy, filling missing priorities from the defaults.
func NewDeadlinePolicy(overrides map[ComplaintPriority]float64) DeadlinePolicy {
	multipliers := make(map[ComplaintPriority]float64, len(DefaultDeadlineMultipliers))
	for p, m := range DefaultDeadlineMultipliers {
		multipliers[p] = m
	}
	for p, m := range overrides {
		if p.Valid() && m > 0 {
			multipliers[p] = m
		}
	}
	return DeadlinePolicy{Multipliers: multipliers}
}

// Deadline returns submittedAt plus the adjusted resolution window.
func (p DeadlinePolicy) Deadline(submittedAt time.Time, resolutionHours int, priority ComplaintPriority) time.Time {
	multiplier, ok := p.Multipliers[priority]
	if !ok || multiplier <= 0 {
		multiplier = 1
	}
	window := time.Duration(float64(resolutionHours) * multiplier * float64(time.Hour))
	return submittedAt.Add(window)
}

// RiskTier classifies how close an open complaint is to its deadline.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// Remaining-fraction thresholds, checked from most to least severe.
const (
	criticalFraction = 0.10
	highFraction     = 0.25
	mediumFraction   = 0.50
)

// DeadlineRisk is the deadline assessment of one complaint at one instant.
type DeadlineRisk struct {
	HoursUntilDeadline float64
	RemainingFraction  float64
	Tier               RiskTier
	Overdue            bool
	OverdueBy          time.Duration
}

// AssessRisk measures the remaining share of the complaint's resolution window.
func AssessRisk(c *Complaint, now time.Time) DeadlineRisk {
	remaining := c.Deadline.Sub(now)
	risk := DeadlineRisk{HoursUntilDeadline: remaining.Hours()}
	if remaining <= 0 {
		risk.Overdue = true
		risk.OverdueBy = -remaining
		risk.Tier = RiskCritical
		return risk
	}
	total := c.Deadline.Sub(c.CreatedAt)
	if total <= 0 {
		risk.Tier = RiskCritical
		return risk
	}
	risk.RemainingFraction = float64(remaining) / float64(total)
	switch {
	case risk.RemainingFraction <= criticalFraction:
		risk.Tier = RiskCritical
	case risk.RemainingFraction <= highFraction:
		risk.Tier = RiskHigh
	case risk.RemainingFraction <= mediumFraction:
		risk.Tier = RiskMedium
	default:
		risk.Tier = RiskLow
	}
	return risk
}
