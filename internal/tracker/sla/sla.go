// Package sla derives a wait-time urgency tier from elapsed time and
// priority. Classification is pure: no storage, no clock.
package sla

import (
	"time"

	"ops-tracker/internal/domain"
)

type Tier int

const (
	TierOK Tier = iota
	TierWarning
	TierCritical
)

func (t Tier) String() string {
	switch t {
	case TierWarning:
		return "warning"
	case TierCritical:
		return "critical"
	default:
		return "ok"
	}
}

// Thresholds holds the elapsed-wait levels at which an entity of one
// priority class escalates.
type Thresholds struct {
	Warning  time.Duration
	Critical time.Duration
}

// Policy maps each priority class to its thresholds. Tunable per
// tenant; see DefaultPolicy for the stock calibration.
type Policy map[domain.Priority]Thresholds

// DefaultPolicy: urgent warns at 60s and goes critical at 180s, normal
// at 180s/300s; high sits midway between them and low extends the same
// step past normal.
func DefaultPolicy() Policy {
	return Policy{
		PriorityLow:    {Warning: 240 * time.Second, Critical: 360 * time.Second},
		PriorityNormal: {Warning: 180 * time.Second, Critical: 300 * time.Second},
		PriorityHigh:   {Warning: 120 * time.Second, Critical: 240 * time.Second},
		PriorityUrgent: {Warning: 60 * time.Second, Critical: 180 * time.Second},
	}
}

// Classify is total: an unknown priority falls back to the normal
// thresholds rather than failing.
func (p Policy) Classify(priority domain.Priority, elapsed time.Duration) Tier {
	th, ok := p[priority]
	if !ok {
		th, ok = p[PriorityNormal]
		if !ok {
			th = DefaultPolicy()[PriorityNormal]
		}
	}
	switch {
	case elapsed >= th.Critical:
		return TierCritical
	case elapsed >= th.Warning:
		return TierWarning
	default:
		return TierOK
	}
}

// Aliases so callers configuring a Policy literal do not need a
// domain import just for the keys.
const (
	PriorityLow    = domain.PriorityLow
	PriorityNormal = domain.PriorityNormal
	PriorityHigh   = domain.PriorityHigh
	PriorityUrgent = domain.PriorityUrgent
)
