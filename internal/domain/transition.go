package domain

import "time"

// Transition is the immutable record of one accepted state change. The
// store assigns Seq, a per-store logical clock that totally orders the
// transition log; clients use the highest Seq they have seen as the
// reconciliation checkpoint.
type Transition struct {
	Seq        int64     `json:"seq"`
	EntityID   string    `json:"entity_id"`
	TenantID   string    `json:"tenant_id"`
	LocationID string    `json:"location_id"`
	Kind       Kind      `json:"kind"`
	FromState  State     `json:"from_state,omitempty"`
	ToState    State     `json:"to_state"`
	Version    int64     `json:"version"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Created reports whether t records entity creation rather than a state
// change. Creation transitions have no from-state and version 1.
func (t Transition) Created() bool {
	return t.FromState == "" && t.Version == 1
}
