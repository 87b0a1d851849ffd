// Package store is the event store port of the tracker: durable
// entity records plus the append-only transition log used by the
// reconciliation channel.
package store

import (
	"context"

	"ops-tracker/internal/domain"
)

// Filter selects entities for Query. TenantID and LocationID are
// mandatory; empty Kinds or States means "all".
type Filter struct {
	TenantID   string
	LocationID string
	Kinds      []domain.Kind
	States     []domain.State
}

// Scope is one (tenant, location) pair that has transition history.
type Scope struct {
	TenantID   string
	LocationID string
}

// Store is implemented by the Postgres adapter and the in-memory
// adapter used in tests.
//
// Create and CommitTransition are atomic: the entity write and the
// transition append land together or not at all, and CommitTransition
// is a compare-and-set keyed on the expected version, so two
// concurrent commits with the same expected version can never both
// succeed. Both fill in the assigned Seq on the transition record.
type Store interface {
	Get(ctx context.Context, id string) (domain.TrackedEntity, error)
	Create(ctx context.Context, e domain.TrackedEntity, t *domain.Transition) error
	CommitTransition(ctx context.Context, e domain.TrackedEntity, expectedVersion int64, t *domain.Transition) error
	Query(ctx context.Context, f Filter) ([]domain.TrackedEntity, error)
	Since(ctx context.Context, tenantID, locationID string, afterSeq int64) ([]domain.Transition, error)
	Scopes(ctx context.Context) ([]Scope, error)
}

func matchKind(kinds []domain.Kind, k domain.Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func matchState(states []domain.State, s domain.State) bool {
	if len(states) == 0 {
		return true
	}
	for _, ss := range states {
		if ss == s {
			return true
		}
	}
	return false
}
