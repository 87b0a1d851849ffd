// Package rank orders open entities for operator dispatch.
package rank

import (
	"context"
	"sort"
	"time"

	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/sla"
	"ops-tracker/internal/tracker/store"
)

// openStates are what Rank returns when the caller does not ask for
// specific states: everything non-terminal.
var openStates = []domain.State{
	domain.StatePending,
	domain.StateAcknowledged,
	domain.StateInProgress,
	domain.StateConfirmed,
	domain.StatePreparing,
	domain.StateReady,
}

type Ranker struct {
	store  store.Store
	policy sla.Policy
	now    func() time.Time
}

func New(st store.Store, policy sla.Policy, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{store: st, policy: policy, now: now}
}

// Rank returns the entities in scope ordered most-urgent-first. It is
// recomputed from the store on every call and performs no writes, so
// it is safe to call concurrently and arbitrarily often.
func (r *Ranker) Rank(ctx context.Context, tenantID, locationID string, kinds []domain.Kind, includeStates []domain.State) ([]domain.TrackedEntity, error) {
	states := includeStates
	if len(states) == 0 {
		states = openStates
	}
	entities, err := r.store.Query(ctx, store.Filter{
		TenantID:   tenantID,
		LocationID: locationID,
		Kinds:      kinds,
		States:     states,
	})
	if err != nil {
		return nil, err
	}
	Order(entities, r.policy, r.now().UTC())
	return entities, nil
}

// Order sorts entities in place by the dispatch key: priority class
// first, SLA tier within equal priority, then last_transition_at
// ascending so that of two equally urgent entities the one waiting
// longest surfaces first and none can be starved.
func Order(entities []domain.TrackedEntity, policy sla.Policy, now time.Time) {
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		ta := policy.Classify(a.Priority, now.Sub(a.LastTransitionAt))
		tb := policy.Classify(b.Priority, now.Sub(b.LastTransitionAt))
		if ta != tb {
			return ta > tb
		}
		return a.LastTransitionAt.Before(b.LastTransitionAt)
	})
}
