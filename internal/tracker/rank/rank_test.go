package rank

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/sla"
	"ops-tracker/internal/tracker/store"
)

var rankNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func entity(id string, p domain.Priority, s domain.State, waiting time.Duration) domain.TrackedEntity {
	return domain.TrackedEntity{
		ID:               id,
		Kind:             domain.KindServiceRequest,
		TenantID:         "t1",
		LocationID:       "l1",
		Priority:         p,
		State:            s,
		Version:          1,
		CreatedAt:        rankNow.Add(-waiting),
		LastTransitionAt: rankNow.Add(-waiting),
	}
}

func TestOrderByPriority(t *testing.T) {
	entities := []domain.TrackedEntity{
		entity("a", domain.PriorityLow, domain.StatePending, time.Minute),
		entity("b", domain.PriorityUrgent, domain.StatePending, time.Second),
		entity("c", domain.PriorityNormal, domain.StatePending, time.Minute),
		entity("d", domain.PriorityHigh, domain.StatePending, time.Minute),
	}
	Order(entities, sla.DefaultPolicy(), rankNow)
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids(entities))
}

func TestOrderByTierWithinPriority(t *testing.T) {
	// Both normal; one has crossed the warning threshold.
	entities := []domain.TrackedEntity{
		entity("fresh", domain.PriorityNormal, domain.StatePending, 10*time.Second),
		entity("stale", domain.PriorityNormal, domain.StatePending, 200*time.Second),
	}
	Order(entities, sla.DefaultPolicy(), rankNow)
	assert.Equal(t, []string{"stale", "fresh"}, ids(entities))
}

func TestOrderStarvationFreedom(t *testing.T) {
	// Equal priority and equal tier: the longer-waiting entity always
	// surfaces first regardless of insertion order.
	older := entity("older", domain.PriorityUrgent, domain.StatePending, 30*time.Second)
	newer := entity("newer", domain.PriorityUrgent, domain.StatePending, 10*time.Second)

	forward := []domain.TrackedEntity{newer, older}
	Order(forward, sla.DefaultPolicy(), rankNow)
	assert.Equal(t, []string{"older", "newer"}, ids(forward))

	backward := []domain.TrackedEntity{older, newer}
	Order(backward, sla.DefaultPolicy(), rankNow)
	assert.Equal(t, []string{"older", "newer"}, ids(backward))
}

func TestRankExcludesTerminalByDefault(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	for _, e := range []domain.TrackedEntity{
		entity("open", domain.PriorityNormal, domain.StatePending, time.Minute),
		entity("done", domain.PriorityUrgent, domain.StateCompleted, time.Minute),
		entity("gone", domain.PriorityUrgent, domain.StateCancelled, time.Minute),
	} {
		tr := domain.Transition{EntityID: e.ID, TenantID: e.TenantID, LocationID: e.LocationID, ToState: e.State, Version: 1}
		require.NoError(t, st.Create(ctx, e, &tr))
	}

	r := New(st, sla.DefaultPolicy(), func() time.Time { return rankNow })

	got, err := r.Rank(ctx, "t1", "l1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, ids(got))

	// History view: terminal states on explicit request.
	got, err = r.Rank(ctx, "t1", "l1", nil, []domain.State{domain.StateCompleted, domain.StateCancelled})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRankScopedByKind(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	sr := entity("sr", domain.PriorityNormal, domain.StatePending, time.Minute)
	fo := entity("fo", domain.PriorityNormal, domain.StatePending, time.Minute)
	fo.Kind = domain.KindFulfillmentOrder
	for _, e := range []domain.TrackedEntity{sr, fo} {
		tr := domain.Transition{EntityID: e.ID, TenantID: e.TenantID, LocationID: e.LocationID, ToState: e.State, Version: 1}
		require.NoError(t, st.Create(ctx, e, &tr))
	}

	r := New(st, sla.DefaultPolicy(), func() time.Time { return rankNow })
	got, err := r.Rank(ctx, "t1", "l1", []domain.Kind{domain.KindFulfillmentOrder}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fo"}, ids(got))
}

func ids(entities []domain.TrackedEntity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}
