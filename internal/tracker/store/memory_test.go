package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-tracker/internal/domain"
)

func seed(t *testing.T, m *Memory, id, tenant, location string, state domain.State) domain.TrackedEntity {
	t.Helper()
	now := time.Now().UTC()
	e := domain.TrackedEntity{
		ID: id, Kind: domain.KindServiceRequest, TenantID: tenant, LocationID: location,
		Priority: domain.PriorityNormal, State: state, Version: 1,
		CreatedAt: now, LastTransitionAt: now,
	}
	tr := domain.Transition{EntityID: id, TenantID: tenant, LocationID: location, Kind: e.Kind, ToState: state, Version: 1, OccurredAt: now}
	require.NoError(t, m.Create(context.Background(), e, &tr))
	return e
}

func TestMemoryGet(t *testing.T) {
	m := NewMemory()
	e := seed(t, m, "a", "t1", "l1", domain.StatePending)

	got, err := m.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = m.Get(context.Background(), "zzz")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryCASRejectsStaleVersion(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	e := seed(t, m, "a", "t1", "l1", domain.StatePending)

	next := e
	next.State = domain.StateAcknowledged
	next.Version = 2
	tr := domain.Transition{EntityID: "a", TenantID: "t1", LocationID: "l1", FromState: e.State, ToState: next.State, Version: 2}
	require.NoError(t, m.CommitTransition(ctx, next, 1, &tr))

	// Same expected version again: the second writer must lose.
	again := tr
	require.ErrorIs(t, m.CommitTransition(ctx, next, 1, &again), domain.ErrVersionConflict)

	// And the log kept exactly two records.
	ts, err := m.Since(ctx, "t1", "l1", 0)
	require.NoError(t, err)
	assert.Len(t, ts, 2)
}

func TestMemorySinceScopedAndOrdered(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seed(t, m, "a", "t1", "l1", domain.StatePending)
	seed(t, m, "b", "t2", "l1", domain.StatePending)
	seed(t, m, "c", "t1", "l1", domain.StatePending)

	ts, err := m.Since(ctx, "t1", "l1", 0)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "a", ts[0].EntityID)
	assert.Equal(t, "c", ts[1].EntityID)
	assert.Less(t, ts[0].Seq, ts[1].Seq)

	// Checkpoint past the first record.
	ts, err = m.Since(ctx, "t1", "l1", ts[0].Seq)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "c", ts[0].EntityID)
}

func TestMemoryScopesDeduplicated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seed(t, m, "a", "t1", "l1", domain.StatePending)
	seed(t, m, "b", "t2", "l1", domain.StatePending)
	seed(t, m, "c", "t1", "l1", domain.StatePending)

	got, err := m.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Scope{{"t1", "l1"}, {"t2", "l1"}}, got)
}

func TestMemoryQueryFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seed(t, m, "a", "t1", "l1", domain.StatePending)
	seed(t, m, "b", "t1", "l1", domain.StateCompleted)
	seed(t, m, "c", "t1", "l2", domain.StatePending)

	got, err := m.Query(ctx, Filter{TenantID: "t1", LocationID: "l1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = m.Query(ctx, Filter{TenantID: "t1", LocationID: "l1", States: []domain.State{domain.StatePending}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got, err = m.Query(ctx, Filter{TenantID: "t1", LocationID: "l1", Kinds: []domain.Kind{domain.KindFulfillmentOrder}})
	require.NoError(t, err)
	assert.Empty(t, got)
}
