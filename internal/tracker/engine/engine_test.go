package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-tracker/internal/common/logger"
	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/notify"
	"ops-tracker/internal/tracker/store"
)

var engNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.Memory, *notify.Broker) {
	t.Helper()
	st := store.NewMemory()
	broker := notify.NewBroker()
	notifier := notify.New(broker, st, logger.New("test"))
	var n int
	eng := New(st, notifier,
		WithClock(func() time.Time { return engNow }),
		WithIDFunc(func() string { n++; return fmt.Sprintf("ent-%d", n) }),
	)
	return eng, st, broker
}

func TestCreate(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	ent, err := eng.Create(ctx, CreateParams{
		Kind:       domain.KindServiceRequest,
		TenantID:   "t1",
		LocationID: "l1",
		Priority:   domain.PriorityUrgent,
		Payload:    []byte(`{"table":"12","type":"call_waiter"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, ent.State)
	assert.EqualValues(t, 1, ent.Version)
	assert.Equal(t, engNow, ent.CreatedAt)
	assert.Equal(t, engNow, ent.LastTransitionAt)
	assert.Empty(t, ent.ActorID)

	// Creation lands in the transition log for reconciliation.
	ts, err := st.Since(ctx, "t1", "l1", 0)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.True(t, ts[0].Created())
	assert.Equal(t, ent.ID, ts[0].EntityID)
}

func TestCreateRejectsBadInputs(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Create(ctx, CreateParams{Kind: "spa_booking", TenantID: "t1", LocationID: "l1", Priority: domain.PriorityNormal})
	require.ErrorIs(t, err, domain.ErrUnknownKind)

	_, err = eng.Create(ctx, CreateParams{Kind: domain.KindServiceRequest, TenantID: "t1", LocationID: "l1", Priority: domain.Priority(9)})
	require.ErrorIs(t, err, domain.ErrInvalidPriority)
}

func TestTransitionMonotonicVersioning(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	ent, err := eng.Create(ctx, CreateParams{Kind: domain.KindFulfillmentOrder, TenantID: "t1", LocationID: "l1", Priority: domain.PriorityNormal})
	require.NoError(t, err)

	path := []domain.State{domain.StateConfirmed, domain.StatePreparing, domain.StateReady, domain.StateDelivered}
	for i, s := range path {
		ent, err = eng.Transition(ctx, ent.ID, ent.Version, s, "chef-1")
		require.NoError(t, err)
		assert.EqualValues(t, i+2, ent.Version)
		assert.Equal(t, s, ent.State)
		assert.Equal(t, "chef-1", ent.ActorID)
	}

	// Emitted versions are exactly 1..5, no gaps, no repeats.
	ts, err := st.Since(ctx, "t1", "l1", 0)
	require.NoError(t, err)
	require.Len(t, ts, 5)
	for i, tr := range ts {
		assert.EqualValues(t, i+1, tr.Version)
		assert.EqualValues(t, i+1, tr.Seq)
	}
}

func TestTransitionIllegalLeavesStateUntouched(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	ent, err := eng.Create(ctx, CreateParams{Kind: domain.KindServiceRequest, TenantID: "t1", LocationID: "l1", Priority: domain.PriorityNormal})
	require.NoError(t, err)

	// pending -> completed is not an edge for service requests.
	_, err = eng.Transition(ctx, ent.ID, ent.Version, domain.StateCompleted, "staff-1")
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	got, err := eng.Get(ctx, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, ent, got)
}

func TestTransitionTerminalFreeze(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	ent, err := eng.Create(ctx, CreateParams{Kind: domain.KindServiceRequest, TenantID: "t1", LocationID: "l1", Priority: domain.PriorityNormal})
	require.NoError(t, err)
	ent, err = eng.Transition(ctx, ent.ID, ent.Version, domain.StateCancelled, "staff-1")
	require.NoError(t, err)

	_, err = eng.Transition(ctx, ent.ID, ent.Version, domain.StateAcknowledged, "staff-2")
	require.ErrorIs(t, err, domain.ErrTerminal)

	got, err := eng.Get(ctx, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, ent, got)
}

func TestTransitionVersionConflict(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	ent, err := eng.Create(ctx, CreateParams{Kind: domain.KindServiceRequest, TenantID: "t1", LocationID: "l1", Priority: domain.PriorityNormal})
	require.NoError(t, err)

	_, err = eng.Transition(ctx, ent.ID, ent.Version+5, domain.StateAcknowledged, "staff-1")
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = eng.Transition(ctx, "no-such-entity", 1, domain.StateAcknowledged, "staff-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionPublishesToScopeTopic(t *testing.T) {
	eng, _, broker := newTestEngine(t)
	ctx := context.Background()

	ch, cancel := broker.Subscribe(notify.Topic("t1", "l1"))
	defer cancel()

	ent, err := eng.Create(ctx, CreateParams{Kind: domain.KindServiceRequest, TenantID: "t1", LocationID: "l1", Priority: domain.PriorityHigh})
	require.NoError(t, err)
	_, err = eng.Transition(ctx, ent.ID, ent.Version, domain.StateAcknowledged, "staff-1")
	require.NoError(t, err)

	assert.Len(t, ch, 2)
}
