package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-tracker/internal/common/logger"
	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/store"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "acme.rome-1", Topic("acme", "rome-1"))
}

func TestBrokerFanout(t *testing.T) {
	b := NewBroker()
	ch1, cancel1 := b.Subscribe("acme.rome-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("acme.rome-1")
	other, cancelOther := b.Subscribe("acme.milan-2")
	defer cancelOther()

	require.NoError(t, b.Publish(context.Background(), "acme.rome-1", []byte("x")))
	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 1)
	assert.Len(t, other, 0)

	cancel2()
	require.NoError(t, b.Publish(context.Background(), "acme.rome-1", []byte("y")))
	assert.Len(t, ch1, 2)
	_, open := <-ch2
	assert.False(t, open, "cancelled subscriber channel is closed")
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("a.b")
	defer cancel()

	// Push does not block a slow consumer; overflow is simply lost,
	// which the reconciliation channel is there to repair.
	for i := 0; i < 200; i++ {
		require.NoError(t, b.Publish(context.Background(), "a.b", []byte("m")))
	}
	assert.Equal(t, 64, len(ch))
}

func TestNotifierPublishesTransitionJSON(t *testing.T) {
	st := store.NewMemory()
	b := NewBroker()
	n := New(b, st, logger.New("test"))

	ch, cancel := b.Subscribe("acme.rome-1")
	defer cancel()

	tr := domain.Transition{
		Seq: 7, EntityID: "e1", TenantID: "acme", LocationID: "rome-1",
		Kind: domain.KindServiceRequest, FromState: domain.StatePending,
		ToState: domain.StateAcknowledged, Version: 2, ActorID: "staff-a",
		OccurredAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	n.TransitionAccepted(context.Background(), tr)

	select {
	case body := <-ch:
		var got domain.Transition
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, tr, got)
	default:
		t.Fatal("expected a push message")
	}
}

func TestNotifierSinceDelegatesToStore(t *testing.T) {
	st := store.NewMemory()
	n := New(nil, st, logger.New("test"))
	ctx := context.Background()

	now := time.Now().UTC()
	e := domain.TrackedEntity{
		ID: "e1", Kind: domain.KindServiceRequest, TenantID: "acme", LocationID: "rome-1",
		Priority: domain.PriorityNormal, State: domain.StatePending, Version: 1,
		CreatedAt: now, LastTransitionAt: now,
	}
	tr := domain.Transition{EntityID: "e1", TenantID: "acme", LocationID: "rome-1", Kind: e.Kind, ToState: e.State, Version: 1, OccurredAt: now}
	require.NoError(t, st.Create(ctx, e, &tr))

	got, err := n.Since(ctx, "acme", "rome-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tr.Seq, got[0].Seq)

	got, err = n.Since(ctx, "acme", "rome-1", tr.Seq)
	require.NoError(t, err)
	assert.Empty(t, got)
}
