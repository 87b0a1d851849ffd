// Package engine is the state machine core. Every entity write in the
// system goes through Create or Transition here; no other component
// constructs states or transition records.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ops-tracker/internal/common/id"
	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/notify"
	"ops-tracker/internal/tracker/store"
)

type Engine struct {
	store    store.Store
	notifier *notify.Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(*Engine)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDFunc injects the entity id generator, for tests.
func WithIDFunc(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

func New(st store.Store, notifier *notify.Notifier, opts ...Option) *Engine {
	e := &Engine{store: st, notifier: notifier, now: time.Now, newID: id.New}
	for _, o := range opts {
		o(e)
	}
	return e
}

type CreateParams struct {
	Kind       domain.Kind
	TenantID   string
	LocationID string
	Priority   domain.Priority
	Payload    json.RawMessage
}

// Create constructs an entity in its kind's initial state at version 1
// and records the creation transition atomically with it.
func (e *Engine) Create(ctx context.Context, p CreateParams) (domain.TrackedEntity, error) {
	initial, err := domain.InitialState(p.Kind)
	if err != nil {
		return domain.TrackedEntity{}, err
	}
	if !p.Priority.Valid() {
		return domain.TrackedEntity{}, fmt.Errorf("%w: %d", domain.ErrInvalidPriority, int(p.Priority))
	}

	now := e.now().UTC()
	ent := domain.TrackedEntity{
		ID:               e.newID(),
		Kind:             p.Kind,
		TenantID:         p.TenantID,
		LocationID:       p.LocationID,
		Priority:         p.Priority,
		State:            initial,
		Version:          1,
		CreatedAt:        now,
		LastTransitionAt: now,
		Payload:          p.Payload,
	}
	tr := domain.Transition{
		EntityID:   ent.ID,
		TenantID:   ent.TenantID,
		LocationID: ent.LocationID,
		Kind:       ent.Kind,
		ToState:    initial,
		Version:    1,
		OccurredAt: now,
	}
	if err := e.store.Create(ctx, ent, &tr); err != nil {
		return domain.TrackedEntity{}, err
	}
	e.notifier.TransitionAccepted(ctx, tr)
	return ent, nil
}

// Transition moves one entity to toState under optimistic versioning.
// The store commit is a compare-and-set on expectedVersion, so of two
// racing calls at the same version exactly one succeeds; the other
// gets ErrVersionConflict.
func (e *Engine) Transition(ctx context.Context, entityID string, expectedVersion int64, toState domain.State, actorID string) (domain.TrackedEntity, error) {
	cur, err := e.store.Get(ctx, entityID)
	if err != nil {
		return domain.TrackedEntity{}, err
	}
	if cur.Version != expectedVersion {
		return domain.TrackedEntity{}, fmt.Errorf("%w: entity %s at version %d, expected %d",
			domain.ErrVersionConflict, entityID, cur.Version, expectedVersion)
	}
	if domain.IsTerminal(cur.State) {
		return domain.TrackedEntity{}, fmt.Errorf("%w: entity %s is %s",
			domain.ErrTerminal, entityID, cur.State)
	}
	if !domain.CanTransition(cur.Kind, cur.State, toState) {
		return domain.TrackedEntity{}, fmt.Errorf("%w: %s cannot go %s -> %s",
			domain.ErrIllegalTransition, cur.Kind, cur.State, toState)
	}

	now := e.now().UTC()
	next := cur
	next.State = toState
	next.Version = cur.Version + 1
	next.LastTransitionAt = now
	next.ActorID = actorID

	tr := domain.Transition{
		EntityID:   next.ID,
		TenantID:   next.TenantID,
		LocationID: next.LocationID,
		Kind:       next.Kind,
		FromState:  cur.State,
		ToState:    toState,
		Version:    next.Version,
		ActorID:    actorID,
		OccurredAt: now,
	}
	if err := e.store.CommitTransition(ctx, next, expectedVersion, &tr); err != nil {
		return domain.TrackedEntity{}, err
	}
	e.notifier.TransitionAccepted(ctx, tr)
	return next, nil
}

// Get is the read-only single-entity lookup exposed to collaborators.
func (e *Engine) Get(ctx context.Context, entityID string) (domain.TrackedEntity, error) {
	return e.store.Get(ctx, entityID)
}
