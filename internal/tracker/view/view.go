// Package view maintains a client-local mirror of tracked entities fed
// by both delivery channels: push messages applied as they arrive, and
// reconciliation batches pulled from the durable log. Application is
// idempotent, keyed by (entity id, version), so a client can consume
// both channels without double-applying or corrupting its state on an
// out-of-order push.
package view

import (
	"sync"

	"ops-tracker/internal/domain"
)

type Entity struct {
	State   domain.State
	Version int64
	ActorID string
}

type View struct {
	mu       sync.Mutex
	entities map[string]Entity
	// pending buffers pushes that arrived ahead of a gap, per entity
	// and version, until reconciliation fills the gap.
	pending    map[string]map[int64]domain.Transition
	checkpoint int64
}

func New() *View {
	return &View{
		entities: make(map[string]Entity),
		pending:  make(map[string]map[int64]domain.Transition),
	}
}

// ApplyPush feeds one push-channel transition. It returns true if the
// transition (or a buffered successor it unblocked) advanced the view.
// A transition whose version is not exactly the next one for its
// entity is buffered, never applied out of order.
func (v *View) ApplyPush(t domain.Transition) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	applied := v.apply(t)
	// A push may only move the checkpoint over a contiguous seq. A
	// missed span can be invisible here: its entities may never push
	// again, so an applied-but-noncontiguous seq says nothing about
	// whether earlier records were seen. Reconciliation batches own
	// every other checkpoint advance.
	if applied && t.Seq == v.checkpoint+1 {
		v.checkpoint = t.Seq
	}
	return applied
}

// ApplyBatch feeds an ordered reconciliation batch. Every record moves
// the checkpoint forward whether or not it was new to the view.
func (v *View) ApplyBatch(ts []domain.Transition) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range ts {
		v.apply(t)
		if t.Seq > v.checkpoint {
			v.checkpoint = t.Seq
		}
	}
}

// Checkpoint is the seq to hand to the reconciliation channel.
func (v *View) Checkpoint() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.checkpoint
}

func (v *View) Entity(id string) (Entity, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entities[id]
	return e, ok
}

// Len reports how many entities the view currently tracks.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entities)
}

func (v *View) apply(t domain.Transition) bool {
	cur, known := v.entities[t.EntityID]
	switch {
	case !known && t.Version == 1:
		// fresh entity
	case known && t.Version == cur.Version+1:
		// next in sequence
	case known && t.Version <= cur.Version:
		return false // duplicate, already applied
	default:
		v.buffer(t)
		return false
	}

	v.entities[t.EntityID] = Entity{State: t.ToState, Version: t.Version, ActorID: t.ActorID}
	v.drain(t.EntityID)
	return true
}

func (v *View) buffer(t domain.Transition) {
	m := v.pending[t.EntityID]
	if m == nil {
		m = make(map[int64]domain.Transition)
		v.pending[t.EntityID] = m
	}
	m[t.Version] = t
}

// drain applies buffered successors of entity id now that the gap
// before them is filled.
func (v *View) drain(id string) {
	m := v.pending[id]
	if m == nil {
		return
	}
	cur := v.entities[id]
	for {
		t, ok := m[cur.Version+1]
		if !ok {
			break
		}
		delete(m, t.Version)
		cur = Entity{State: t.ToState, Version: t.Version, ActorID: t.ActorID}
		v.entities[id] = cur
	}
	if len(m) == 0 {
		delete(v.pending, id)
	}
}
