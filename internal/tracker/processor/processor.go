// Package processor is the gateway operators act through. It resolves
// races between operators acting on the same entity: exactly one
// attempt wins, the rest get a definitive AlreadyHandled result
// instead of an error.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/engine"
)

type Outcome string

const (
	// OutcomeApplied: this call effected the transition.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyHandled: another actor already completed the same
	// logical action; the entity reflects their work. Not a failure.
	OutcomeAlreadyHandled Outcome = "already_handled"
)

type Result struct {
	Outcome Outcome
	Entity  domain.TrackedEntity
}

// HandledBy returns the actor that won, for "already handled by X"
// surfaces.
func (r Result) HandledBy() string { return r.Entity.ActorID }

type Processor struct {
	engine      *engine.Engine
	retryBound  int
	retryDelay  time.Duration
	subDeadline time.Duration
}

type Option func(*Processor)

// WithRetryBound caps how many times a version conflict is retried
// before giving up with Contention.
func WithRetryBound(n int) Option {
	return func(p *Processor) { p.retryBound = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) { p.retryDelay = d }
}

// WithSubDeadline bounds the whole retry loop independently of the
// caller's deadline, so a generous caller deadline cannot stretch the
// loop indefinitely.
func WithSubDeadline(d time.Duration) Option {
	return func(p *Processor) { p.subDeadline = d }
}

func New(eng *engine.Engine, opts ...Option) *Processor {
	p := &Processor{
		engine:      eng,
		retryBound:  3,
		retryDelay:  25 * time.Millisecond,
		subDeadline: 2 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Act applies action to the entity under optimistic concurrency.
//
// Each attempt reads the entity, maps the action to its target state
// for the entity's kind, and issues a version-conditioned transition.
// A version conflict means another operator got there first: the
// entity is re-read and, if the action is still meaningful from the
// new state, the attempt repeats up to the retry bound. If the race
// made the action moot the call resolves to AlreadyHandled.
func (p *Processor) Act(ctx context.Context, entityID, action, actorID string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.subDeadline)
	defer cancel()

	conflicted := false
	for attempt := 0; attempt <= p.retryBound; attempt++ {
		ent, err := p.engine.Get(ctx, entityID)
		if err != nil {
			return Result{}, err
		}
		target, ok := domain.TargetState(ent.Kind, action)
		if !ok {
			return Result{}, fmt.Errorf("%w: unknown action %q for kind %s",
				domain.ErrIllegalTransition, action, ent.Kind)
		}
		if ent.State == target {
			return Result{Outcome: OutcomeAlreadyHandled, Entity: ent}, nil
		}
		if domain.IsTerminal(ent.State) || !domain.CanTransition(ent.Kind, ent.State, target) {
			if conflicted {
				// The entity moved under us into a state where this
				// action no longer applies. Repeating the action is
				// safe and informative, not an error.
				return Result{Outcome: OutcomeAlreadyHandled, Entity: ent}, nil
			}
			if domain.IsTerminal(ent.State) {
				return Result{}, fmt.Errorf("%w: entity %s is %s, cannot %s",
					domain.ErrTerminal, entityID, ent.State, action)
			}
			return Result{}, fmt.Errorf("%w: action %q not valid for entity %s in state %s",
				domain.ErrIllegalTransition, action, entityID, ent.State)
		}

		next, err := p.engine.Transition(ctx, entityID, ent.Version, target, actorID)
		if err == nil {
			return Result{Outcome: OutcomeApplied, Entity: next}, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return Result{}, err
		}
		conflicted = true

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("%w: %v", domain.ErrContention, ctx.Err())
		case <-time.After(p.retryDelay):
		}
	}
	return Result{}, fmt.Errorf("%w: entity %s action %q", domain.ErrContention, entityID, action)
}
