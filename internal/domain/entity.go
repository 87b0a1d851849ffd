package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	KindServiceRequest   Kind = "service_request"
	KindFulfillmentOrder Kind = "fulfillment_order"
)

type State string

const (
	StatePending      State = "pending"
	StateAcknowledged State = "acknowledged"
	StateInProgress   State = "in_progress"
	StateCompleted    State = "completed"
	StateConfirmed    State = "confirmed"
	StatePreparing    State = "preparing"
	StateReady        State = "ready"
	StateDelivered    State = "delivered"
	StateCancelled    State = "cancelled"
)

// Priority is an ordered class: low < normal < high < urgent.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityNormal: "normal",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TrackedEntity is the unit of work flowing through the tracker: one
// customer service request or one fulfillment order.
type TrackedEntity struct {
	ID               string          `json:"id"`
	Kind             Kind            `json:"kind"`
	TenantID         string          `json:"tenant_id"`
	LocationID       string          `json:"location_id"`
	Priority         Priority        `json:"priority"`
	State            State           `json:"state"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	LastTransitionAt time.Time       `json:"last_transition_at"`
	ActorID          string          `json:"actor_id,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// transitionTables holds the legal edges per kind. Creation enters the
// first state listed in initialStates.
var transitionTables = map[Kind]map[State][]State{
	KindServiceRequest: {
		StatePending:      {StateAcknowledged, StateCancelled},
		StateAcknowledged: {StateInProgress, StateCancelled},
		StateInProgress:   {StateCompleted, StateCancelled},
	},
	KindFulfillmentOrder: {
		StatePending:   {StateConfirmed, StateCancelled},
		StateConfirmed: {StatePreparing, StateCancelled},
		StatePreparing: {StateReady, StateCancelled},
		StateReady:     {StateDelivered},
	},
}

var initialStates = map[Kind]State{
	KindServiceRequest:   StatePending,
	KindFulfillmentOrder: StatePending,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateDelivered: true,
	StateCancelled: true,
}

func (k Kind) Valid() bool {
	_, ok := transitionTables[k]
	return ok
}

// InitialState returns the state a freshly created entity of kind k starts in.
func InitialState(k Kind) (State, error) {
	s, ok := initialStates[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return s, nil
}

// IsTerminal reports whether s freezes the entity: no transition leaves
// a terminal state, for any kind.
func IsTerminal(s State) bool {
	return terminalStates[s]
}

// CanTransition reports whether (from, to) is an edge in kind k's table.
func CanTransition(k Kind, from, to State) bool {
	for _, next := range transitionTables[k][from] {
		if next == to {
			return true
		}
	}
	return false
}

// actionTargets maps operator actions to the state they drive an entity
// toward, per kind. The action names are the ones the staff and customer
// surfaces send.
var actionTargets = map[Kind]map[string]State{
	KindServiceRequest: {
		"acknowledge": StateAcknowledged,
		"start":       StateInProgress,
		"complete":    StateCompleted,
		"cancel":      StateCancelled,
	},
	KindFulfillmentOrder: {
		"confirm": StateConfirmed,
		"prepare": StatePreparing,
		"ready":   StateReady,
		"deliver": StateDelivered,
		"cancel":  StateCancelled,
	},
}

// TargetState resolves an action name to its target state for kind k.
func TargetState(k Kind, action string) (State, bool) {
	s, ok := actionTargets[k][action]
	return s, ok
}
