package api

import (
	"encoding/json"

	"ops-tracker/internal/domain"
)

type CreateEntityRequest struct {
	Kind       string          `json:"kind" binding:"required"`
	TenantID   string          `json:"tenant_id" binding:"required"`
	LocationID string          `json:"location_id" binding:"required"`
	Priority   string          `json:"priority"`
	Payload    json.RawMessage `json:"payload"`
}

type ActionRequest struct {
	Action  string `json:"action" binding:"required"`
	ActorID string `json:"actor_id" binding:"required"`
}

type ActionResponse struct {
	Outcome   string               `json:"outcome"`
	HandledBy string               `json:"handled_by,omitempty"`
	Entity    domain.TrackedEntity `json:"entity"`
}

// QueueItem decorates a ranked entity with its SLA tier and elapsed
// wait so dashboards can drive escalation cues (row color, audible
// alert) without re-deriving the policy.
type QueueItem struct {
	domain.TrackedEntity
	SLATier     string `json:"sla_tier"`
	WaitSeconds int64  `json:"wait_seconds"`
}

type QueueResponse struct {
	Items []QueueItem `json:"items"`
}

type ChangesResponse struct {
	Checkpoint  int64               `json:"checkpoint"`
	Transitions []domain.Transition `json:"transitions"`
}
