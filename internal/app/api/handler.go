package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/engine"
	"ops-tracker/internal/tracker/notify"
	"ops-tracker/internal/tracker/processor"
	"ops-tracker/internal/tracker/rank"
	"ops-tracker/internal/tracker/sla"
)

type Handler struct {
	engine    *engine.Engine
	processor *processor.Processor
	ranker    *rank.Ranker
	notifier  *notify.Notifier
	policy    sla.Policy
	now       func() time.Time
}

func NewHandler(eng *engine.Engine, proc *processor.Processor, rk *rank.Ranker, nt *notify.Notifier, policy sla.Policy, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{engine: eng, processor: proc, ranker: rk, notifier: nt, policy: policy, now: now}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problem(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	priority := domain.PriorityNormal
	if req.Priority != "" {
		p, err := domain.ParsePriority(req.Priority)
		if err != nil {
			writeError(c, err)
			return
		}
		priority = p
	}
	ent, err := h.engine.Create(c.Request.Context(), engine.CreateParams{
		Kind:       domain.Kind(req.Kind),
		TenantID:   req.TenantID,
		LocationID: req.LocationID,
		Priority:   priority,
		Payload:    req.Payload,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ent)
}

func (h *Handler) Get(c *gin.Context) {
	ent, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ent)
}

func (h *Handler) Act(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problem(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := h.processor.Act(c.Request.Context(), c.Param("id"), req.Action, req.ActorID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := ActionResponse{Outcome: string(res.Outcome), Entity: res.Entity}
	if res.Outcome == processor.OutcomeAlreadyHandled {
		resp.HandledBy = res.HandledBy()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Queue(c *gin.Context) {
	tenantID, locationID, ok := scope(c)
	if !ok {
		return
	}
	var kinds []domain.Kind
	for _, k := range splitParam(c.Query("kinds")) {
		kinds = append(kinds, domain.Kind(k))
	}
	var states []domain.State
	for _, s := range splitParam(c.Query("include_states")) {
		states = append(states, domain.State(s))
	}
	entities, err := h.ranker.Rank(c.Request.Context(), tenantID, locationID, kinds, states)
	if err != nil {
		writeError(c, err)
		return
	}
	now := h.now().UTC()
	items := make([]QueueItem, 0, len(entities))
	for _, e := range entities {
		wait := now.Sub(e.LastTransitionAt)
		items = append(items, QueueItem{
			TrackedEntity: e,
			SLATier:       h.policy.Classify(e.Priority, wait).String(),
			WaitSeconds:   int64(wait.Seconds()),
		})
	}
	c.JSON(http.StatusOK, QueueResponse{Items: items})
}

func (h *Handler) Changes(c *gin.Context) {
	tenantID, locationID, ok := scope(c)
	if !ok {
		return
	}
	checkpoint, err := strconv.ParseInt(c.DefaultQuery("checkpoint", "0"), 10, 64)
	if err != nil {
		problem(c, http.StatusBadRequest, "bad_request", "checkpoint must be an integer")
		return
	}
	transitions, err := h.notifier.Since(c.Request.Context(), tenantID, locationID, checkpoint)
	if err != nil {
		writeError(c, err)
		return
	}
	next := checkpoint
	for _, t := range transitions {
		if t.Seq > next {
			next = t.Seq
		}
	}
	c.JSON(http.StatusOK, ChangesResponse{Checkpoint: next, Transitions: transitions})
}

func scope(c *gin.Context) (tenantID, locationID string, ok bool) {
	tenantID, locationID = c.Query("tenant_id"), c.Query("location_id")
	if tenantID == "" || locationID == "" {
		problem(c, http.StatusBadRequest, "bad_request", "tenant_id and location_id are required")
		return "", "", false
	}
	return tenantID, locationID, true
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// writeError maps the tracker error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		problem(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidPriority), errors.Is(err, domain.ErrUnknownKind):
		problem(c, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		problem(c, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrTerminal):
		problem(c, http.StatusConflict, "terminal", err.Error())
	case errors.Is(err, domain.ErrContention):
		c.Header("Retry-After", "1")
		problem(c, http.StatusServiceUnavailable, "contention", err.Error())
	default:
		problem(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

// problem writes the shared error shape: machine-readable type plus
// human detail.
func problem(c *gin.Context, code int, typ, detail string) {
	c.AbortWithStatusJSON(code, gin.H{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}
