// Package watcher tails the push channel across all scopes, keeps a
// reconciled local mirror, and logs SLA escalations for open entities
// so operations can hook alerting onto a single structured stream.
package watcher

import (
	"context"
	"encoding/json"
	"time"

	"ops-tracker/internal/common/logger"
	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/notify"
	"ops-tracker/internal/tracker/rank"
	"ops-tracker/internal/tracker/sla"
	"ops-tracker/internal/tracker/store"
	"ops-tracker/internal/tracker/view"
)

type scope struct {
	tenantID   string
	locationID string
}

type Watcher struct {
	store    store.Store
	ranker   *rank.Ranker
	notifier *notify.Notifier
	policy   sla.Policy
	lg       *logger.Logger
	now      func() time.Time

	views    map[scope]*view.View
	lastTier map[string]sla.Tier
}

func New(st store.Store, notifier *notify.Notifier, policy sla.Policy, lg *logger.Logger, now func() time.Time) *Watcher {
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		store:    st,
		ranker:   rank.New(st, policy, now),
		notifier: notifier,
		policy:   policy,
		lg:       lg,
		now:      now,
		views:    make(map[scope]*view.View),
		lastTier: make(map[string]sla.Tier),
	}
}

// Seed registers every scope that already has transition history, so
// the first Reconcile pulls it in. Without this a scope would only be
// mirrored once its first push after startup arrives.
func (w *Watcher) Seed(ctx context.Context) {
	scopes, err := w.store.Scopes(ctx)
	if err != nil {
		w.lg.Error("seed_failed", err, nil)
		return
	}
	for _, sc := range scopes {
		w.scopeView(scope{sc.TenantID, sc.LocationID})
	}
}

// ObservePush feeds one raw push message. Unparseable messages are
// logged and dropped; reconciliation covers whatever they carried.
func (w *Watcher) ObservePush(body []byte) {
	var t domain.Transition
	if err := json.Unmarshal(body, &t); err != nil {
		w.lg.Error("push_decode_failed", err, nil)
		return
	}
	w.scopeView(scope{t.TenantID, t.LocationID}).ApplyPush(t)
}

// Reconcile pulls the backlog for every scope the watcher has seen,
// using each view's checkpoint. Run on every poll tick and right after
// the push connection is (re)established.
func (w *Watcher) Reconcile(ctx context.Context) {
	for sc, v := range w.views {
		ts, err := w.notifier.Since(ctx, sc.tenantID, sc.locationID, v.Checkpoint())
		if err != nil {
			w.lg.Error("reconcile_failed", err, map[string]any{
				"tenant_id": sc.tenantID, "location_id": sc.locationID,
			})
			continue
		}
		v.ApplyBatch(ts)
	}
}

// Evaluate re-ranks every known scope and logs entities whose SLA tier
// rose since the last pass. Tier state for entities no longer ranked
// (terminal, hence closed) is dropped so lastTier tracks only the open
// set.
func (w *Watcher) Evaluate(ctx context.Context) {
	now := w.now().UTC()
	open := make(map[string]bool, len(w.lastTier))
	ranked := true
	for sc := range w.views {
		entities, err := w.ranker.Rank(ctx, sc.tenantID, sc.locationID, nil, nil)
		if err != nil {
			w.lg.Error("rank_failed", err, map[string]any{
				"tenant_id": sc.tenantID, "location_id": sc.locationID,
			})
			ranked = false
			continue
		}
		for _, e := range entities {
			wait := now.Sub(e.LastTransitionAt)
			tier := w.policy.Classify(e.Priority, wait)
			if tier > w.lastTier[e.ID] {
				w.lg.Info("sla_escalated", map[string]any{
					"entity_id":    e.ID,
					"kind":         string(e.Kind),
					"priority":     e.Priority.String(),
					"tier":         tier.String(),
					"wait_seconds": int64(wait.Seconds()),
					"tenant_id":    e.TenantID,
					"location_id":  e.LocationID,
				})
			}
			w.lastTier[e.ID] = tier
			open[e.ID] = true
		}
	}
	// Only prune when every scope ranked; a failed scope's entities
	// are still open, just unseen this pass.
	if ranked {
		for id := range w.lastTier {
			if !open[id] {
				delete(w.lastTier, id)
			}
		}
	}
}

func (w *Watcher) scopeView(sc scope) *view.View {
	v, ok := w.views[sc]
	if !ok {
		v = view.New()
		w.views[sc] = v
	}
	return v
}
