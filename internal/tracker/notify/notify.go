// Package notify delivers accepted transitions to observers over two
// complementary channels: a best-effort push topic per (tenant,
// location), and a durable reconciliation query that is the source of
// truth when pushes are missed.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"ops-tracker/internal/common/logger"
	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/store"
)

// Publisher is the push transport port. Topic is the routing scope,
// never interpreted by the notifier itself.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// Topic builds the routing key for one (tenant, location) scope.
func Topic(tenantID, locationID string) string {
	return fmt.Sprintf("%s.%s", tenantID, locationID)
}

type Notifier struct {
	pub Publisher
	st  store.Store
	lg  *logger.Logger
}

func New(pub Publisher, st store.Store, lg *logger.Logger) *Notifier {
	return &Notifier{pub: pub, st: st, lg: lg}
}

// TransitionAccepted pushes one committed transition. Push delivery is
// a latency optimization only, so a publish failure is logged and
// swallowed: the reconciliation channel will deliver the record.
func (n *Notifier) TransitionAccepted(ctx context.Context, t domain.Transition) {
	if n.pub == nil {
		return
	}
	body, err := json.Marshal(t)
	if err != nil {
		n.lg.Error("transition_encode_failed", err, map[string]any{"entity_id": t.EntityID})
		return
	}
	if err := n.pub.Publish(ctx, Topic(t.TenantID, t.LocationID), body); err != nil {
		n.lg.Error("transition_publish_failed", err, map[string]any{
			"entity_id": t.EntityID, "version": t.Version,
		})
	}
}

// Since returns every transition in scope with Seq greater than the
// client's checkpoint, in order. This is the reconciliation channel.
func (n *Notifier) Since(ctx context.Context, tenantID, locationID string, checkpoint int64) ([]domain.Transition, error) {
	return n.st.Since(ctx, tenantID, locationID, checkpoint)
}
