package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ops-tracker/internal/common/config"
	"ops-tracker/internal/common/db"
	"ops-tracker/internal/common/logger"
	"ops-tracker/internal/common/mq"
	"ops-tracker/internal/tracker/notify"
	"ops-tracker/internal/tracker/store"
)

// Run consumes the watcher queue until ctx is cancelled, reconciling
// and evaluating SLA tiers every poll interval.
func Run(ctx context.Context, cfg config.App) error {
	lg := logger.New("watcher")

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting postgres: %w", err)
	}
	defer conn.Close()
	st := store.NewPostgres(conn.Pool)

	client, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		return fmt.Errorf("connecting rabbitmq: %w", err)
	}
	defer client.Close()
	if err := client.DeclareAll("#"); err != nil {
		return fmt.Errorf("declaring topology: %w", err)
	}

	policy, err := cfg.SLAPolicy()
	if err != nil {
		return err
	}
	notifier := notify.New(nil, st, lg)
	w := New(st, notifier, policy, lg, nil)

	deliveries, err := client.Consume(mq.WatcherQueue, "watcher-"+uuid.NewString(), 16)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", mq.WatcherQueue, err)
	}
	w.Seed(ctx)
	w.Reconcile(ctx)

	interval := cfg.Tracker.PollInterval()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	lg.Info("service_started", map[string]any{"poll_interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("push channel closed")
			}
			w.ObservePush(d.Body)
			_ = d.Ack(false)
		case <-tick.C:
			w.Reconcile(ctx)
			w.Evaluate(ctx)
		}
	}
}
