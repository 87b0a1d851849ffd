package api

import (
	"context"
	"fmt"
	"strconv"

	"ops-tracker/internal/common/config"
	"ops-tracker/internal/common/db"
	"ops-tracker/internal/common/httpx"
	"ops-tracker/internal/common/logger"
	"ops-tracker/internal/common/mq"
	"ops-tracker/internal/tracker/engine"
	"ops-tracker/internal/tracker/notify"
	"ops-tracker/internal/tracker/processor"
	"ops-tracker/internal/tracker/rank"
	"ops-tracker/internal/tracker/store"
)

// Run wires the tracker core behind the HTTP surface and serves until
// ctx is cancelled.
func Run(ctx context.Context, cfg config.App) error {
	lg := logger.New("api")

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting postgres: %w", err)
	}
	defer conn.Close()

	st := store.NewPostgres(conn.Pool)
	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	client, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		return fmt.Errorf("connecting rabbitmq: %w", err)
	}
	defer client.Close()
	if err := client.DeclareAll(""); err != nil {
		return fmt.Errorf("declaring topology: %w", err)
	}

	policy, err := cfg.SLAPolicy()
	if err != nil {
		return err
	}

	notifier := notify.New(notify.NewAMQPPublisher(client), st, lg)
	eng := engine.New(st, notifier)
	proc := processor.New(eng,
		processor.WithRetryBound(cfg.Tracker.RetryBound),
		processor.WithRetryDelay(cfg.Tracker.RetryDelay()),
	)
	ranker := rank.New(st, policy, nil)

	h := NewHandler(eng, proc, ranker, notifier, policy, nil)
	srv := httpx.New(":"+strconv.Itoa(cfg.HTTP.Port), Router(h, lg))

	lg.Info("service_started", map[string]any{"port": cfg.HTTP.Port})
	return srv.Run(ctx)
}
