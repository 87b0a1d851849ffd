package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange and queue names for the tracker's push channel. Transitions
// are published to a topic exchange with the routing key
// "<tenant_id>.<location_id>", so a dashboard binds its queue to the
// one scope it serves and the escalation watcher binds with "#".
const (
	TransitionsExchange = "ops.transitions"
	WatcherQueue        = "ops.watcher.q"
)

type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(cfg Config) (*Client, error) {
	vhost := cfg.VHost
	if vhost == "" {
		vhost = "/"
	}
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, vhost)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// DeclareAll declares the push-channel topology. Safe to call from
// every service at startup.
func (c *Client) DeclareAll(bindingKey string) error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("nil channel")
	}
	if err := c.ch.ExchangeDeclare(TransitionsExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(WatcherQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if bindingKey == "" {
		bindingKey = "#"
	}
	return c.ch.QueueBind(WatcherQueue, bindingKey, TransitionsExchange, false, nil)
}

func (c *Client) PublishPersistent(ctx context.Context, exchange, key string, body []byte) error {
	return c.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         body,
	})
}

func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, consumer, false, false, false, false, nil)
}
