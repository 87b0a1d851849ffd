package notify

import (
	"context"

	"ops-tracker/internal/common/mq"
)

// AMQPPublisher pushes transitions through the shared topic exchange.
type AMQPPublisher struct {
	client *mq.Client
}

func NewAMQPPublisher(client *mq.Client) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

func (p *AMQPPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	return p.client.PublishPersistent(ctx, mq.TransitionsExchange, topic, body)
}
