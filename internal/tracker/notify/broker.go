package notify

import (
	"context"
	"sync"
)

// Broker is an in-process Publisher for tests and single-node runs.
// Subscribers get a buffered channel per topic; a subscriber that
// falls behind loses messages rather than blocking the publisher,
// which mirrors the at-most-once push contract.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]chan []byte)}
}

func (b *Broker) Publish(ctx context.Context, topic string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- body:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of raw transition messages for topic and
// a cancel func that detaches and closes it.
func (b *Broker) Subscribe(topic string) (<-chan []byte, func()) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}
