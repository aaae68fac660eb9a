package store

import (
	"context"
	"sync"

	"github.com/jensholdgaard/draft-auction/internal/event"
)

// Broker fans notifications out to subscribers. It implements Feed and is
// shared by the store drivers.
type Broker struct {
	mu   sync.Mutex
	subs map[event.Topic]map[chan event.Notification]struct{}
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[event.Topic]map[chan event.Notification]struct{})}
}

// Subscribe registers a subscriber for topic. The channel is closed when ctx is done.
func (b *Broker) Subscribe(ctx context.Context, topic event.Topic) (<-chan event.Notification, error) {
	ch := make(chan event.Notification, 1)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan event.Notification]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[topic], ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Publish delivers n to every subscriber of n.Topic without blocking.
// A subscriber with an undelivered notification already pending keeps that one.
func (b *Broker) Publish(n event.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[n.Topic] {
		select {
		case ch <- n:
		default:
		}
	}
}

// PublishAll notifies every topic, used after a feed reconnects and
// notifications may have been missed.
func (b *Broker) PublishAll() {
	for _, t := range event.Topics() {
		b.Publish(event.Notification{Topic: t, Op: event.OpUpdate})
	}
}
