// Package notify fans published events out to in-process subscribers.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/catalog-server/internal/id"
)

// TopicBookAdded is the topic carrying newly added books.
const TopicBookAdded = "BOOK_ADDED"

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 100

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("notify: broker closed")

// Publisher delivers an event to the current subscribers of a topic.
// Publish never blocks on subscribers.
type Publisher[T any] interface {
	Publish(ctx context.Context, event T)
}

// Subscriber opens a feed of events published after the call. The channel
// is closed once ctx is done or the broker shuts down.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) (<-chan T, error)
}

// Observer receives delivery statistics. metrics.Metrics implements it.
type Observer interface {
	EventPublished(topic string, delivered, dropped int)
	SubscribersChanged(topic string, count int)
}

type nopObserver struct{}

func (nopObserver) EventPublished(string, int, int) {}
func (nopObserver) SubscribersChanged(string, int)  {}

type subscription[T any] struct {
	id          string
	events      chan T
	connectedAt time.Time
}

// Broker is an in-memory Publisher and Subscriber for one topic.
//
// Publish hands the event to every subscription registered at that moment
// with a non-blocking send. A subscriber whose queue is full misses the
// event. Nothing is replayed to later subscribers.
type Broker[T any] struct {
	topic    string
	buffer   int
	logger   *slog.Logger
	observer Observer

	mu     sync.RWMutex
	subs   map[string]*subscription[T]
	closed bool
}

// Option configures a Broker.
type Option func(*options)

type options struct {
	buffer   int
	observer Observer
}

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithObserver reports delivery statistics to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// NewBroker creates a broker for topic.
func NewBroker[T any](topic string, logger *slog.Logger, opts ...Option) *Broker[T] {
	o := options{buffer: DefaultBuffer, observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Broker[T]{
		topic:    topic,
		buffer:   o.buffer,
		logger:   logger,
		observer: o.observer,
		subs:     make(map[string]*subscription[T]),
	}
}

// Publish implements Publisher.
func (b *Broker[T]) Publish(ctx context.Context, event T) {
	var delivered, dropped int

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	for _, sub := range b.subs {
		// Non-blocking send (drop if subscriber is slow/stuck).
		select {
		case sub.events <- event:
			delivered++
		default:
			dropped++
			b.logger.LogAttrs(ctx, slog.LevelWarn, "dropped event for slow subscriber",
				slog.String("topic", b.topic),
				slog.String("subscriber_id", sub.id))
		}
	}
	b.mu.RUnlock()

	b.observer.EventPublished(b.topic, delivered, dropped)
	b.logger.LogAttrs(ctx, slog.LevelDebug, "event published",
		slog.String("topic", b.topic),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))
}

// Subscribe implements Subscriber.
func (b *Broker[T]) Subscribe(ctx context.Context) (<-chan T, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	sub := &subscription[T]{
		id:          subID,
		events:      make(chan T, b.buffer),
		connectedAt: time.Now(),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs[sub.id] = sub
	total := len(b.subs)
	b.mu.Unlock()

	b.observer.SubscribersChanged(b.topic, total)
	b.logger.Info("subscriber connected",
		slog.String("topic", b.topic),
		slog.String("subscriber_id", sub.id),
		slog.Int("total_subscribers", total))

	go func() {
		<-ctx.Done()
		b.unsubscribe(sub.id)
	}()

	return sub.events, nil
}

func (b *Broker[T]) unsubscribe(subID string) {
	b.mu.Lock()
	sub, ok := b.subs[subID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, subID)
	total := len(b.subs)
	b.mu.Unlock()

	b.observer.SubscribersChanged(b.topic, total)
	close(sub.events)

	b.logger.Info("subscriber disconnected",
		slog.String("topic", b.topic),
		slog.String("subscriber_id", subID),
		slog.Duration("duration", time.Since(sub.connectedAt)),
		slog.Int("total_subscribers", total))
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription and rejects new ones.
func (b *Broker[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[string]*subscription[T])
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.events)
	}
	b.observer.SubscribersChanged(b.topic, 0)

	b.logger.Info("all subscribers disconnected", slog.String("topic", b.topic))
	return nil
}
