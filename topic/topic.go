// Package topic is an in-process publish/subscribe channel with a bounded backlog per subscriber.
//
// Every subscription owns one delivery goroutine, so a subscriber's handler is never invoked
// concurrently with itself and sees messages in publish order.
package topic

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/utils"
)

const idlePollInterval = 2 * time.Millisecond

// ErrClosed is returned when publishing to or subscribing on a closed topic.
var ErrClosed = errors.New("topic is closed")

// Handler is invoked once per delivered message.
type Handler[T any] func(ctx context.Context, msg T)

// Topic is a named message channel.
type Topic[T any] struct {
	name    string
	logger  logging.Logger
	workers utils.StoppableWorkers

	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// New returns an open topic.
func New[T any](name string, logger logging.Logger) *Topic[T] {
	return &Topic[T]{
		name:    name,
		logger:  logger.Sublogger(name),
		workers: utils.NewStoppableWorkers(),
		subs:    map[*Subscription[T]]struct{}{},
	}
}

// Name returns the topic name.
func (t *Topic[T]) Name() string {
	return t.name
}

// Subscribe registers handler under name. A queueSize below one keeps an unbounded backlog, so
// nothing published to this subscriber is ever dropped.
func (t *Topic[T]) Subscribe(name string, queueSize int, handler Handler[T]) (*Subscription[T], error) {
	if queueSize < 0 {
		queueSize = 0
	}
	sub := &Subscription[T]{
		topic:     t,
		name:      name,
		queueSize: queueSize,
		handler:   handler,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	t.subs[sub] = struct{}{}
	t.workers.AddWorkers(sub.deliver)
	return sub, nil
}

// Publish queues msg for every current subscriber. It never blocks on a slow subscriber; a full
// backlog drops its oldest message instead.
func (t *Topic[T]) Publish(ctx context.Context, msg T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	subs := make([]*Subscription[T], 0, len(t.subs))
	for sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(msg)
	}
	return nil
}

// NumSubscribers returns how many subscriptions are registered.
func (t *Topic[T]) NumSubscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// WaitIdle blocks until every subscriber has handled everything published so far, or ctx is done.
func (t *Topic[T]) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if t.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Topic[T]) idle() bool {
	t.mu.Lock()
	subs := make([]*Subscription[T], 0, len(t.subs))
	for sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()
	for _, sub := range subs {
		if !sub.idle() {
			return false
		}
	}
	return true
}

// Close unsubscribes everyone and waits for in-flight handlers to return. Queued messages that were
// not yet delivered are discarded.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for sub := range t.subs {
		sub.stop()
	}
	t.subs = map[*Subscription[T]]struct{}{}
	t.mu.Unlock()

	t.workers.Stop()
}

func (t *Topic[T]) remove(sub *Subscription[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, sub)
}

// Subscription is one subscriber's registration on a topic.
type Subscription[T any] struct {
	topic     *Topic[T]
	name      string
	queueSize int
	handler   Handler[T]

	mu       sync.Mutex
	queue    []T
	inflight bool
	notify   chan struct{}
	done     chan struct{}
	once     sync.Once
	dropped  atomic.Uint64
}

// Unsubscribe stops delivery. It is safe to call from inside the subscription's own handler; the
// handler currently running finishes and nothing further is delivered.
func (s *Subscription[T]) Unsubscribe() {
	s.topic.remove(s)
	s.stop()
}

// Dropped returns how many messages were discarded because the backlog was full.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription[T]) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription[T]) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription[T]) enqueue(msg T) {
	s.mu.Lock()
	if s.queueSize > 0 && len(s.queue) >= s.queueSize {
		s.queue = s.queue[1:]
		dropped := s.dropped.Inc()
		s.topic.logger.Warnw("subscriber backlog full, dropping oldest message",
			"subscriber", s.name, "queue_size", s.queueSize, "dropped", dropped)
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pop() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if len(s.queue) == 0 {
		return zero, false
	}
	msg := s.queue[0]
	s.queue[0] = zero
	s.queue = s.queue[1:]
	s.inflight = true
	return msg, true
}

func (s *Subscription[T]) handled() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

func (s *Subscription[T]) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped() || (len(s.queue) == 0 && !s.inflight)
}

func (s *Subscription[T]) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.notify:
		}
		for !s.stopped() && ctx.Err() == nil {
			msg, ok := s.pop()
			if !ok {
				break
			}
			s.handler(ctx, msg)
			s.handled()
		}
	}
}
