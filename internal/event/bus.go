// Package event provides a small generic publish/subscribe bus used to fan
// out daemon events to connected sessions. Delivery is best effort by
// default: a subscriber that falls behind its buffer loses events rather
// than blocking the publisher. BlockOnFull trades that for lossless
// delivery, parking the publisher until the subscriber drains or the write
// timeout expires.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultSubscriberBufferSize = 128

type BusOptions struct {
	Name                 string
	SubscriberBufferSize int
	MaxSubscribers       int
	BlockOnFull          bool
	WriteTimeout         time.Duration
}

type subscription[T any] struct {
	id     uint64
	ch     chan T
	filter func(T) bool
}

type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[uint64]subscription[T]
	nextSubID   uint64
	closed      bool
	closeOnce   sync.Once
	options     BusOptions
	published   atomic.Int64
	dropped     atomic.Int64
}

func NewBus[T any](ctx context.Context, options BusOptions) *Bus[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if options.SubscriberBufferSize <= 0 {
		options.SubscriberBufferSize = defaultSubscriberBufferSize
	}
	bus := &Bus[T]{
		subscribers: make(map[uint64]subscription[T]),
		options:     options,
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			bus.Close()
		}()
	}
	return bus
}

func (bus *Bus[T]) Subscribe() (<-chan T, func()) {
	return bus.SubscribeFiltered(nil)
}

func (bus *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func()) {
	if bus == nil {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan T, bus.options.SubscriberBufferSize)
	id := atomic.AddUint64(&bus.nextSubID, 1)

	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if bus.options.MaxSubscribers > 0 && len(bus.subscribers) >= bus.options.MaxSubscribers {
		bus.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	bus.subscribers[id] = subscription[T]{id: id, ch: ch, filter: filter}
	bus.mu.Unlock()

	return ch, func() {
		bus.removeSubscriber(id)
	}
}

func (bus *Bus[T]) Publish(item T) {
	if bus == nil {
		return
	}

	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		return
	}
	targets := make([]subscription[T], 0, len(bus.subscribers))
	for _, sub := range bus.subscribers {
		targets = append(targets, sub)
	}
	bus.mu.Unlock()

	bus.published.Add(1)
	for _, sub := range targets {
		if sub.filter != nil && !sub.filter(item) {
			continue
		}
		if !bus.sendToSubscriber(sub, item) {
			bus.dropped.Add(1)
		}
	}
}

func (bus *Bus[T]) sendToSubscriber(sub subscription[T], item T) bool {
	if bus.options.BlockOnFull {
		return bus.blockingSend(sub, item)
	}
	return bus.nonBlockingSend(sub, item)
}

func (bus *Bus[T]) nonBlockingSend(sub subscription[T], item T) bool {
	return bus.safeSend(sub, func() bool {
		select {
		case sub.ch <- item:
			return true
		default:
			return false
		}
	})
}

func (bus *Bus[T]) blockingSend(sub subscription[T], item T) bool {
	return bus.safeSend(sub, func() bool {
		if bus.options.WriteTimeout <= 0 {
			sub.ch <- item
			return true
		}
		timer := time.NewTimer(bus.options.WriteTimeout)
		defer timer.Stop()
		select {
		case sub.ch <- item:
			return true
		case <-timer.C:
			return false
		}
	})
}

// safeSend tolerates a subscriber cancelling concurrently with a publish; a
// send on the closed channel counts as a drop.
func (bus *Bus[T]) safeSend(sub subscription[T], send func() bool) (delivered bool) {
	defer func() {
		if recover() != nil {
			delivered = false
		}
	}()
	return send()
}

func (bus *Bus[T]) removeSubscriber(id uint64) {
	bus.mu.Lock()
	sub, ok := bus.subscribers[id]
	delete(bus.subscribers, id)
	bus.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

func (bus *Bus[T]) SubscriberCount() int {
	if bus == nil {
		return 0
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return len(bus.subscribers)
}

// Stats reports totals since the bus was created.
func (bus *Bus[T]) Stats() (published, dropped int64) {
	if bus == nil {
		return 0, 0
	}
	return bus.published.Load(), bus.dropped.Load()
}

func (bus *Bus[T]) Close() {
	if bus == nil {
		return
	}
	bus.closeOnce.Do(func() {
		bus.mu.Lock()
		bus.closed = true
		subscribers := bus.subscribers
		bus.subscribers = make(map[uint64]subscription[T])
		bus.mu.Unlock()

		for _, sub := range subscribers {
			close(sub.ch)
		}
	})
}
