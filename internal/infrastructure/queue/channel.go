// Package queue provides a bounded FIFO hand-off with an occupancy counter
// that is always consistent with the sends and receives completed so far.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned once the peer end of the channel is gone.
var ErrClosed = errors.New("channel closed")

// Gauge receives the occupancy after every change. prometheus.Gauge fits.
type Gauge interface {
	Set(float64)
}

type Option func(*options)

type options struct {
	gauge Gauge
}

func WithGauge(g Gauge) Option {
	return func(o *options) { o.gauge = g }
}

// Channel is a capacity-bounded queue. One worker goroutine owns the buffer
// and the counter, so every send, receive and length query is applied in the
// order the worker accepts it and no count is ever observed half-updated.
type Channel[T any] struct {
	capacity int
	gauge    Gauge

	in     chan T
	out    chan T
	length chan int

	sendClosed chan struct{} // closed by CloseSend
	quit       chan struct{} // closed by Close
	done       chan struct{} // closed when the worker exits

	closeSendOnce sync.Once
	closeOnce     sync.Once

	final atomic.Int64
}

// New starts the worker. A capacity below 1 is raised to 1.
func New[T any](capacity int, opts ...Option) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Channel[T]{
		capacity:   capacity,
		gauge:      o.gauge,
		in:         make(chan T),
		out:        make(chan T),
		length:     make(chan int),
		sendClosed: make(chan struct{}),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Channel[T]) Cap() int { return c.capacity }

// Send enqueues item, blocking while the queue is full.
func (c *Channel[T]) Send(ctx context.Context, item T) error {
	select {
	case <-c.sendClosed:
		return ErrClosed
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.in <- item:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the oldest item, blocking while the queue is empty.
// After CloseSend it keeps returning buffered items, then ErrClosed.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case item := <-c.out:
		return item, nil
	case <-c.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Out exposes the receive side for use in a select. A value taken from Out
// counts as received. Out is never closed; Done reports the end.
func (c *Channel[T]) Out() <-chan T { return c.out }

// Len returns the number of items sent and not yet received.
func (c *Channel[T]) Len() int {
	select {
	case n := <-c.length:
		return n
	case <-c.done:
		return int(c.final.Load())
	}
}

// CloseSend marks the sending side as gone. Items already queued are still
// delivered.
func (c *Channel[T]) CloseSend() {
	c.closeSendOnce.Do(func() { close(c.sendClosed) })
}

// Close tears the channel down from the receiving side. Pending and future
// sends and receives fail with ErrClosed and queued items are discarded.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
}

// Done is closed once the worker has stopped.
func (c *Channel[T]) Done() <-chan struct{} { return c.done }

func (c *Channel[T]) run() {
	defer close(c.done)

	var (
		ring       = make([]T, c.capacity)
		head, n    int
		zero       T
		senderGone = c.sendClosed
	)

	for {
		var in chan T
		if n < c.capacity && senderGone != nil {
			in = c.in
		}

		if n == 0 && senderGone == nil {
			return
		}
		var out chan T
		var next T
		if n > 0 {
			out = c.out
			next = ring[head]
		}

		select {
		case item := <-in:
			ring[(head+n)%c.capacity] = item
			n++
			c.publish(n)
		case out <- next:
			ring[head] = zero
			head = (head + 1) % c.capacity
			n--
			c.publish(n)
		case c.length <- n:
		case <-senderGone:
			senderGone = nil
		case <-c.quit:
			c.final.Store(int64(n))
			return
		}
	}
}

func (c *Channel[T]) publish(n int) {
	if c.gauge != nil {
		c.gauge.Set(float64(n))
	}
}
