package vm

import (
	"context"
	"sync"
	"sync/atomic"
)

// Channel links one engine's output to another engine's input. It has a
// single producer and a single consumer; the producer closes it when it
// will send no more, and the consumer hangs up when it will read no more.
type Channel struct {
	ch     chan int64
	closed atomic.Bool
	mu     sync.RWMutex // Send holds it shared, Close exclusively

	hangup     chan struct{}
	hangupOnce sync.Once
}

// NewChannel returns a channel holding up to capacity values before Send
// blocks. Zero gives a rendezvous channel.
func NewChannel(capacity int) *Channel {
	if capacity < 0 {
		capacity = 0
	}
	return &Channel{ch: make(chan int64, capacity), hangup: make(chan struct{})}
}

// Send delivers v, blocking while the buffer is full. Sending on a closed
// channel, or one whose consumer has hung up, is ErrDisconnected.
func (c *Channel) Send(ctx context.Context, v int64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() || c.HungUp() {
		return ErrDisconnected
	}
	select {
	case c.ch <- v:
		return nil
	case <-c.hangup:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next value. Once the channel is closed and its buffer
// drained, Receive returns ErrDisconnected.
func (c *Channel) Receive(ctx context.Context) (int64, error) {
	select {
	case v, ok := <-c.ch:
		if !ok {
			return 0, ErrDisconnected
		}
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close marks the producer side finished. Values already buffered can
// still be received. Close is idempotent and waits for an in-flight Send.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.CompareAndSwap(false, true) {
		close(c.ch)
	}
}

// HangUp marks the consumer side finished. Pending and later Sends return
// ErrDisconnected instead of waiting for room. HangUp is idempotent.
func (c *Channel) HangUp() {
	c.hangupOnce.Do(func() { close(c.hangup) })
}

// HungUp reports whether HangUp has been called.
func (c *Channel) HungUp() bool {
	select {
	case <-c.hangup:
		return true
	default:
		return false
	}
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// Len returns the number of buffered values.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Cap returns the buffer capacity.
func (c *Channel) Cap() int {
	return cap(c.ch)
}

// Source returns the receiving end as an InputPort.
func (c *Channel) Source() ChannelSource {
	return ChannelSource{ch: c}
}

// Sink returns the sending end as an OutputPort.
func (c *Channel) Sink() ChannelSink {
	return ChannelSink{ch: c}
}

// LossySink returns a sending end that discards values once the consumer
// has hung up, so a producer can run on after its reader halts.
func (c *Channel) LossySink() ChannelSink {
	return ChannelSink{ch: c, lossy: true}
}
