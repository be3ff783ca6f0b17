package events

import (
	"sync"

	"monitorsync/internal/waitlist"
)

const defaultBufferSize = 100

// Bus is a simple pub/sub event bus.
// Subscribers are kept in subscription order and Publish visits them in that order.
type Bus struct {
	mu          sync.RWMutex
	subscribers waitlist.List[chan Event]
	nodes       map[<-chan Event]*waitlist.Node[chan Event]
	bufferSize  int
	closed      bool
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return NewBusWithBuffer(defaultBufferSize)
}

// NewBusWithBuffer creates a new event bus whose subscriber channels hold size events
func NewBusWithBuffer(size int) *Bus {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Bus{
		nodes:      make(map[<-chan Event]*waitlist.Node[chan Event]),
		bufferSize: size,
	}
}

// Subscribe returns a channel that receives events.
// Subscribing to a closed bus returns an already closed channel.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.nodes[ch] = b.subscribers.Enqueue(ch)
	return ch
}

// Unsubscribe removes a subscriber channel
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	node, ok := b.nodes[ch]
	if !ok {
		return
	}
	delete(b.nodes, ch)
	b.subscribers.Remove(node)
	close(node.Value)
}

// Publish sends an event to all subscribers
// Non-blocking: if a subscriber's buffer is full, the event is dropped for that subscriber
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers.All() {
		select {
		case ch <- event:
		default:
			// Channel full, drop event for this subscriber
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subscribers.Len()
}

// Close closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for node := b.subscribers.PullHead(); node != nil; node = b.subscribers.PullHead() {
		delete(b.nodes, node.Value)
		close(node.Value)
	}
}
