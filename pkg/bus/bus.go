package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 100

// MessageBus fans dispatch and connection events out to observers such as
// the status server. Chat traffic itself never flows through it.
type MessageBus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64

	dropped atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		subs: make(map[uint64]chan Event),
		done: make(chan struct{}),
	}
}

// Subscribers returns the number of live event subscriptions.
func (mb *MessageBus) Subscribers() int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return len(mb.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (mb *MessageBus) Dropped() int64 {
	if mb == nil {
		return 0
	}
	return mb.dropped.Load()
}

// SubscribeEvents registers a buffered subscription that ends when ctx is
// done, the bus closes, or the returned func is called.
func (mb *MessageBus) SubscribeEvents(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	ch := make(chan Event, buffer)

	mb.mu.Lock()
	if mb.closed() {
		mb.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := mb.nextID
	mb.nextID++
	mb.subs[id] = ch
	mb.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { mb.remove(id) })
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-mb.done:
		}
		unsubscribe()
	}()

	return ch, unsubscribe
}

func (mb *MessageBus) remove(id uint64) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if ch, ok := mb.subs[id]; ok {
		delete(mb.subs, id)
		close(ch)
	}
}

func (mb *MessageBus) closed() bool {
	select {
	case <-mb.done:
		return true
	default:
		return false
	}
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, ch := range mb.subs {
			close(ch)
			delete(mb.subs, id)
		}
		mb.mu.Unlock()
	})
}
