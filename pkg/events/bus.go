package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus delivers events to subscribers asynchronously.
//
// Publish never blocks: events are queued on a buffered channel and handed to
// subscribers by a single background goroutine. When the buffer is full the
// event is dropped and counted in Dropped.
type Bus struct {
	events chan Event
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers []Sink

	dropped   atomic.Int64
	delivered atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewBus creates a bus with the given buffer size (default 1024).
func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		events: make(chan Event, bufferSize),
		logger: logger.With("component", "events.bus"),
		stopCh: make(chan struct{}),
	}
}

// Subscribe registers a sink to receive every subsequently delivered event.
func (b *Bus) Subscribe(s Sink) {
	if s == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Publish queues an event for delivery, dropping it if the buffer is full.
func (b *Bus) Publish(e Event) {
	select {
	case <-b.stopCh:
		b.dropped.Add(1)
		return
	default:
	}

	select {
	case b.events <- e:
	default:
		if b.dropped.Add(1)%1000 == 1 {
			b.logger.Warn("event buffer full, dropping events",
				"event", string(e.Name),
				"dropped_total", b.dropped.Load(),
			)
		}
	}
}

// Start launches the delivery goroutine. Calling Start more than once is a no-op.
func (b *Bus) Start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
}

// Close stops delivery after draining queued events.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		b.wg.Wait()
	})
}

// Dropped returns the number of events dropped so far.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Delivered returns the number of events handed to subscribers.
func (b *Bus) Delivered() int64 {
	return b.delivered.Load()
}

func (b *Bus) run() {
	defer b.wg.Done()

	for {
		select {
		case e := <-b.events:
			b.deliver(e)
		case <-b.stopCh:
			for {
				select {
				case e := <-b.events:
					b.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(e Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		b.safePublish(s, e)
	}
	b.delivered.Add(1)
}

// safePublish shields the bus goroutine from panicking subscribers.
func (b *Bus) safePublish(s Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				"event", string(e.Name),
				"panic", r,
			)
		}
	}()
	s.Publish(e)
}
