package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/conduit/pkg/events"
)

type item struct {
	req    Request
	ticket *Ticket
}

// Manager is a bounded priority queue drained by a single loop. Requests are
// served priority-descending and FIFO among equal priorities. It is safe for
// concurrent use.
type Manager struct {
	mu        sync.Mutex
	config    Config
	items     []*item
	processor Processor

	processing  bool
	closed      bool
	waitSamples []time.Duration

	processed uint64
	failed    uint64
	rejected  uint64
	aborted   uint64

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	sink   events.Sink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a queue that hands dequeued requests to p. Zero config fields
// fall back to DefaultConfig.
func New(cfg Config, p Processor, sink events.Sink) *Manager {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	return &Manager{
		config:    cfg,
		processor: p,
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		sink:      events.OrNop(sink),
		logger:    slog.Default().With("component", "queue"),
		now:       time.Now,
	}
}

// Enqueue adds req to the queue and returns its completion ticket. At
// capacity it returns ErrQueueFull and leaves the queue untouched. After
// Close it returns ErrClosed.
func (m *Manager) Enqueue(req Request) (*Ticket, error) {
	m.mu.Lock()
	if m.closed {
		m.rejected++
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if len(m.items) >= m.config.MaxSize {
		m.rejected++
		length, limit := len(m.items), m.config.MaxSize
		m.mu.Unlock()

		m.logger.Warn("queue full, request rejected",
			"provider", req.Provider,
			"queue_length", length,
		)
		m.publish(events.QueueFull, req.Provider, map[string]any{
			"queue_length": length,
			"priority":     req.Priority,
		})
		return nil, fmt.Errorf("%w (max %d)", ErrQueueFull, limit)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.EnqueuedAt = m.now()
	it := &item{req: req, ticket: newTicket(req.ID)}
	m.insert(it)
	length := len(m.items)
	m.mu.Unlock()

	m.logger.Debug("request queued",
		"id", req.ID,
		"provider", req.Provider,
		"priority", req.Priority,
		"queue_length", length,
	)
	m.publish(events.QueueEnqueued, req.Provider, map[string]any{
		"id":           req.ID,
		"priority":     req.Priority,
		"queue_length": length,
	})
	m.signal()
	return it.ticket, nil
}

// insert places it after every entry with priority >= its own. Must hold mu.
func (m *Manager) insert(it *item) {
	i := len(m.items)
	for i > 0 && m.items[i-1].req.Priority < it.req.Priority {
		i--
	}
	m.items = append(m.items, nil)
	copy(m.items[i+1:], m.items[i:])
	m.items[i] = it
}

// ProcessQueue drains the queue one request at a time until it is empty or
// ctx is done, and returns the number of requests processed. If another
// drain is already running it returns 0 immediately.
func (m *Manager) ProcessQueue(ctx context.Context) int {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return 0
	}
	m.processing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.processing = false
		m.mu.Unlock()
	}()

	n := 0
	for ctx.Err() == nil {
		it := m.pop()
		if it == nil {
			break
		}
		m.run(ctx, it)
		n++
	}
	return n
}

func (m *Manager) pop() *item {
	m.mu.Lock()
	if len(m.items) == 0 {
		m.mu.Unlock()
		return nil
	}
	it := m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	length := len(m.items)
	waited := m.now().Sub(it.req.EnqueuedAt)
	m.mu.Unlock()

	m.publish(events.QueueDequeued, it.req.Provider, map[string]any{
		"id":           it.req.ID,
		"priority":     it.req.Priority,
		"queued_for":   waited.String(),
		"queue_length": length,
	})
	return it
}

func (m *Manager) run(ctx context.Context, it *item) {
	start := m.now()
	value, err := m.process(ctx, it.req)
	elapsed := m.now().Sub(start)

	m.mu.Lock()
	m.waitSamples = append(m.waitSamples, elapsed)
	if len(m.waitSamples) > sampleSize {
		m.waitSamples = m.waitSamples[len(m.waitSamples)-sampleSize:]
	}
	m.processed++
	if err != nil {
		m.failed++
	}
	m.mu.Unlock()

	it.ticket.resolve(value, err)

	payload := map[string]any{
		"id":       it.req.ID,
		"duration": elapsed.String(),
		"success":  err == nil,
	}
	if err != nil {
		payload["error"] = err.Error()
		m.logger.Debug("queued request failed", "id", it.req.ID, "provider", it.req.Provider, "error", err)
	}
	m.publish(events.QueueProcessed, it.req.Provider, payload)
}

// process calls the processor, turning a panic into an error so one bad
// request cannot stop the drain loop.
func (m *Manager) process(ctx context.Context, req Request) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("queue processor panicked", "id", req.ID, "panic", r)
			err = fmt.Errorf("queue processor panic: %v", r)
		}
	}()
	return m.processor.Process(ctx, req)
}

// Start runs the drain loop in the background. It wakes on every Enqueue
// and stops when ctx is done or Close is called.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			m.ProcessQueue(ctx)

			select {
			case <-m.wake:
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Close stops the drain loop and resolves every still-queued ticket with
// ErrClosed.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)

		m.mu.Lock()
		m.closed = true
		items := m.items
		m.items = nil
		m.mu.Unlock()

		for _, it := range items {
			it.ticket.resolve(nil, ErrClosed)
		}
	})
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Abort removes the queued request with id and resolves its ticket with
// ErrAborted. It returns false when no such request is queued, including
// one that has already been dequeued.
func (m *Manager) Abort(id string) bool {
	m.mu.Lock()
	var found *item
	for i, it := range m.items {
		if it.req.ID == id {
			found = it
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	if found != nil {
		m.aborted++
	}
	m.mu.Unlock()

	if found == nil {
		return false
	}
	m.settleAborted(found)
	return true
}

// AbortAll removes every queued request and returns how many were removed.
func (m *Manager) AbortAll() int {
	m.mu.Lock()
	items := m.items
	m.items = nil
	m.aborted += uint64(len(items))
	m.mu.Unlock()

	for _, it := range items {
		m.settleAborted(it)
	}
	if len(items) > 0 {
		m.logger.Info("queue cleared", "aborted", len(items))
	}
	return len(items)
}

func (m *Manager) settleAborted(it *item) {
	it.ticket.resolve(nil, fmt.Errorf("request %s: %w", it.req.ID, ErrAborted))
	m.publish(events.QueueAborted, it.req.Provider, map[string]any{"id": it.req.ID})
}

// Pending returns the queued requests in service order.
func (m *Manager) Pending() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.items))
	for i, it := range m.items {
		out[i] = it.req
	}
	return out
}

// Len returns the number of queued requests.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Status returns a snapshot of the queue counters.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg time.Duration
	if n := len(m.waitSamples); n > 0 {
		var total time.Duration
		for _, d := range m.waitSamples {
			total += d
		}
		avg = total / time.Duration(n)
	}

	return Status{
		QueueLength:     len(m.items),
		MaxSize:         m.config.MaxSize,
		Processing:      m.processing,
		AverageWaitTime: avg,
		TotalProcessed:  m.processed,
		TotalFailed:     m.failed,
		TotalRejected:   m.rejected,
		TotalAborted:    m.aborted,
	}
}

// SetMaxSize changes the queue bound. Requests already queued beyond a
// smaller bound stay queued; new ones are rejected until the queue drains.
func (m *Manager) SetMaxSize(n int) {
	if n <= 0 {
		n = DefaultConfig().MaxSize
	}
	m.mu.Lock()
	m.config.MaxSize = n
	m.mu.Unlock()
}

func (m *Manager) publish(name events.Name, provider string, payload map[string]any) {
	m.sink.Publish(events.Event{
		Name:      name,
		Timestamp: m.now(),
		Provider:  provider,
		Payload:   payload,
	})
}

// SetClock replaces the time source. Intended for tests and simulations;
// call it before the Manager is shared.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
