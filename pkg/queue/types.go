package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at MaxSize.
	ErrQueueFull = errors.New("request queue is full")

	// ErrAborted resolves the ticket of a request removed by Abort or AbortAll.
	ErrAborted = errors.New("queued request aborted")

	// ErrClosed resolves tickets still queued when the manager is closed.
	ErrClosed = errors.New("request queue closed")
)

// sampleSize caps the rolling processing-time sample.
const sampleSize = 100

// Config contains request queue configuration.
type Config struct {
	// MaxSize bounds the number of queued requests.
	MaxSize int `yaml:"max_size" json:"max_size"`
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 100}
}

// Request is a deferred request waiting for admission.
type Request struct {
	// ID is assigned by Enqueue when empty.
	ID string `json:"id"`

	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Priority orders the queue; higher values are served first.
	Priority int `json:"priority"`

	// EnqueuedAt is set by Enqueue.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Payload is passed through to the Processor untouched.
	Payload any `json:"-"`
}

// Status is a point-in-time view of the queue.
type Status struct {
	QueueLength     int           `json:"queue_length"`
	MaxSize         int           `json:"max_size"`
	Processing      bool          `json:"processing"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
	TotalProcessed  uint64        `json:"total_processed"`
	TotalFailed     uint64        `json:"total_failed"`
	TotalRejected   uint64        `json:"total_rejected"`
	TotalAborted    uint64        `json:"total_aborted"`
}

// Processor executes a dequeued request.
type Processor interface {
	Process(ctx context.Context, req Request) (any, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, req Request) (any, error)

// Process calls f(ctx, req).
func (f ProcessorFunc) Process(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Ticket is the completion signal for a queued request.
type Ticket struct {
	id   string
	done chan struct{}
	once sync.Once

	value any
	err   error
}

func newTicket(id string) *Ticket {
	return &Ticket{id: id, done: make(chan struct{})}
}

// ID returns the queued request id.
func (t *Ticket) ID() string {
	return t.id
}

// Done is closed once the request has been processed or aborted.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the ticket resolves or ctx is done. A ctx error does not
// remove the request from the queue; use Manager.Abort for that.
func (t *Ticket) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve settles the ticket once; later calls are ignored.
func (t *Ticket) resolve(value any, err error) {
	t.once.Do(func() {
		t.value = value
		t.err = err
		close(t.done)
	})
}
