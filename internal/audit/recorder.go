package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize bounds the in-memory event queue.
const DefaultQueueSize = 1024

const writeTimeout = 5 * time.Second

// Writer persists a single audit event.
type Writer interface {
	InsertEvent(ctx context.Context, event Event) error
}

// DropCounter observes events discarded because the queue was full or the
// write failed. Wired to a Prometheus counter in production.
type DropCounter interface {
	AuditDropped()
}

// Recorder decouples audit emission from the request path: Emit never blocks,
// a single drain goroutine writes events through the repository. A write
// failure is surfaced to monitoring, never to the caller that made the
// access decision.
type Recorder struct {
	writer Writer
	logger *slog.Logger
	drops  DropCounter
	clock  func() time.Time

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

// NewRecorder starts the drain goroutine. queueSize <= 0 uses the default.
func NewRecorder(writer Writer, logger *slog.Logger, drops DropCounter, queueSize int) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		writer: writer,
		logger: logger,
		drops:  drops,
		clock:  time.Now,
		ch:     make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// Emit enqueues an event. When the queue is full the event is dropped and
// counted; backpressure must not reach the authorization hot path.
func (r *Recorder) Emit(event Event) {
	if r == nil {
		return
	}
	if event.At.IsZero() {
		event.At = r.clock().UTC()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(event, "recorder closed")
		return
	}
	select {
	case r.ch <- event:
	default:
		r.drop(event, "queue full")
	}
}

// Close stops accepting events and flushes the queue. Emit remains safe to
// call afterwards; late events are counted as drops.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) drain() {
	defer close(r.done)
	for event := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.writer.InsertEvent(ctx, event)
		cancel()
		if err != nil {
			r.drop(event, err.Error())
		}
	}
}

func (r *Recorder) drop(event Event, reason string) {
	if r.drops != nil {
		r.drops.AuditDropped()
	}
	r.logger.Error("audit event dropped",
		slog.String("event", event.Name),
		slog.String("principal", event.Principal),
		slog.Int64("workspace_id", event.WorkspaceID),
		slog.String("reason", reason),
	)
}
