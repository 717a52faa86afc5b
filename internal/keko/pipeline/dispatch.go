package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultIdleTTL is how long an identity worker lingers without traffic
// before retiring when no TTL is configured. Keeps the goroutine count
// bounded under unbounded distinct-identity traffic.
const defaultIdleTTL = 5 * time.Minute

// dispatcher serializes message processing per conversation identity. Each
// identity owns a dedicated worker goroutine consuming a bounded FIFO queue,
// so two near-simultaneous messages from the same sender are appended to
// history in arrival order even when their downstream calls resolve out of
// order. Identities are fully independent of each other.
type dispatcher struct {
	mu      sync.Mutex
	workers map[string]chan Inbound
	stopped bool

	queueSize int
	idleTTL   time.Duration
	process   func(ctx context.Context, msg Inbound)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDispatcher(queueSize int, idleTTL time.Duration, process func(ctx context.Context, msg Inbound)) *dispatcher {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &dispatcher{
		workers:   make(map[string]chan Inbound),
		queueSize: queueSize,
		idleTTL:   idleTTL,
		process:   process,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// enqueue hands msg to its identity's worker, spawning one when needed.
// The send happens under the dispatcher lock, so enqueue order is queue
// order. A full queue drops the message with a warning rather than blocking
// the caller (the messaging client's event loop).
func (d *dispatcher) enqueue(msg Inbound) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	ch, ok := d.workers[msg.Sender]
	if !ok {
		ch = make(chan Inbound, d.queueSize)
		d.workers[msg.Sender] = ch
		d.wg.Add(1)
		go d.run(msg.Sender, ch)
	}

	select {
	case ch <- msg:
	default:
		slog.Warn("pipeline: identity queue full, dropping message", "sender", msg.Sender)
	}
}

// run is the per-identity worker loop. Messages are processed one at a time
// in queue order. The worker retires after idleTTL with an empty queue;
// retirement is checked under the dispatcher lock so it cannot race an
// enqueue.
func (d *dispatcher) run(identity string, ch chan Inbound) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleTTL)
	defer idle.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case msg := <-ch:
			d.process(d.ctx, msg)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTTL)
		case <-idle.C:
			d.mu.Lock()
			if len(ch) == 0 {
				delete(d.workers, identity)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.idleTTL)
		}
	}
}

// stop retires all workers after their in-flight message finishes. Queued
// messages that have not started processing are abandoned.
func (d *dispatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
