package session

import "sync"

// outbox is an unbounded ordered queue of outbound messages. Pushes never
// block, so a slow reader can never stall the room tick that broadcasts to
// it; the writer goroutine drains batches in push order.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Send queues a message. It reports false once the outbox is closed.
func (o *outbox) Send(msg any) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.queue = append(o.queue, msg)
	o.cond.Signal()
	return true
}

// next blocks until at least one message is queued and returns the whole
// pending batch, or nil once the outbox is closed and drained.
func (o *outbox) next() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	batch := o.queue
	o.queue = nil
	return batch
}

// close wakes the writer and makes further sends fail.
func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cond.Signal()
}
