package broker

import "sync"

const outboxInitialCap = 16

// Outbox is the unbounded FIFO queue of outbound lines for a single peer.
// The broker is the only producer; exactly one connection writer consumes
// Lines. Push never blocks: the ring doubles when full.
type Outbox struct {
	mu        sync.Mutex
	cond      *sync.Cond
	buf       []string
	head      int // read position
	tail      int // write position
	count     int
	closed    bool // producer side gone; drain remaining lines
	discarded bool // consumer gave up; stop immediately

	out  chan string
	quit chan struct{}
}

// NewOutbox creates an empty queue and starts its pump.
func NewOutbox() *Outbox {
	b := &Outbox{
		buf:  make([]string, outboxInitialCap),
		out:  make(chan string),
		quit: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.pump()
	return b
}

// Push appends a line. Returns false once the queue is closed or
// discarded; delivery is best-effort and the caller does not treat a
// refused push as an error.
func (b *Outbox) Push(line string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.discarded {
		return false
	}
	if b.count == len(b.buf) {
		b.grow()
	}
	b.buf[b.tail] = line
	b.tail = (b.tail + 1) % len(b.buf)
	b.count++
	b.cond.Signal()
	return true
}

// Lines is the consumer side of the queue. It preserves enqueue order and
// is closed after the last line once Close has been called, or promptly
// after Discard.
func (b *Outbox) Lines() <-chan string {
	return b.out
}

// Close marks the producer side gone. Lines already queued are still
// delivered; Lines is closed after the last one.
func (b *Outbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}

// Discard releases the pump without draining. Called by the writer when a
// shutdown signal preempts the remaining lines; whatever is still queued
// stays in the ring and is reported by Len.
func (b *Outbox) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.discarded {
		return
	}
	b.discarded = true
	close(b.quit)
	b.cond.Broadcast()
}

// Len reports the number of lines still queued.
func (b *Outbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// next blocks until a line is available or the queue terminates.
func (b *Outbox) next() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed && !b.discarded {
		b.cond.Wait()
	}
	if b.discarded || b.count == 0 {
		return "", false
	}
	line := b.buf[b.head]
	b.buf[b.head] = ""
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	return line, true
}

// pump moves lines from the ring to the output channel so the consumer can
// select on Lines together with its shutdown signal.
func (b *Outbox) pump() {
	defer close(b.out)
	for {
		line, ok := b.next()
		if !ok {
			return
		}
		select {
		case b.out <- line:
		case <-b.quit:
			return
		}
	}
}

// grow doubles the ring. Must be called with the lock held.
func (b *Outbox) grow() {
	bigger := make([]string, len(b.buf)*2)
	if b.head < b.tail || b.count == 0 {
		copy(bigger, b.buf[b.head:b.tail])
	} else {
		n := copy(bigger, b.buf[b.head:])
		copy(bigger[n:], b.buf[:b.tail])
	}
	b.buf = bigger
	b.head = 0
	b.tail = b.count
}
