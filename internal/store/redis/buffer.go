package redis

import (
	"context"
	"log"
	"sync"

	"breakout-systemv1/internal/model"
)

// auditBuffer holds audit records produced while the circuit breaker is
// open and replays them once it closes. When the buffer is full the oldest
// record is dropped.
type auditBuffer struct {
	pub    *Publisher
	mu     sync.Mutex
	buffer []model.AuditRecord
	maxBuf int
}

func newAuditBuffer(pub *Publisher, maxBufferSize int) *auditBuffer {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	ab := &auditBuffer{
		pub:    pub,
		buffer: make([]model.AuditRecord, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Register flush on circuit close; forward transitions to the
	// publisher's observer.
	pub.cb.OnStateChange = func(from, to State) {
		if pub.OnStateChange != nil {
			pub.OnStateChange(from, to)
		}
		if to == StateClosed {
			go ab.flush()
		}
	}

	return ab
}

func (ab *auditBuffer) add(rec model.AuditRecord) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if len(ab.buffer) >= ab.maxBuf {
		// Buffer full — drop oldest
		ab.buffer = ab.buffer[1:]
		if ab.pub.OnDrop != nil {
			ab.pub.OnDrop()
		}
	}
	ab.buffer = append(ab.buffer, rec)
}

// flush replays all buffered records through the underlying publisher.
func (ab *auditBuffer) flush() {
	ab.mu.Lock()
	if len(ab.buffer) == 0 {
		ab.mu.Unlock()
		return
	}
	// Take ownership of the buffer
	toFlush := ab.buffer
	ab.buffer = make([]model.AuditRecord, 0, 256)
	ab.mu.Unlock()

	flushed := 0
	for _, rec := range toFlush {
		if err := ab.pub.write(context.Background(), rec); err != nil {
			log.Printf("[redis] flush error: %v", err)
			continue
		}
		flushed++
	}

	log.Printf("[redis] flushed %d buffered audit records", flushed)
}

func (ab *auditBuffer) pending() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return len(ab.buffer)
}
