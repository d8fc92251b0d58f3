package engine

import (
	"sync"
	"time"
)

// bufferPool hands out exclusive ownership of read buffers. The free list is
// mutated under mu only; availability is a counting semaphore (tokens), so a
// waiting checkout never holds the lock across the wait.
type bufferPool struct {
	mu     sync.Mutex
	free   []*ReadBuffer
	tokens chan struct{}
}

func newBufferPool(capacity int) *bufferPool {
	return &bufferPool{tokens: make(chan struct{}, capacity)}
}

// checkin returns a buffer to the pool and wakes one waiter.
func (p *bufferPool) checkin(b *ReadBuffer) {
	p.mu.Lock()
	p.free = append(p.free, b)
	p.mu.Unlock()
	p.tokens <- struct{}{}
}

// checkout claims a buffer. A zero timeout waits indefinitely; otherwise nil
// is returned when no buffer frees up in time.
func (p *bufferPool) checkout(timeout time.Duration) *ReadBuffer {
	if timeout == 0 {
		<-p.tokens
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-p.tokens:
		case <-timer.C:
			return nil
		}
	}

	p.mu.Lock()
	n := len(p.free) - 1
	b := p.free[n]
	p.free = p.free[:n]
	p.mu.Unlock()
	return b
}

// checkoutNoWait claims a buffer only if one is free right now.
func (p *bufferPool) checkoutNoWait() *ReadBuffer {
	select {
	case <-p.tokens:
	default:
		return nil
	}
	p.mu.Lock()
	n := len(p.free) - 1
	b := p.free[n]
	p.free = p.free[:n]
	p.mu.Unlock()
	return b
}

func (p *bufferPool) available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
