package buffer_pool

import "sync/atomic"

// Lease is a retain on a BigBuffer that is given back exactly once.
// Release is idempotent, so a lease is safe to release with defer on every path.
type Lease struct {
	buf      *BigBuffer
	release  func(*BigBuffer)
	released atomic.Bool
}

// Buffer returns the leased buffer.
func (l *Lease) Buffer() *BigBuffer {
	return l.buf
}

// Release gives the retain back to the pool. Calls after the first are no-ops.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.release(l.buf)
	}
}

// Released reports whether Release has been called.
func (l *Lease) Released() bool {
	return l.released.Load()
}
