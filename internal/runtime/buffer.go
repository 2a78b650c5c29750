package runtime

import "sync"

// outputBuffer is a thread-safe ring buffer holding the tail of a session's
// stdout. Once full, the oldest bytes are overwritten.
type outputBuffer struct {
	data  []byte
	size  int
	start int
	end   int
	full  bool
	mu    sync.RWMutex
}

// newOutputBuffer creates a ring buffer with the given capacity in bytes.
func newOutputBuffer(size int) *outputBuffer {
	return &outputBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends data to the buffer, overwriting the oldest bytes when full.
func (b *outputBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = len(p)

	for _, c := range p {
		b.data[b.end] = c
		b.end = (b.end + 1) % b.size

		if b.full {
			b.start = (b.start + 1) % b.size
		}

		if b.end == b.start {
			b.full = true
		}
	}

	return n, nil
}

// String returns the buffered output as a string.
func (b *outputBuffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full && b.start == 0 {
		return string(b.data[:b.end])
	}

	result := make([]byte, 0, b.length())
	if b.full || b.end < b.start {
		result = append(result, b.data[b.start:]...)
		result = append(result, b.data[:b.end]...)
	} else {
		result = append(result, b.data[b.start:b.end]...)
	}

	return string(result)
}

// Len returns the number of buffered bytes.
func (b *outputBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.length()
}

// length computes the buffered byte count. Caller must hold the lock.
func (b *outputBuffer) length() int {
	if b.full {
		return b.size
	}
	if b.end >= b.start {
		return b.end - b.start
	}
	return b.size - b.start + b.end
}
