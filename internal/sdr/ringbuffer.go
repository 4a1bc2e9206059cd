package sdr

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBufferClosed is returned by WaitWindow after Close.
var ErrBufferClosed = errors.New("ring buffer closed")

// RingConfig sizes the capture ring buffer. TotalBytes is the number
// of bytes in one full PSD input window (one second of interleaved
// int8 IQ, i.e. sample rate × 2). Size is the physical capacity and
// must be at least 2 × TotalBytes so a full window stays readable
// while the next one fills.
type RingConfig struct {
	TotalBytes int
	Size       int
}

// DeriveRingConfig returns the ring sizing for a sample rate.
func DeriveRingConfig(sampleRateHz uint64) RingConfig {
	total := int(sampleRateHz) * 2
	return RingConfig{TotalBytes: total, Size: 2 * total}
}

func (c RingConfig) validate() error {
	if c.TotalBytes <= 0 {
		return fmt.Errorf("invalid window size: %d bytes", c.TotalBytes)
	}
	if c.Size < 2*c.TotalBytes {
		return fmt.Errorf("ring capacity %d is below twice the window size %d", c.Size, c.TotalBytes)
	}
	return nil
}

// RingBuffer is a fixed-capacity circular byte buffer for raw IQ
// samples with a single producer (the capture callback) and a single
// consumer (the DSP goroutine). Writes never block: when the buffer is
// full the oldest unread bytes are dropped and an overrun is counted,
// so the capture callback always meets the USB deadline. Reads deliver
// each written byte at most once, in FIFO order.
type RingBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf    []byte
	head   int // next write position
	tail   int // next read position
	unread int

	overruns uint64
	closed   bool
}

// NewRingBuffer creates a ring buffer with the given sizing.
func NewRingBuffer(cfg RingConfig) (*RingBuffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid ring config: %w", err)
	}

	rb := &RingBuffer{buf: make([]byte, cfg.Size)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb, nil
}

// Write copies p into the buffer and returns the number of bytes
// accepted. If p does not fit into the free space, the oldest unread
// bytes are discarded to make room and the overrun counter is
// incremented. If p is larger than the whole buffer only its tail is
// kept.
func (rb *RingBuffer) Write(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed || len(p) == 0 {
		return 0
	}

	if len(p) > len(rb.buf) {
		p = p[len(p)-len(rb.buf):]
	}

	if free := len(rb.buf) - rb.unread; len(p) > free {
		// Drop-oldest: advance the read cursor past the deficit,
		// rounded up to a whole I/Q pair so an odd deficit cannot
		// shift the sample framing of every later window.
		drop := len(p) - free
		if drop&1 == 1 && drop < rb.unread {
			drop++
		}
		rb.tail = (rb.tail + drop) % len(rb.buf)
		rb.unread -= drop
		rb.overruns++
	}

	n := copy(rb.buf[rb.head:], p)
	if n < len(p) {
		copy(rb.buf, p[n:])
	}
	rb.head = (rb.head + len(p)) % len(rb.buf)
	rb.unread += len(p)

	rb.cond.Broadcast()
	return len(p)
}

// ReadWindow returns a contiguous copy of exactly n unread bytes and
// advances the read cursor, or nil if fewer than n bytes are buffered.
// Each byte is delivered at most once.
func (rb *RingBuffer) ReadWindow(n int) []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.readWindowLocked(n)
}

func (rb *RingBuffer) readWindowLocked(n int) []byte {
	if n <= 0 || rb.unread < n {
		return nil
	}

	out := make([]byte, n)
	m := copy(out, rb.buf[rb.tail:min(rb.tail+n, len(rb.buf))])
	if m < n {
		copy(out[m:], rb.buf)
	}
	rb.tail = (rb.tail + n) % len(rb.buf)
	rb.unread -= n
	return out
}

// WaitWindow blocks until n unread bytes are available, the buffer is
// closed, or ctx is done.
func (rb *RingBuffer) WaitWindow(ctx context.Context, n int) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		rb.mu.Lock()
		rb.cond.Broadcast()
		rb.mu.Unlock()
	})
	defer stop()

	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.unread < n {
		if rb.closed {
			return nil, ErrBufferClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rb.cond.Wait()
	}

	return rb.readWindowLocked(n), nil
}

// Buffered returns the number of unread bytes.
func (rb *RingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.unread
}

// Overruns returns the number of writes that had to drop unread data.
func (rb *RingBuffer) Overruns() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.overruns
}

// Reset discards all unread bytes but keeps the overrun counter.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head, rb.tail, rb.unread = 0, 0, 0
}

// Close wakes all blocked readers. Subsequent writes are discarded.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}
