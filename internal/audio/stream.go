package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned when writing to a closed stream.
var ErrClosed = errors.New("audio stream closed")

// StreamReader is a bounded FIFO between the render loop and a device
// player. Write blocks while the FIFO is full; Read never blocks and pads
// underruns with silence. Each mono sample is written to every output
// channel as little-endian float32.
type StreamReader struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []float32
	head     int
	n        int
	channels int
	closed   bool
}

func NewStreamReader(capacity, channels int) *StreamReader {
	if capacity <= 0 {
		capacity = 4096
	}
	if channels <= 0 {
		channels = 1
	}
	r := &StreamReader{buf: make([]float32, capacity), channels: channels}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Write queues samples, waiting for space as needed.
func (r *StreamReader) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(samples) > 0 {
		for r.n == len(r.buf) && !r.closed {
			r.cond.Wait()
		}
		if r.closed {
			return ErrClosed
		}
		tail := (r.head + r.n) % len(r.buf)
		k := min(len(samples), len(r.buf)-r.n, len(r.buf)-tail)
		copy(r.buf[tail:tail+k], samples[:k])
		r.n += k
		samples = samples[k:]
	}
	return nil
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frameBytes := 4 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	if r.closed && r.n == 0 {
		return 0, io.EOF
	}
	if r.closed {
		frames = min(frames, r.n)
	}
	for i := 0; i < frames; i++ {
		var s float32
		if r.n > 0 {
			s = r.buf[r.head]
			r.head = (r.head + 1) % len(r.buf)
			r.n--
		}
		u := math.Float32bits(s)
		for c := 0; c < r.channels; c++ {
			binary.LittleEndian.PutUint32(p[i*frameBytes+c*4:], u)
		}
	}
	r.cond.Broadcast()
	return frames * frameBytes, nil
}

// Close ends the stream. Queued samples are still read; after them Read
// returns io.EOF.
func (r *StreamReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
	return nil
}

// Discard drops queued samples.
func (r *StreamReader) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head, r.n = 0, 0
	r.cond.Broadcast()
}

// Buffered returns the number of queued samples.
func (r *StreamReader) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
