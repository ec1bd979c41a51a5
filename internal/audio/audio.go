// Package audio holds the sinks a render session writes sample blocks to.
package audio

// Block is one rendered block of mono samples. Voices holds the per-voice
// signals before the filter. The slices are reused by the renderer after
// WriteBlock returns; sinks that keep them must copy.
type Block struct {
	Mix        []float32
	Voices     [3][]float32
	SampleRate int
}

// Sink consumes sample blocks. Close is called exactly once on every exit
// path of a session; drain is false when the session was cancelled.
type Sink interface {
	WriteBlock(b Block) error
	Close(drain bool) error
}

// ListenerSink hands every block to a callback. The callback runs on the
// render goroutine; keep work brief and non-blocking.
type ListenerSink struct {
	fn       func(Block)
	finished func(stopped bool)
}

func NewListenerSink(fn func(Block), finished func(stopped bool)) *ListenerSink {
	return &ListenerSink{fn: fn, finished: finished}
}

func (s *ListenerSink) WriteBlock(b Block) error {
	if s.fn != nil {
		s.fn(b)
	}
	return nil
}

func (s *ListenerSink) Close(drain bool) error {
	if s.finished != nil {
		s.finished(!drain)
	}
	return nil
}

// MemorySink accumulates the mix and the voice signals.
type MemorySink struct {
	SampleRate int
	Mix        []float32
	Voices     [3][]float32
	Closed     bool
}

func (s *MemorySink) WriteBlock(b Block) error {
	s.SampleRate = b.SampleRate
	s.Mix = append(s.Mix, b.Mix...)
	for i, v := range b.Voices {
		s.Voices[i] = append(s.Voices[i], v...)
	}
	return nil
}

func (s *MemorySink) Close(bool) error {
	s.Closed = true
	return nil
}
