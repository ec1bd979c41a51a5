package sidscore

import (
	"context"
	"errors"
	"sync"

	"github.com/cbegin/sidscore-go/internal/effects"
)

// EventKind identifies playback lifecycle events.
type EventKind int

const (
	// EventPlaybackEnded: every voice ran out of events and the device drained.
	EventPlaybackEnded EventKind = iota
	// EventPlaybackStopped: Stop (or a new Play) cancelled the session.
	EventPlaybackStopped
	// EventPlaybackError: the session failed; Err is set.
	EventPlaybackError
)

func (k EventKind) String() string {
	switch k {
	case EventPlaybackEnded:
		return "ended"
	case EventPlaybackStopped:
		return "stopped"
	default:
		return "error"
	}
}

// PlaybackEvent is delivered on the Watch channel.
type PlaybackEvent struct {
	Kind   EventKind
	Result Result
	Err    error
}

// Player renders scores to the realtime device on a background goroutine.
type Player struct {
	// playMu serializes Play so a stop and the following start are atomic.
	playMu  sync.Mutex
	mu      sync.Mutex
	opts    []Option
	gain    *effects.Gain
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error

	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

// NewPlayer creates a player. Realtime output is on unless an option turns
// it off.
func NewPlayer(opts ...Option) *Player {
	cfg := buildConfig(opts)
	return &Player{
		opts: append([]Option{WithDevice(true)}, opts...),
		gain: effects.NewGain(cfg.Volume),
	}
}

// PlayScore resolves s and plays it. Resolver warnings are logged and
// returned.
func (p *Player) PlayScore(s *Score) (Diagnostics, error) {
	ts, diags, err := Resolve(s)
	if err != nil {
		return diags, err
	}
	log := buildConfig(p.opts).Logger
	for _, w := range diags.Warnings() {
		log.Warn("resolve", "warning", w.Text)
	}
	return diags, p.Play(ts)
}

// Play starts a new session, stopping any current one first.
func (p *Player) Play(ts *TimedScore) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()
	p.Stop()

	sess, err := NewSession(ts, append(p.opts, withGain(p.gain))...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.lastErr = nil
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		res, err := sess.Run(ctx)
		ev := PlaybackEvent{Result: res, Err: err}
		switch {
		case err != nil:
			ev.Kind = EventPlaybackError
		case res.Stopped:
			ev.Kind = EventPlaybackStopped
		default:
			ev.Kind = EventPlaybackEnded
		}
		p.mu.Lock()
		if p.done == done {
			p.lastErr = err
		}
		p.mu.Unlock()
		p.sendEvent(ev)
	}()
	return nil
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Stop cancels the current session and waits for its sinks to close. It is
// safe to call from any goroutine and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the current session ends and returns its error.
// It returns immediately if nothing was played.
func (p *Player) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Watch returns a channel that receives one PlaybackEvent per session.
// The channel is buffered (cap 8); only the most recent Watch channel
// receives events, so call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets the output volume, clamped to 0..1. It takes effect
// immediately on the render goroutine.
func (p *Player) SetMasterVolume(volume float64) {
	p.gain.Set(volume)
}

func (p *Player) MasterVolume() float64 {
	return p.gain.Level()
}

// IsResolveError reports whether err came from score resolution.
func IsResolveError(err error) bool {
	var re *ResolveError
	return errors.As(err, &re)
}
