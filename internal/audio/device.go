package audio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/pkg/errors"
)

// Backend selects the realtime output library.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

func ParseBackend(raw string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(BackendEbiten):
		return BackendEbiten, nil
	case string(BackendOto):
		return BackendOto, nil
	}
	return "", fmt.Errorf("unknown audio backend %q (want ebiten or oto)", raw)
}

// devicePlayer is the part of ebiten's and oto's players a Device drives.
type devicePlayer interface {
	Play()
	IsPlaying() bool
	Close() error
}

// Device is a realtime sink. Blocks are queued in a StreamReader that the
// backend's player pulls from on its own goroutine.
type Device struct {
	reader     *StreamReader
	player     devicePlayer
	sampleRate int
	closeOnce  sync.Once
	closeErr   error
}

var (
	ebitenOnce       sync.Once
	ebitenContext    *ebitaudio.Context
	ebitenSampleRate int

	otoOnce       sync.Once
	otoContext    *oto.Context
	otoErr        error
	otoSampleRate int
)

func sharedEbitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenOnce.Do(func() {
		ebitenSampleRate = sampleRate
		ebitenContext = ebitaudio.NewContext(sampleRate)
	})
	if ebitenSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", ebitenSampleRate, sampleRate)
	}
	return ebitenContext, nil
}

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoSampleRate = sampleRate
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", otoSampleRate, sampleRate)
	}
	return otoContext, nil
}

// OpenDevice opens the output device and starts the player. It buffers about
// a quarter second of audio.
func OpenDevice(backend Backend, sampleRate int) (*Device, error) {
	d := &Device{sampleRate: sampleRate}
	switch backend {
	case BackendOto:
		ctx, err := sharedOtoContext(sampleRate)
		if err != nil {
			return nil, errors.Wrap(err, "open oto device")
		}
		d.reader = NewStreamReader(sampleRate/4, 1)
		d.player = ctx.NewPlayer(d.reader)
	default:
		ctx, err := sharedEbitenContext(sampleRate)
		if err != nil {
			return nil, errors.Wrap(err, "open ebiten device")
		}
		// ebiten always plays stereo float32.
		d.reader = NewStreamReader(sampleRate/4, 2)
		pl, err := ctx.NewPlayerF32(d.reader)
		if err != nil {
			return nil, errors.Wrap(err, "open ebiten player")
		}
		d.player = pl
	}
	d.player.Play()
	return d, nil
}

func (d *Device) WriteBlock(b Block) error {
	if err := d.reader.Write(b.Mix); err != nil {
		return errors.Wrap(err, "write audio device")
	}
	return nil
}

// Close ends playback. With drain it waits for queued audio to play out;
// otherwise queued audio is discarded.
func (d *Device) Close(drain bool) error {
	d.closeOnce.Do(func() {
		if !drain {
			d.reader.Discard()
		}
		_ = d.reader.Close()
		if drain {
			buffered := time.Duration(d.reader.Buffered()) * time.Second / time.Duration(d.sampleRate)
			deadline := time.Now().Add(buffered + 2*time.Second)
			for d.player.IsPlaying() && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
		}
		if err := d.player.Close(); err != nil {
			d.closeErr = errors.Wrap(err, "close audio device")
		}
	})
	return d.closeErr
}
