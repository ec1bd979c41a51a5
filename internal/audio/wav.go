package audio

import (
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

const wavBitDepth = 16

// WAVSink writes the mix as 16-bit mono PCM.
type WAVSink struct {
	path       string
	f          *os.File
	enc        *wav.Encoder
	sampleRate int
	buf        *goaudio.IntBuffer
}

func NewWAVSink(path string, sampleRate int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return &WAVSink{
		path:       path,
		f:          f,
		enc:        wav.NewEncoder(f, sampleRate, wavBitDepth, 1, 1),
		sampleRate: sampleRate,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

func (s *WAVSink) WriteBlock(b Block) error {
	if cap(s.buf.Data) < len(b.Mix) {
		s.buf.Data = make([]int, len(b.Mix))
	}
	s.buf.Data = s.buf.Data[:len(b.Mix)]
	for i, v := range b.Mix {
		s.buf.Data[i] = pcm16(v)
	}
	if err := s.enc.Write(s.buf); err != nil {
		return errors.Wrapf(err, "write %s", s.path)
	}
	return nil
}

// Close finalizes the header. A cancelled session still leaves a valid file
// holding what was rendered.
func (s *WAVSink) Close(bool) error {
	encErr := s.enc.Close()
	fileErr := s.f.Close()
	if encErr != nil {
		return errors.Wrapf(encErr, "finalize %s", s.path)
	}
	if fileErr != nil {
		return errors.Wrapf(fileErr, "close %s", s.path)
	}
	return nil
}

func pcm16(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(v * 32767)
}
