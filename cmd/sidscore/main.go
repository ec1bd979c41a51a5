package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/term"

	"github.com/cbegin/sidscore-go"
)

func main() {
	var (
		scorePath  = flag.String("file", "", "path to a JSON score file")
		wavPath    = flag.String("wav", "", "also write the rendered audio to this WAV file")
		midiPath   = flag.String("midi", "", "export the resolved score as a Standard MIDI File")
		dumpFrames = flag.Bool("frames", false, "print the compiled frame streams")
		noPlay     = flag.Bool("no-play", false, "do not open the audio device (needs -wav, -midi or -frames)")
		sidModel   = flag.String("sid-model", "6581", "chip model: 6581|8580")
		waveforms  = flag.String("sid-waveforms", "", "directory or C header with combined waveform tables (default ./waveforms when present)")
		sampleRate = flag.Int("sample-rate", sidscore.DefaultSampleRate, "output sample rate")
		oversample = flag.Int("oversample", 0, "oversampling factor (0 = auto)")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|oto")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *scorePath == "" {
		log.Fatal("missing -file")
	}
	if *noPlay && *wavPath == "" && *midiPath == "" && !*dumpFrames {
		log.Fatal("-no-play needs -wav, -midi or -frames")
	}
	model, err := sidscore.ParseModel(*sidModel)
	if err != nil {
		log.Fatal(err)
	}
	be, err := sidscore.ParseBackend(*backend)
	if err != nil {
		log.Fatal(err)
	}

	path := expand(*scorePath)
	s, err := sidscore.LoadScore(path)
	if err != nil {
		log.Fatal(err)
	}
	ts, diags, err := sidscore.Resolve(s)
	for _, w := range diags.Warnings() {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w.Text)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printSummary(os.Stdout, ts)

	if *dumpFrames {
		printFrames(os.Stdout, sidscore.CompileFrames(ts))
	}
	if *midiPath != "" {
		out := expand(*midiPath)
		if err := sidscore.ExportMIDI(ts, out); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", out)
	}

	opts := []sidscore.Option{
		sidscore.WithSampleRate(*sampleRate),
		sidscore.WithOversample(*oversample),
		sidscore.WithModel(model),
		sidscore.WithBackend(be),
		sidscore.WithVolume(*volume),
		sidscore.WithLogger(logger),
	}
	if *waveforms != "" {
		opts = append(opts, sidscore.WithWaveforms(expand(*waveforms)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *noPlay {
		if *wavPath == "" {
			return
		}
		out := expand(*wavPath)
		opts = append(opts, progress(ts, *sampleRate))
		res, err := sidscore.RenderToWAV(ctx, ts, out, opts...)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s (%s)\n", out, res.Duration())
		return
	}

	if *wavPath != "" {
		opts = append(opts, sidscore.WithWAVOutput(expand(*wavPath)))
	}
	pl := sidscore.NewPlayer(opts...)
	events := pl.Watch()
	if err := pl.Play(ts); err != nil {
		log.Fatal(err)
	}
	go func() {
		<-ctx.Done()
		pl.Stop()
	}()
	ev := <-events
	switch ev.Kind {
	case sidscore.EventPlaybackEnded:
		fmt.Println("playback completed")
	case sidscore.EventPlaybackStopped:
		fmt.Println("playback stopped")
	case sidscore.EventPlaybackError:
		log.Fatal(ev.Err)
	}
	if err := pl.Wait(); err != nil {
		log.Fatal(err)
	}
}

func expand(path string) string {
	p, err := homedir.Expand(path)
	if err != nil {
		log.Fatal(err)
	}
	return p
}

func printSummary(w io.Writer, ts *sidscore.TimedScore) {
	if ts.Title != "" {
		fmt.Fprintf(w, "Title:    %s\n", ts.Title)
	}
	if ts.Author != "" {
		fmt.Fprintf(w, "Author:   %s\n", ts.Author)
	}
	if ts.Released != "" {
		fmt.Fprintf(w, "Released: %s\n", ts.Released)
	}
	fmt.Fprintf(w, "Tempo:    %d BPM, %d ticks/whole, %s\n", ts.Tempo, ts.TicksPerWhole, ts.System)
	idx := make([]int, 0, len(ts.Voices))
	for i := range ts.Voices {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		v := ts.Voices[i]
		name := "-"
		if v.Instrument != nil {
			name = v.Instrument.Name
		}
		fmt.Fprintf(w, "VOICE %d:  %-12s %4d events %6d ticks\n", i, name, len(v.Events), v.TotalTicks())
	}
}

func printFrames(w io.Writer, streams [3][]sidscore.FrameEvent) {
	for v, events := range streams {
		fmt.Fprintf(w, "VOICE %d frames:\n", v+1)
		for i, ev := range events {
			if ev.IsTerminator() {
				fmt.Fprintf(w, "  %03d  end\n", i)
				continue
			}
			fmt.Fprintf(w, "  %03d  frames=%5d freq=0x%04X ctrl=0x%02X base=0x%02X\n", i, ev.Frames, ev.Freq, ev.Ctrl, ev.BaseNote)
		}
	}
}

// progress reports render progress on stdout when it is a terminal.
func progress(ts *sidscore.TimedScore, sampleRate int) sidscore.Option {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(*sidscore.Config) {}
	}
	total := 0
	for _, events := range sidscore.CompileFrames(ts) {
		n := 0
		for _, ev := range events {
			n += int(ev.Frames)
		}
		total = max(total, n)
	}
	totalSamples := float64(total) / ts.System.FrameRate() * float64(sampleRate)
	done, last := 0, -1
	return sidscore.WithSampleListener(func(b sidscore.Block) {
		done += len(b.Mix)
		pct := 100
		if totalSamples > 0 {
			pct = min(100, int(float64(done)*100/totalSamples))
		}
		if pct != last {
			last = pct
			fmt.Printf("\rrendering %3d%%", pct)
			if pct == 100 {
				fmt.Println()
			}
		}
	})
}
