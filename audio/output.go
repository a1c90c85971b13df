// Package audio plays transport events through a small drum synthesizer
// on the system audio device. The player position is the clock every
// event is scheduled against.
package audio

import (
	"fmt"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"go-groove/debug"
	"go-groove/transport"
)

// DefaultSampleRate is used when no rate is configured.
const DefaultSampleRate = 48000

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedAudioContext returns the process-wide audio context. The first
// caller fixes the sample rate.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Option configures an Output.
type Option func(*Output)

func WithSampleRate(rate int) Option {
	return func(o *Output) {
		if rate > 0 {
			o.sampleRate = rate
		}
	}
}

func WithGain(gain float64) Option {
	return func(o *Output) {
		if gain > 0 {
			o.gain = gain
		}
	}
}

// WithBufferSize sets the player buffer; smaller is lower latency.
func WithBufferSize(d time.Duration) Option {
	return func(o *Output) { o.bufferSize = d }
}

// Output is a transport.Device backed by an ebiten audio player. The
// player is created lazily on the first Open and kept until Close.
type Output struct {
	sampleRate int
	gain       float64
	bufferSize time.Duration

	mu     sync.Mutex
	mixer  *Mixer
	player *ebitaudio.Player
}

func NewOutput(opts ...Option) *Output {
	o := &Output{sampleRate: DefaultSampleRate, gain: 0.8}
	for _, opt := range opts {
		opt(o)
	}
	o.mixer = NewMixer(o.sampleRate, o.gain)
	return o
}

// Open starts the audio stream.
func (o *Output) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		return nil
	}
	ctx, err := sharedAudioContext(o.sampleRate)
	if err != nil {
		return err
	}
	o.mixer.reset()
	pl, err := ctx.NewPlayerF32(NewStreamReader(o.mixer))
	if err != nil {
		return fmt.Errorf("cannot open audio output: %w", err)
	}
	if o.bufferSize > 0 {
		pl.SetBufferSize(o.bufferSize)
	}
	pl.Play()
	o.player = pl
	debug.Log("audio", "output open at %d Hz", o.sampleRate)
	return nil
}

// Now returns the position the listener hears, in seconds. It is zero
// before Open.
func (o *Output) Now() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return 0
	}
	return o.player.Position().Seconds()
}

func (o *Output) Schedule(ev transport.Event) { o.mixer.Schedule(ev) }

func (o *Output) CancelPending() {
	if n := o.mixer.Cancel(); n > 0 {
		debug.Log("audio", "cancelled %d pending events", n)
	}
}

// Mixer exposes the renderer, mainly for tests and offline rendering.
func (o *Output) Mixer() *Mixer { return o.mixer }

// Close stops and releases the player.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	o.player.Pause()
	err := o.player.Close()
	o.player = nil
	return err
}
