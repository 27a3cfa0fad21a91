// Package audiocapture accumulates microphone frames while a recording
// session is active and finalizes them into an immutable sample buffer.
package audiocapture

import (
	"math"
	"sync"
	"time"
)

// Source delivers microphone frames via a callback on its own cadence.
// The subscription stays open for the process lifetime; frames arriving
// outside a recording session are discarded by the Capture.
type Source interface {
	Start(sampleRate, channels int, onFrame func(samples []float32)) error
	Stop() error
}

// Buffer is a finalized recording: samples in arrival order plus format.
// It is immutable after Stop returns it.
type Buffer struct {
	Samples    []float32 // normalized to [-1, 1]
	SampleRate int
	Channels   int
}

// Duration returns the buffer length as wall-clock time.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// PCM16 returns the samples quantized to 16-bit signed PCM.
// Values are clamped to [-1, 1] and truncated, matching what integer-PCM
// engines expect.
func (b *Buffer) PCM16() []int16 {
	out := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// RMS returns the root mean square of the samples, used by the
// dispatcher's silence gate.
func (b *Buffer) RMS() float32 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(b.Samples))))
}

// Capture owns frame accumulation for the current session.
//
// OnFrame runs on the audio source's delivery goroutine and must never
// block; it only copies the frame and appends under a short mutex.
type Capture struct {
	sampleRate int
	channels   int

	mu     sync.Mutex
	active bool
	frames [][]float32
}

// New creates a Capture for the given format.
func New(sampleRate, channels int) *Capture {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if channels == 0 {
		channels = 1
	}
	return &Capture{
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// OnFrame appends a frame to the active accumulation buffer. Frames
// arriving while no session is recording are discarded.
func (c *Capture) OnFrame(samples []float32) {
	if len(samples) == 0 {
		return
	}
	frame := make([]float32, len(samples))
	copy(frame, samples)

	c.mu.Lock()
	if c.active {
		c.frames = append(c.frames, frame)
	}
	c.mu.Unlock()
}

// Start clears any previous accumulation and marks capture active.
func (c *Capture) Start() {
	c.mu.Lock()
	c.active = true
	c.frames = nil
	c.mu.Unlock()
}

// Stop marks capture inactive and concatenates the accumulated frames in
// arrival order. It returns nil when no frames were captured, e.g. a
// session shorter than one delivery interval.
func (c *Capture) Stop() *Buffer {
	c.mu.Lock()
	frames := c.frames
	c.active = false
	c.frames = nil
	c.mu.Unlock()

	if len(frames) == 0 {
		return nil
	}

	total := 0
	for _, f := range frames {
		total += len(f)
	}
	samples := make([]float32, 0, total)
	for _, f := range frames {
		samples = append(samples, f...)
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: c.sampleRate,
		Channels:   c.channels,
	}
}

// Active reports whether frames are currently being accumulated.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SampleRate returns the configured sample rate.
func (c *Capture) SampleRate() int {
	return c.sampleRate
}
