package audiocapture

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestStopWithoutFramesReturnsNil(t *testing.T) {
	t.Parallel()

	c := New(16000, 1)
	c.Start()
	if buf := c.Stop(); buf != nil {
		t.Fatalf("expected nil buffer, got %d samples", len(buf.Samples))
	}
}

func TestFramesDiscardedWhileIdle(t *testing.T) {
	t.Parallel()

	c := New(16000, 1)
	c.OnFrame([]float32{0.1, 0.2})
	c.Start()
	c.OnFrame([]float32{0.3})
	buf := c.Stop()
	if buf == nil {
		t.Fatal("expected buffer")
	}
	if len(buf.Samples) != 1 || buf.Samples[0] != 0.3 {
		t.Fatalf("idle frames leaked into buffer: %v", buf.Samples)
	}

	// Frames after stop are discarded too.
	c.OnFrame([]float32{0.9})
	c.Start()
	if buf := c.Stop(); buf != nil {
		t.Fatalf("expected nil buffer after restart, got %v", buf.Samples)
	}
}

func TestStopConcatenatesInArrivalOrder(t *testing.T) {
	t.Parallel()

	c := New(16000, 1)
	c.Start()
	c.OnFrame([]float32{1, 2})
	c.OnFrame([]float32{3})
	c.OnFrame([]float32{4, 5, 6})
	buf := c.Stop()
	if buf == nil {
		t.Fatal("expected buffer")
	}

	want := []float32{1, 2, 3, 4, 5, 6}
	if len(buf.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(want))
	}
	for i, s := range want {
		if buf.Samples[i] != s {
			t.Fatalf("sample %d = %v, want %v", i, buf.Samples[i], s)
		}
	}
}

func TestStartClearsPreviousAccumulation(t *testing.T) {
	t.Parallel()

	c := New(16000, 1)
	c.Start()
	c.OnFrame([]float32{1})
	c.Start()
	c.OnFrame([]float32{2})
	buf := c.Stop()
	if buf == nil || len(buf.Samples) != 1 || buf.Samples[0] != 2 {
		t.Fatalf("expected only the second frame, got %+v", buf)
	}
}

func TestFrameIsCopiedNotAliased(t *testing.T) {
	t.Parallel()

	c := New(16000, 1)
	c.Start()
	frame := []float32{0.5}
	c.OnFrame(frame)
	frame[0] = -0.5
	buf := c.Stop()
	if buf.Samples[0] != 0.5 {
		t.Fatalf("buffer aliases caller frame: %v", buf.Samples[0])
	}
}

func TestBufferDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		samples  int
		rate     int
		channels int
		want     time.Duration
	}{
		{"one_second_mono", 16000, 16000, 1, time.Second},
		{"half_second_mono", 8000, 16000, 1, 500 * time.Millisecond},
		{"one_second_stereo", 96000, 48000, 2, time.Second},
		{"empty", 0, 16000, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &Buffer{
				Samples:    make([]float32, tt.samples),
				SampleRate: tt.rate,
				Channels:   tt.channels,
			}
			if got := buf.Duration(); got != tt.want {
				t.Fatalf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPCM16QuantizationTruncatesAndClamps(t *testing.T) {
	t.Parallel()

	buf := &Buffer{
		Samples:    []float32{0, 1.0, -1.0, 2.0, -2.0, 0.5},
		SampleRate: 16000,
		Channels:   1,
	}
	got := buf.PCM16()
	want := []int16{0, 32767, -32767, 32767, -32767, 16383}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PCM16()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	buf := &Buffer{Samples: []float32{0.5, -0.5, 0.5, -0.5}}
	if got := buf.RMS(); math.Abs(float64(got)-0.5) > 1e-6 {
		t.Fatalf("RMS() = %v, want 0.5", got)
	}

	empty := &Buffer{}
	if got := empty.RMS(); got != 0 {
		t.Fatalf("RMS() on empty buffer = %v, want 0", got)
	}
}

func TestDecodeF32LE(t *testing.T) {
	t.Parallel()

	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(-1.0))

	got := decodeF32LE(data, 2)
	if got[0] != 0.25 || got[1] != -1.0 {
		t.Fatalf("decodeF32LE = %v", got)
	}

	// Sample count beyond the byte slice is clipped, not read out of range.
	if got := decodeF32LE(data, 5); len(got) != 2 {
		t.Fatalf("expected clipped decode, got %d samples", len(got))
	}
}
