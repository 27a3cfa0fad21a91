package audiocapture

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures microphone input through miniaudio. Frames are
// delivered as float32 samples in [-1, 1] on the audio thread.
type MalgoSource struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoSource creates an uninitialized microphone source. The audio
// backend is only opened on Start.
func NewMalgoSource() *MalgoSource {
	return &MalgoSource{}
}

// Start opens the default capture device and begins frame delivery.
func (s *MalgoSource) Start(sampleRate, channels int, onFrame func(samples []float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return fmt.Errorf("audio source already started")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			onFrame(decodeF32LE(input, int(frameCount)*channels))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start capture device: %w", err)
	}

	s.ctx = ctx
	s.device = device
	return nil
}

// Stop closes the capture device and releases the audio backend.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil
	}

	s.device.Uninit()
	s.device = nil

	err := s.ctx.Uninit()
	s.ctx.Free()
	s.ctx = nil
	if err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	return nil
}

// decodeF32LE reinterprets little-endian float32 PCM bytes as samples.
func decodeF32LE(data []byte, samples int) []float32 {
	if max := len(data) / 4; samples > max {
		samples = max
	}
	out := make([]float32, samples)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
