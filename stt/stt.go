// Package stt provides the speech-to-text engine boundary and its
// implementations. Engines consume mono PCM float32 samples and return
// plain text; everything upstream treats them as an opaque
// audio-to-text call with a failure mode.
package stt

import (
	"fmt"
	"log/slog"
)

// Result is a completed transcription.
type Result struct {
	Text     string // transcribed text, not yet trimmed
	Language string // detected language code, empty if unreported
}

// Provider is a speech-to-text engine backend.
type Provider interface {
	// Name returns the backend identifier.
	Name() string

	// Ready reports whether the backend can transcribe right now.
	Ready() bool

	// Transcribe converts audio samples to text.
	// audio: PCM float32 samples in [-1, 1]
	// sampleRate: sample rate of audio in Hz
	// language: source language code, empty for auto-detect
	Transcribe(audio []float32, sampleRate int, language string) (*Result, error)

	// Close releases resources held by the backend.
	Close() error
}

// Registry holds the registered engine backends.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a backend to the registry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns a backend by name, nil if absent.
func (r *Registry) Get(name string) Provider {
	return r.providers[name]
}

// Close releases all backends.
func (r *Registry) Close() error {
	var firstErr error
	for _, p := range r.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Resolve picks the engine backend once at startup: the first ready
// provider in the given order wins, and any skip is logged. The order is
// explicit configuration, there is no runtime backend substitution after
// this point.
func (r *Registry) Resolve(order []string) (Provider, error) {
	for _, name := range order {
		p := r.providers[name]
		if p == nil {
			slog.Warn("unknown engine backend in fallback order", "backend", name)
			continue
		}
		if !p.Ready() {
			slog.Warn("engine backend not ready, trying next", "backend", name)
			continue
		}
		if name != order[0] {
			slog.Info("falling back to engine backend", "backend", name, "preferred", order[0])
		}
		return p, nil
	}
	return nil, fmt.Errorf("no ready engine backend in order %v", order)
}
