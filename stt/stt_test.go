package stt

import (
	"encoding/binary"
	"errors"
	"testing"
)

type fakeProvider struct {
	name   string
	ready  bool
	closed bool
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Ready() bool  { return f.ready }
func (f *fakeProvider) Transcribe(_ []float32, _ int, _ string) (*Result, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func TestResolveFallbackOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ready   map[string]bool
		order   []string
		want    string
		wantErr bool
	}{
		{
			name:  "preferred_ready",
			ready: map[string]bool{"whisper-local": true, "whisper-api": true},
			order: []string{"whisper-local", "whisper-api"},
			want:  "whisper-local",
		},
		{
			name:  "falls_back_when_preferred_not_ready",
			ready: map[string]bool{"whisper-local": false, "whisper-api": true},
			order: []string{"whisper-local", "whisper-api"},
			want:  "whisper-api",
		},
		{
			name:  "unknown_backend_skipped",
			ready: map[string]bool{"whisper-api": true},
			order: []string{"no-such-engine", "whisper-api"},
			want:  "whisper-api",
		},
		{
			name:    "nothing_ready",
			ready:   map[string]bool{"whisper-local": false},
			order:   []string{"whisper-local"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for name, ready := range tt.ready {
				r.Register(&fakeProvider{name: name, ready: ready})
			}

			p, err := r.Resolve(tt.order)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected resolution error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if p.Name() != tt.want {
				t.Fatalf("resolved %s, want %s", p.Name(), tt.want)
			}
		})
	}
}

func TestRegistryCloseClosesAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	r.Register(a)
	r.Register(b)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("expected all providers closed")
	}
}

func TestWavFromFloat32Header(t *testing.T) {
	t.Parallel()

	samples := []float32{0, 0.5, -0.5, 2.0}
	wav := wavFromFloat32(samples, 16000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("wav length = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d", rate)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Fatalf("bits per sample = %d", bits)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(samples)*2) {
		t.Fatalf("data size = %d", size)
	}

	// Out-of-range input is clamped, not wrapped.
	last := int16(binary.LittleEndian.Uint16(wav[44+3*2:]))
	if last != 32767 {
		t.Fatalf("clamped sample = %d, want 32767", last)
	}
}

func TestWavFromFloat32EncodesGivenRate(t *testing.T) {
	t.Parallel()

	wav := wavFromFloat32(make([]float32, 8), 48000)
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 48000 {
		t.Fatalf("sample rate = %d, want 48000", rate)
	}
	if byteRate := binary.LittleEndian.Uint32(wav[28:32]); byteRate != 96000 {
		t.Fatalf("byte rate = %d, want 96000", byteRate)
	}
}

func TestParseWhisperCppOutput(t *testing.T) {
	t.Parallel()

	jsonOut := []byte(`{
		"result": {"language": "en"},
		"transcription": [
			{"text": "hello"},
			{"text": " world"}
		]
	}`)
	res, err := parseWhisperCppOutput(jsonOut, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Text != "hello world" || res.Language != "en" {
		t.Fatalf("unexpected result: %+v", res)
	}

	// Plain text fallback for builds that ignore -oj.
	res, err = parseWhisperCppOutput([]byte("just text"), "de")
	if err != nil {
		t.Fatalf("parse plain: %v", err)
	}
	if res.Text != "just text" || res.Language != "de" {
		t.Fatalf("unexpected fallback result: %+v", res)
	}
}
