package stt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// WhisperAPI transcribes through the OpenAI audio transcription
// endpoint, or any compatible server when a base URL is configured.
type WhisperAPI struct {
	client openai.Client
	model  string
	ready  bool
}

// WhisperAPIConfig holds configuration for the API backend.
type WhisperAPIConfig struct {
	APIKey  string
	BaseURL string // optional, defaults to the OpenAI API
	Model   string // optional, defaults to "whisper-1"
}

// NewWhisperAPI creates the API backend. It is ready whenever an API
// key is configured; the network is only touched per transcription.
func NewWhisperAPI(cfg WhisperAPIConfig) *WhisperAPI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(60 * time.Second),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	return &WhisperAPI{
		client: openai.NewClient(opts...),
		model:  model,
		ready:  cfg.APIKey != "",
	}
}

func (w *WhisperAPI) Name() string { return "whisper-api" }

func (w *WhisperAPI) Ready() bool { return w.ready }

// Transcribe uploads the samples as a WAV blob and returns the text.
func (w *WhisperAPI) Transcribe(audio []float32, sampleRate int, language string) (*Result, error) {
	if !w.ready {
		return nil, fmt.Errorf("whisper-api is not ready: API key required")
	}

	wav := wavFromFloat32(audio, sampleRate)

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	}
	// The API rejects "auto"; an absent field means auto-detect.
	if language != "" && language != "auto" {
		params.Language = openai.String(language)
	}

	resp, err := w.client.Audio.Transcriptions.New(context.Background(), params)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	return &Result{Text: resp.Text, Language: language}, nil
}

func (w *WhisperAPI) Close() error { return nil }
