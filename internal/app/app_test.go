package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voxkey/voxkey/audiocapture"
	"github.com/voxkey/voxkey/config"
	"github.com/voxkey/voxkey/dispatch"
	"github.com/voxkey/voxkey/session"
	"github.com/voxkey/voxkey/stt"
	"github.com/voxkey/voxkey/trigger"
)

func TestResolveTriggerSourceForcedHook(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.TriggerBackend = "hook"
	cfg.HookRawcode = 65508

	src, err := resolveTriggerSource(cfg)
	if err != nil {
		t.Fatalf("resolveTriggerSource: %v", err)
	}
	devices := src.Devices()
	if len(devices) != 1 || devices[0].ID != "hook" {
		t.Fatalf("devices = %v", devices)
	}
}

func TestBuildEnginesRegistersAPIWhenKeyed(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Engine.ModelDir = t.TempDir()
	cfg.Engine.APIKey = "sk-test"

	registry, err := buildEngines(cfg)
	if err != nil {
		t.Fatalf("buildEngines: %v", err)
	}
	defer registry.Close()

	if registry.Get("whisper-api") == nil {
		t.Fatal("expected whisper-api registered")
	}

	provider, err := registry.Resolve(cfg.Engine.Order)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// The local backend has no model in a fresh dir, so the API backend
	// wins the fallback.
	if provider.Name() != "whisper-api" {
		t.Fatalf("resolved = %s", provider.Name())
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Mode = "sideways"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected mode error")
	}
}

// deadTriggers models a source whose monitors have all terminated.
type deadTriggers struct{}

func (deadTriggers) Run(context.Context, func(trigger.Edge)) {}
func (deadTriggers) Devices() []trigger.Device               { return nil }

type fakeAudioSource struct{}

func (fakeAudioSource) Start(int, int, func([]float32)) error { return nil }
func (fakeAudioSource) Stop() error                           { return nil }

type slowProvider struct {
	delay time.Duration
}

func (slowProvider) Name() string { return "slow" }
func (slowProvider) Ready() bool  { return true }
func (slowProvider) Close() error { return nil }

func (p slowProvider) Transcribe(_ []float32, _ int, _ string) (*stt.Result, error) {
	time.Sleep(p.delay)
	return &stt.Result{Text: "still owed", Language: "en"}, nil
}

type recordSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordSink) Deliver(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

func TestRunDrainsJobsWhenMonitorsDie(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	sink := &recordSink{}
	dispatcher := dispatch.New(slowProvider{delay: 50 * time.Millisecond}, sink, dispatch.Options{})
	capture := audiocapture.New(cfg.SampleRate, cfg.Channels)

	a := &App{
		cfg:         cfg,
		triggers:    deadTriggers{},
		audioSource: fakeAudioSource{},
		capture:     capture,
		controller:  session.NewController(session.ModeToggle, time.Millisecond, capture, dispatcher),
		dispatcher:  dispatcher,
	}

	buf := &audiocapture.Buffer{
		Samples:    make([]float32, 1600),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}
	for i := range buf.Samples {
		buf.Samples[i] = 0.5
	}
	dispatcher.Submit(buf)

	// The source drains immediately without a cancelled context; Run
	// must not return until the in-flight job delivered its text.
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sink.delivered(); len(got) != 1 || got[0] != "still owed" {
		t.Fatalf("delivered = %v", got)
	}
}
