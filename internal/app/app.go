// Package app wires the dictation pipeline: trigger source, session
// controller, audio capture, transcription dispatch and text delivery.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxkey/voxkey/audiocapture"
	"github.com/voxkey/voxkey/config"
	"github.com/voxkey/voxkey/dispatch"
	"github.com/voxkey/voxkey/inject"
	"github.com/voxkey/voxkey/session"
	"github.com/voxkey/voxkey/stt"
	"github.com/voxkey/voxkey/trigger"
)

// App is the assembled daemon.
type App struct {
	cfg         *config.Config
	triggers    trigger.Source
	audioSource audiocapture.Source
	capture     *audiocapture.Capture
	controller  *session.Controller
	dispatcher  *dispatch.Dispatcher
	registry    *stt.Registry
}

// New resolves backends and builds the pipeline. The only unrecoverable
// conditions are an unusable configuration, no trigger input and no
// ready engine backend.
func New(cfg *config.Config) (*App, error) {
	mode, err := session.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	triggers, err := resolveTriggerSource(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := buildEngines(cfg)
	if err != nil {
		return nil, err
	}
	provider, err := registry.Resolve(cfg.Engine.Order)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}
	slog.Info("engine backend selected", "backend", provider.Name())

	sinkOpts := inject.Options{
		FocusDelay:     time.Duration(cfg.Inject.FocusDelayMS) * time.Millisecond,
		KeyDelayMS:     cfg.Inject.KeyDelayMS,
		AutoCapitalize: cfg.Inject.AutoCapitalize,
		AutoPunctuate:  cfg.Inject.AutoPunctuate,
		LeadingSpace:   cfg.Inject.LeadingSpace,
	}
	sink := &inject.Fallback{
		Primary:   inject.NewTyper(sinkOpts),
		Secondary: &inject.Clipboard{},
		Opts:      sinkOpts,
	}

	dispatcher := dispatch.New(provider, sink, dispatch.Options{
		Language:      cfg.Engine.Language,
		SilenceRMS:    float32(cfg.Engine.SilenceRMS),
		MaxConcurrent: cfg.MaxConcurrentJobs,
	})

	capture := audiocapture.New(cfg.SampleRate, cfg.Channels)
	controller := session.NewController(
		mode,
		time.Duration(cfg.DebounceMS)*time.Millisecond,
		capture,
		dispatcher,
	)

	return &App{
		cfg:         cfg,
		triggers:    triggers,
		audioSource: audiocapture.NewMalgoSource(),
		capture:     capture,
		controller:  controller,
		dispatcher:  dispatcher,
		registry:    registry,
	}, nil
}

// Run opens the microphone subscription and consumes trigger edges
// until the context is cancelled or every monitor has died. On signal
// shutdown outstanding transcription jobs are abandoned; when the
// monitors drain on their own, in-flight jobs are allowed to finish.
func (a *App) Run(ctx context.Context) error {
	if err := a.audioSource.Start(a.cfg.SampleRate, a.cfg.Channels, a.capture.OnFrame); err != nil {
		// Sessions still run, they just finalize empty. Recoverable by
		// restarting the daemon once the device is back.
		slog.Error("audio source unavailable, sessions will capture nothing", "error", err)
	} else {
		defer func() {
			if err := a.audioSource.Stop(); err != nil {
				slog.Error("stop audio source", "error", err)
			}
		}()
	}

	slog.Info("listening for trigger",
		"key", a.cfg.TriggerKey,
		"mode", a.cfg.Mode,
		"devices", len(a.triggers.Devices()))

	a.triggers.Run(ctx, a.controller.HandleEdge)

	if ctx.Err() == nil {
		// Every monitor died on its own, not a shutdown signal. Jobs
		// already dispatched still owe the user their text.
		slog.Warn("all trigger sources terminated, draining in-flight jobs")
		a.dispatcher.Wait()
	}
	return nil
}

// Close releases engine resources. In-flight jobs are abandoned.
func (a *App) Close() {
	if err := a.registry.Close(); err != nil {
		slog.Error("close engine registry", "error", err)
	}
}

// resolveTriggerSource picks the input backend once at startup.
// Order for "auto": evdev first, global hook second.
func resolveTriggerSource(cfg *config.Config) (trigger.Source, error) {
	switch cfg.TriggerBackend {
	case "evdev":
		return newEvdevSource(cfg)
	case "hook":
		return trigger.NewHookSource(cfg.HookRawcode), nil
	default: // auto
		src, err := newEvdevSource(cfg)
		if err == nil {
			return src, nil
		}
		slog.Warn("evdev backend unavailable, falling back to global hook", "error", err)
		return trigger.NewHookSource(cfg.HookRawcode), nil
	}
}

func newEvdevSource(cfg *config.Config) (trigger.Source, error) {
	src, err := trigger.NewEvdevSource(cfg.TriggerKey, cfg.DeviceDenylist)
	if err != nil {
		if errors.Is(err, trigger.ErrNoDevices) {
			slog.Error("no usable input devices; if devices exist, add your user to the input group: sudo usermod -a -G input $USER")
		}
		return nil, fmt.Errorf("evdev trigger source: %w", err)
	}
	return src, nil
}

// buildEngines registers every configured backend.
func buildEngines(cfg *config.Config) (*stt.Registry, error) {
	registry := stt.NewRegistry()

	local, err := stt.NewWhisperLocal(stt.WhisperLocalConfig{
		ModelSize: cfg.Engine.ModelSize,
		ModelDir:  cfg.Engine.ModelDir,
		Threads:   cfg.Engine.Threads,
	})
	if err != nil {
		slog.Error("init whisper-local", "error", err)
	} else {
		if !local.Ready() && cfg.Engine.AutoDownload {
			if err := local.Setup(); err != nil {
				slog.Error("whisper-local setup", "error", err)
			}
		}
		registry.Register(local)
		if !local.HasBinary() {
			slog.Warn("whisper-cli binary not found; install whisper.cpp to use the local backend")
		}
	}

	if cfg.Engine.APIKey != "" {
		registry.Register(stt.NewWhisperAPI(stt.WhisperAPIConfig{
			APIKey:  cfg.Engine.APIKey,
			BaseURL: cfg.Engine.APIBaseURL,
			Model:   cfg.Engine.APIModel,
		}))
	}

	return registry, nil
}
