// Package dispatch runs transcription jobs independently of the
// recording pipeline, so a new session can start while earlier
// transcriptions are still in flight.
package dispatch

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxkey/voxkey/audiocapture"
	"github.com/voxkey/voxkey/inject"
	"github.com/voxkey/voxkey/langdetect"
	"github.com/voxkey/voxkey/stt"
)

// Options tunes dispatch behavior.
type Options struct {
	// Language is the hint passed to the engine, empty for auto-detect.
	Language string

	// SilenceRMS drops buffers quieter than this RMS before the engine
	// is invoked. Zero disables the gate.
	SilenceRMS float32

	// MaxConcurrent caps in-flight jobs. Zero means unbounded, which is
	// the default behavior.
	MaxConcurrent int
}

// Dispatcher owns each finalized buffer from the moment it is submitted.
// Jobs run to completion or failure; there is no cancellation.
type Dispatcher struct {
	provider stt.Provider
	sink     inject.Sink
	opts     Options
	sem      chan struct{}
	wg       sync.WaitGroup
}

// New creates a dispatcher bound to one engine backend and one sink.
func New(provider stt.Provider, sink inject.Sink, opts Options) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		sink:     sink,
		opts:     opts,
	}
	if opts.MaxConcurrent > 0 {
		d.sem = make(chan struct{}, opts.MaxConcurrent)
	}
	return d
}

// Submit schedules transcription of a finalized buffer and returns
// immediately. Engine and sink failures are contained to the job.
func (d *Dispatcher) Submit(buf *audiocapture.Buffer) {
	job := struct {
		id         string
		dispatched time.Time
	}{uuid.NewString(), time.Now()}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if d.sem != nil {
			d.sem <- struct{}{}
			defer func() { <-d.sem }()
		}
		d.run(job.id, job.dispatched, buf)
	}()
}

// Wait blocks until all submitted jobs have finished. Shutdown does not
// call this; it exists for tests and callers that want drainage.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(id string, dispatched time.Time, buf *audiocapture.Buffer) {
	log := slog.With("job", id)

	if d.opts.SilenceRMS > 0 && buf.RMS() < d.opts.SilenceRMS {
		log.Info("dropping silent buffer", "rms", buf.RMS(), "duration", buf.Duration().Round(time.Millisecond))
		return
	}

	log.Info("transcribing", "duration", buf.Duration().Round(time.Millisecond), "engine", d.provider.Name())

	res, err := d.provider.Transcribe(buf.Samples, buf.SampleRate, d.opts.Language)
	if err != nil {
		log.Error("transcription failed", "error", err)
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		log.Warn("no text transcribed")
		return
	}

	lang := res.Language
	if lang == "" || lang == langdetect.Undetermined {
		lang, _ = langdetect.Detect(text)
	}
	log.Info("transcribed",
		"chars", len(text),
		"language", lang,
		"elapsed", time.Since(dispatched).Round(time.Millisecond))

	if err := d.sink.Deliver(text); err != nil {
		log.Error("deliver transcript", "error", err)
	}
}
