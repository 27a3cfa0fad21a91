// Package inject delivers transcribed text to the focused window. The
// primary sink types through ydotool; a clipboard sink serves as the
// fallback when typing is unavailable. Formatting is applied once
// before routing, so every sink receives the same text. Delivery is
// fire-and-forget: failures are logged by the caller and never
// propagate upstream.
package inject

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Sink accepts a UTF-8 string for delivery.
type Sink interface {
	Deliver(text string) error
}

// Options controls text formatting and typing cadence.
type Options struct {
	FocusDelay     time.Duration // settle time before typing starts
	KeyDelayMS     int           // delay between keystrokes, prevents drops
	AutoCapitalize bool
	AutoPunctuate  bool
	LeadingSpace   bool
}

// DefaultOptions matches comfortable dictation into most editors.
func DefaultOptions() Options {
	return Options{
		FocusDelay:     50 * time.Millisecond,
		KeyDelayMS:     12,
		AutoCapitalize: true,
		AutoPunctuate:  true,
		LeadingSpace:   true,
	}
}

// Format applies the configured cleanup to raw transcript text.
func Format(text string, opts Options) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if opts.AutoCapitalize {
		r, size := utf8.DecodeRuneInString(text)
		if unicode.IsLower(r) {
			text = string(unicode.ToUpper(r)) + text[size:]
		}
	}

	if opts.AutoPunctuate {
		last, _ := utf8.DecodeLastRuneInString(text)
		switch last {
		case '.', '!', '?':
		default:
			text += "."
		}
	}

	if opts.LeadingSpace {
		text = " " + text
	}

	return text
}

// Typer types text directly via ydotool.
type Typer struct {
	opts Options
}

// NewTyper creates the typing sink.
func NewTyper(opts Options) *Typer {
	return &Typer{opts: opts}
}

// Deliver types the text as given. The command is bounded by a timeout
// so a wedged injector daemon cannot hold the job forever.
func (t *Typer) Deliver(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if t.opts.FocusDelay > 0 {
		time.Sleep(t.opts.FocusDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ydotool", "type",
		"--key-delay", strconv.Itoa(t.opts.KeyDelayMS), text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ydotool type: %w: %s", err, strings.TrimSpace(string(out)))
	}

	slog.Info("typed transcript", "chars", len(text))
	return nil
}

// Clipboard copies text instead of typing it. Tries wl-copy first,
// then xclip for X11 sessions.
type Clipboard struct{}

// Deliver copies the text as given to the system clipboard.
func (c *Clipboard) Deliver(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var lastErr error
	for _, tool := range [][]string{
		{"wl-copy"},
		{"xclip", "-selection", "clipboard"},
	} {
		cmd := exec.CommandContext(ctx, tool[0], tool[1:]...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			lastErr = fmt.Errorf("%s: %w", tool[0], err)
			continue
		}
		slog.Info("copied transcript to clipboard", "tool", tool[0], "chars", len(text))
		return nil
	}
	return fmt.Errorf("no clipboard tool succeeded: %w", lastErr)
}

// Fallback formats text once and tries the primary sink, falling back
// to the secondary on failure, so both paths deliver the same bytes.
// Only the secondary's error is returned.
type Fallback struct {
	Primary   Sink
	Secondary Sink
	Opts      Options
}

// Deliver formats the text and routes it through the primary sink,
// then the secondary.
func (f *Fallback) Deliver(text string) error {
	text = Format(text, f.Opts)
	if text == "" {
		return nil
	}

	err := f.Primary.Deliver(text)
	if err == nil {
		return nil
	}
	if f.Secondary == nil {
		return err
	}
	slog.Warn("primary text sink failed, using fallback", "error", err)
	return f.Secondary.Deliver(text)
}
