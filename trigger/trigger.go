// Package trigger turns raw keyboard input into normalized trigger edges.
//
// Two backends are supported: per-device evdev readers (the default on
// Linux) and a global keyboard hook used when no evdev device is
// accessible. The backend is resolved once at startup.
package trigger

import (
	"context"
	"errors"
	"time"
)

// ErrNoDevices is returned when discovery finds no usable input device.
// Without at least one physical device the system cannot function, so
// this is fatal at startup.
var ErrNoDevices = errors.New("no input devices expose the trigger key")

// Edge is a normalized press or release of the trigger key. Edges are
// produced by a backend and consumed exactly once by the session
// controller.
type Edge struct {
	DeviceID string
	Pressed  bool
	Time     time.Time
}

// Device describes a discovered input device. Immutable once enumerated.
type Device struct {
	ID   string // evdev node path, or "hook" for the global hook backend
	Path string
	Name string

	// Keys holds the EV_KEY capability codes reported at enumeration.
	Keys []uint16
}

// Source feeds trigger edges from an input backend. Run blocks until the
// context is cancelled or every reader has terminated; it never returns
// an error for individual device failures, those are logged and scoped
// to the failing reader.
type Source interface {
	Run(ctx context.Context, emit func(Edge))
	Devices() []Device
}
