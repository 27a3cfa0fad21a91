// Package session holds the single recording session state machine.
// All trigger edges, regardless of which device produced them, are
// evaluated through one serialization point here; no other component
// makes start/stop decisions.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxkey/voxkey/audiocapture"
	"github.com/voxkey/voxkey/trigger"
)

// State of the session. Transitions are strictly Idle → Recording → Idle.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Mode selects how trigger edges drive the session.
type Mode int

const (
	// ModeToggle alternates start/stop on each press; releases are ignored.
	ModeToggle Mode = iota
	// ModeHold records while the key is held on the originating device.
	ModeHold
)

// ParseMode parses the configuration value "hold" or "toggle".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "toggle", "":
		return ModeToggle, nil
	case "hold":
		return ModeHold, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want hold or toggle)", s)
	}
}

// DefaultDebounce suppresses duplicate transitions from key bounce and
// cross-device races.
const DefaultDebounce = 500 * time.Millisecond

// Recorder is the audio capture buffer the controller drives.
type Recorder interface {
	Start()
	Stop() *audiocapture.Buffer
}

// Dispatcher receives each finalized buffer exactly once.
type Dispatcher interface {
	Submit(buf *audiocapture.Buffer)
}

// Controller is the session state machine. HandleEdge is safe for
// concurrent use; a mutex serializes edge evaluation so no two edges are
// ever processed at once.
type Controller struct {
	mode     Mode
	debounce time.Duration
	recorder Recorder
	dispatch Dispatcher

	mu          sync.Mutex
	state       State
	sessionID   string
	origin      string
	startedAt   time.Time
	lastPress   time.Time // last accepted press transition
	lastRelease time.Time // last accepted release transition
}

// NewController creates a controller in the Idle state.
func NewController(mode Mode, debounce time.Duration, recorder Recorder, dispatch Dispatcher) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		mode:     mode,
		debounce: debounce,
		recorder: recorder,
		dispatch: dispatch,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleEdge applies one trigger edge to the state machine. Malformed or
// out-of-order edges, such as a release with no matching press, are
// benign races between device readers and are dropped without effect.
func (c *Controller) HandleEdge(e trigger.Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ModeToggle:
		c.handleToggle(e)
	case ModeHold:
		c.handleHold(e)
	}
}

func (c *Controller) handleToggle(e trigger.Edge) {
	if !e.Pressed {
		return
	}
	if c.debounced(&c.lastPress, e.Time) {
		return
	}
	if c.state == Idle {
		c.startLocked(e)
	} else {
		c.stopLocked(e)
	}
}

func (c *Controller) handleHold(e trigger.Edge) {
	if e.Pressed {
		if c.state == Recording {
			// Second press without an intervening release, typically the
			// same device's key repeat or another keyboard. No-op.
			return
		}
		if c.debounced(&c.lastPress, e.Time) {
			return
		}
		c.startLocked(e)
		return
	}

	if c.state != Recording || e.DeviceID != c.origin {
		return
	}
	if c.debounced(&c.lastRelease, e.Time) {
		return
	}
	c.stopLocked(e)
}

// debounced reports whether an edge of this polarity arrived within the
// debounce window of the last accepted transition, and records the edge
// time when it is accepted.
func (c *Controller) debounced(last *time.Time, at time.Time) bool {
	if !last.IsZero() && at.Sub(*last) < c.debounce {
		return true
	}
	*last = at
	return false
}

func (c *Controller) startLocked(e trigger.Edge) {
	c.state = Recording
	c.sessionID = uuid.NewString()
	c.origin = e.DeviceID
	c.startedAt = e.Time
	c.recorder.Start()
	slog.Info("recording started", "session", c.sessionID, "device", e.DeviceID, "mode", c.modeName())
}

func (c *Controller) stopLocked(e trigger.Edge) {
	c.state = Idle
	buf := c.recorder.Stop()
	if buf == nil {
		slog.Info("recording stopped with no audio", "session", c.sessionID)
		return
	}
	slog.Info("recording stopped",
		"session", c.sessionID,
		"device", e.DeviceID,
		"duration", buf.Duration().Round(time.Millisecond))
	c.dispatch.Submit(buf)
}

func (c *Controller) modeName() string {
	if c.mode == ModeHold {
		return "hold"
	}
	return "toggle"
}
