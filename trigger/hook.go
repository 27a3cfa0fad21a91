package trigger

import (
	"context"
	"log/slog"

	hook "github.com/robotn/gohook"
)

// hookDeviceID identifies edges from the global hook backend. The hook
// cannot distinguish physical keyboards, so all edges share one id.
const hookDeviceID = "hook"

// HookSource emits trigger edges from a global keyboard hook. It is the
// fallback backend for setups where evdev nodes are not readable, e.g.
// the user is not in the input group.
type HookSource struct {
	rawcode uint16
}

// NewHookSource creates a hook source for the given platform rawcode.
func NewHookSource(rawcode uint16) *HookSource {
	return &HookSource{rawcode: rawcode}
}

// Devices returns the single synthetic hook device.
func (s *HookSource) Devices() []Device {
	return []Device{{ID: hookDeviceID, Name: "global keyboard hook"}}
}

// Run consumes hook events until the context is cancelled. Key events
// whose rawcode does not match the trigger are ignored; autorepeat
// arrives as KeyHold and is dropped.
func (s *HookSource) Run(ctx context.Context, emit func(Edge)) {
	events := hook.Start()
	defer hook.End()

	slog.Info("monitoring global keyboard hook", "rawcode", s.rawcode)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				slog.Error("keyboard hook channel closed")
				return
			}
			if ev.Rawcode != s.rawcode {
				continue
			}
			switch ev.Kind {
			case hook.KeyDown:
				emit(Edge{DeviceID: hookDeviceID, Pressed: true, Time: ev.When})
			case hook.KeyUp:
				emit(Edge{DeviceID: hookDeviceID, Pressed: false, Time: ev.When})
			}
		}
	}
}
