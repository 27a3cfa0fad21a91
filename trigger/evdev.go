package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/holoplot/go-evdev"
)

// EvdevSource reads trigger edges from every discovered evdev device,
// one blocking reader goroutine per device.
type EvdevSource struct {
	key     evdev.EvCode
	devices []Device
}

// NewEvdevSource enumerates input devices and keeps those exposing the
// trigger key, excluding any whose name contains a denylist substring
// (case-insensitive). Virtual and security-token devices spuriously
// report keyboard capabilities, hence the denylist.
func NewEvdevSource(keyName string, denylist []string) (*EvdevSource, error) {
	key, ok := KeyCodeByName(keyName)
	if !ok {
		return nil, fmt.Errorf("unknown trigger key %q", keyName)
	}

	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	var devices []Device
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			slog.Debug("skip unreadable input device", "path", p.Path, "error", err)
			continue
		}

		name, err := dev.Name()
		if err != nil || name == "" {
			name = p.Name
		}
		keys := keyCapabilities(dev)
		_ = dev.Close()

		if !matchDevice(name, keys, key, denylist) {
			continue
		}

		devices = append(devices, Device{
			ID:   p.Path,
			Path: p.Path,
			Name: name,
			Keys: codesToUint16(keys),
		})
		slog.Info("found trigger device", "name", name, "path", p.Path)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	return &EvdevSource{key: key, devices: devices}, nil
}

// Devices returns the devices kept by discovery.
func (s *EvdevSource) Devices() []Device {
	return s.devices
}

// Run starts one monitor per device and blocks until the context is
// cancelled or every monitor has terminated. A read error ends only the
// failing monitor.
func (s *EvdevSource) Run(ctx context.Context, emit func(Edge)) {
	var wg sync.WaitGroup
	for _, d := range s.devices {
		wg.Add(1)
		go func(d Device) {
			defer wg.Done()
			s.monitor(ctx, d, emit)
		}(d)
	}
	wg.Wait()
	slog.Warn("all trigger monitors terminated")
}

func (s *EvdevSource) monitor(ctx context.Context, d Device, emit func(Edge)) {
	dev, err := evdev.Open(d.Path)
	if err != nil {
		slog.Error("open trigger device", "name", d.Name, "path", d.Path, "error", err)
		return
	}
	defer dev.Close()

	// Unblock ReadOne when the context ends by closing the device.
	stop := context.AfterFunc(ctx, func() { _ = dev.Close() })
	defer stop()

	slog.Info("monitoring trigger device", "name", d.Name, "path", d.Path)

	for {
		ev, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("trigger device read failed", "name", d.Name, "error", err)
			return
		}
		edge, ok := normalizeEvent(d.ID, s.key, ev)
		if !ok {
			continue
		}
		emit(edge)
	}
}

// normalizeEvent converts a raw input event into a trigger edge. Events
// for other keys, non-key events, and autorepeat are dropped.
func normalizeEvent(deviceID string, key evdev.EvCode, ev *evdev.InputEvent) (Edge, bool) {
	if ev == nil || ev.Type != evdev.EV_KEY || ev.Code != key {
		return Edge{}, false
	}

	var pressed bool
	switch ev.Value {
	case 1:
		pressed = true
	case 0:
		pressed = false
	default:
		// Autorepeat (value 2) carries no new information.
		return Edge{}, false
	}

	ts := time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*1000)
	if ev.Time.Sec == 0 && ev.Time.Usec == 0 {
		ts = time.Now()
	}

	return Edge{DeviceID: deviceID, Pressed: pressed, Time: ts}, true
}

// matchDevice reports whether a device with the given name and EV_KEY
// capabilities should be monitored.
func matchDevice(name string, keys []evdev.EvCode, trigger evdev.EvCode, denylist []string) bool {
	lower := strings.ToLower(name)
	for _, deny := range denylist {
		if deny != "" && strings.Contains(lower, strings.ToLower(deny)) {
			slog.Info("skipping denylisted device", "name", name)
			return false
		}
	}
	for _, k := range keys {
		if k == trigger {
			return true
		}
	}
	return false
}

func keyCapabilities(dev *evdev.InputDevice) []evdev.EvCode {
	for _, t := range dev.CapableTypes() {
		if t == evdev.EV_KEY {
			return dev.CapableEvents(t)
		}
	}
	return nil
}

// KeyCodeByName resolves an evdev key name such as "KEY_RIGHTCTRL" to
// its code.
func KeyCodeByName(name string) (evdev.EvCode, bool) {
	for code := evdev.EvCode(0); code <= evdev.EvCode(evdev.KEY_MAX); code++ {
		if evdev.CodeName(evdev.EV_KEY, code) == name {
			return code, true
		}
	}
	return 0, false
}

func codesToUint16(codes []evdev.EvCode) []uint16 {
	out := make([]uint16, len(codes))
	for i, c := range codes {
		out[i] = uint16(c)
	}
	return out
}
