// Package config handles daemon configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName        = "voxkey"
	configFileName = "config.json"
)

// Config is the daemon configuration. Unset fields fall back to the
// defaults in Default.
type Config struct {
	// TriggerKey is the evdev key name whose edges drive recording.
	TriggerKey string `json:"trigger_key"`

	// TriggerBackend selects the input backend: "auto" tries evdev and
	// falls back to the global hook, "evdev" and "hook" force one.
	TriggerBackend string `json:"trigger_backend"`

	// HookRawcode is the platform rawcode the hook backend matches.
	// 65508 is Control_R under X11/XWayland.
	HookRawcode uint16 `json:"hook_rawcode"`

	// Mode is "toggle" or "hold".
	Mode string `json:"mode"`

	// DebounceMS suppresses same-polarity transitions closer together
	// than this many milliseconds.
	DebounceMS int `json:"debounce_ms"`

	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`

	// DeviceDenylist excludes devices whose name contains any of these
	// substrings, case-insensitive.
	DeviceDenylist []string `json:"device_denylist"`

	// MaxConcurrentJobs caps in-flight transcriptions. 0 is unbounded.
	MaxConcurrentJobs int `json:"max_concurrent_jobs"`

	Engine EngineConfig `json:"engine"`
	Inject InjectConfig `json:"inject"`
}

// EngineConfig configures the transcription engine backends.
type EngineConfig struct {
	// Order is the backend fallback order resolved once at startup.
	Order []string `json:"order"`

	ModelSize string `json:"model_size"`
	ModelDir  string `json:"model_dir,omitempty"`
	Language  string `json:"language"`
	Threads   int    `json:"threads"`

	// SilenceRMS drops recordings quieter than this RMS before the
	// engine runs. 0 disables the gate.
	SilenceRMS float64 `json:"silence_rms"`

	// AutoDownload lets the local backend fetch its model at startup.
	AutoDownload bool `json:"auto_download_model"`

	APIKey     string `json:"api_key,omitempty"`
	APIBaseURL string `json:"api_base_url,omitempty"`
	APIModel   string `json:"api_model,omitempty"`
}

// InjectConfig configures text delivery.
type InjectConfig struct {
	FocusDelayMS   int  `json:"focus_delay_ms"`
	KeyDelayMS     int  `json:"key_delay_ms"`
	AutoCapitalize bool `json:"auto_capitalize"`
	AutoPunctuate  bool `json:"auto_punctuate"`
	LeadingSpace   bool `json:"add_space_before"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TriggerKey:     "KEY_RIGHTCTRL",
		TriggerBackend: "auto",
		HookRawcode:    65508,
		Mode:           "toggle",
		DebounceMS:     500,
		SampleRate:     16000,
		Channels:       1,
		DeviceDenylist: []string{"virtual", "yubikey", "ydotoold"},
		Engine: EngineConfig{
			Order:      []string{"whisper-local", "whisper-api"},
			ModelSize:  "small",
			Language:   "en",
			Threads:    8,
			SilenceRMS: 0.01,
		},
		Inject: InjectConfig{
			FocusDelayMS:   50,
			KeyDelayMS:     12,
			AutoCapitalize: true,
			AutoPunctuate:  true,
			LeadingSpace:   true,
		},
	}
}

// Load reads the configuration from the user config dir, returning
// defaults when no file exists.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path. Absent keys keep
// their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// Save persists the configuration to the user config dir.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveTo(path)
}

// SaveTo persists the configuration to an explicit path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// normalize clamps invalid values back to defaults.
func (c *Config) normalize() {
	def := Default()
	if c.TriggerKey == "" {
		c.TriggerKey = def.TriggerKey
	}
	switch c.TriggerBackend {
	case "auto", "evdev", "hook":
	default:
		c.TriggerBackend = def.TriggerBackend
	}
	if c.DebounceMS <= 0 {
		c.DebounceMS = def.DebounceMS
	}
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = def.Channels
	}
	if c.MaxConcurrentJobs < 0 {
		c.MaxConcurrentJobs = 0
	}
	if len(c.Engine.Order) == 0 {
		c.Engine.Order = def.Engine.Order
	}
	if c.Engine.SilenceRMS < 0 {
		c.Engine.SilenceRMS = 0
	}
}
