package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// WhisperLocal transcribes through the whisper.cpp CLI. It needs the
// whisper-cli binary on the system and a ggml model file on disk.
type WhisperLocal struct {
	modelSize string
	modelPath string
	binPath   string
	threads   int

	mu        sync.RWMutex
	ready     bool
	hasBinary bool
}

// WhisperLocalConfig holds configuration for the local backend.
type WhisperLocalConfig struct {
	ModelSize string // "tiny", "base", "small", "medium", "large"
	ModelDir  string // directory holding ggml model files
	BinPath   string // whisper-cli binary, discovered when empty
	Threads   int    // inference threads, 0 leaves the CLI default
}

var modelURLs = map[string]string{
	"tiny":   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
	"base":   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
	"small":  "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
	"medium": "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
	"large":  "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
}

// NewWhisperLocal creates the local backend and probes for the binary
// and model file.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = "small"
	}
	if _, ok := modelURLs[cfg.ModelSize]; !ok {
		return nil, fmt.Errorf("invalid model size: %s", cfg.ModelSize)
	}
	if cfg.ModelDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		cfg.ModelDir = filepath.Join(configDir, "voxkey", "models")
	}

	w := &WhisperLocal{
		modelSize: cfg.ModelSize,
		modelPath: filepath.Join(cfg.ModelDir, fmt.Sprintf("ggml-%s.bin", cfg.ModelSize)),
		binPath:   cfg.BinPath,
		threads:   cfg.Threads,
	}

	if w.binPath == "" {
		w.binPath = findWhisperBinary()
	}
	w.hasBinary = w.binPath != ""

	if _, err := os.Stat(w.modelPath); err == nil && w.hasBinary {
		w.ready = true
	}

	return w, nil
}

func (w *WhisperLocal) Name() string { return "whisper-local" }

func (w *WhisperLocal) Ready() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ready
}

// HasBinary reports whether a whisper-cli binary was found.
func (w *WhisperLocal) HasBinary() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hasBinary
}

// Setup downloads the model file when it is missing. The binary itself
// is never installed here, only reported.
func (w *WhisperLocal) Setup() error {
	if w.Ready() {
		return nil
	}
	if !w.HasBinary() {
		return fmt.Errorf("whisper-cli binary not found, install whisper.cpp first")
	}

	if err := os.MkdirAll(filepath.Dir(w.modelPath), 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := downloadFile(modelURLs[w.modelSize], w.modelPath); err != nil {
		return fmt.Errorf("download model %s: %w", w.modelSize, err)
	}

	w.mu.Lock()
	w.ready = true
	w.mu.Unlock()
	return nil
}

// Transcribe runs whisper-cli over a temp WAV file and parses its JSON
// output.
func (w *WhisperLocal) Transcribe(audio []float32, sampleRate int, language string) (*Result, error) {
	if !w.Ready() {
		return nil, fmt.Errorf("whisper-local is not ready: model not downloaded")
	}

	audioPath := filepath.Join(os.TempDir(), fmt.Sprintf("voxkey_%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(audioPath, wavFromFloat32(audio, sampleRate), 0600); err != nil {
		return nil, fmt.Errorf("write audio file: %w", err)
	}
	defer os.Remove(audioPath)

	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-oj",
		"--no-prints",
	}
	if w.threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.threads))
	}
	if language != "" && language != "auto" {
		args = append(args, "-l", language)
	}

	cmd := exec.Command(w.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper-cli failed: %w, stderr: %s", err, stderr.String())
	}

	return parseWhisperCppOutput(stdout.Bytes(), language)
}

func (w *WhisperLocal) Close() error { return nil }

// whisperCppOutput is the -oj JSON shape emitted by whisper-cli.
type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperCppOutput(data []byte, language string) (*Result, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		// Older builds print plain text despite -oj.
		return &Result{Text: string(data), Language: language}, nil
	}

	result := &Result{Language: out.Result.Language}
	for _, seg := range out.Transcription {
		result.Text += seg.Text
	}
	return result, nil
}

func findWhisperBinary() string {
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/usr/local/bin",
		"/usr/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

func downloadFile(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}

	tmpPath := dest + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	slog.Info("downloading whisper model", "url", url)
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
