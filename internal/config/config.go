package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/menta2k/photo-translator/pkg/camera"
	"github.com/menta2k/photo-translator/pkg/translation"
	"github.com/menta2k/photo-translator/pkg/types"
)

// MasterKeyEnv overrides the master key of the selected language pair
const MasterKeyEnv = "TRANSLATOR_MASTER_KEY"

// Config holds the application configuration
type Config struct {
	Camera      CameraConfig               `json:"camera"`
	Adjust      types.AdjustmentParameters `json:"adjust"`
	Recognizer  RecognizerConfig           `json:"recognizer"`
	Translation TranslationConfig          `json:"translation"`
	Server      ServerConfig               `json:"server"`
	Output      OutputConfig               `json:"output"`
	LogLevel    string                     `json:"log_level"`
}

// CameraConfig selects and opens the camera
type CameraConfig struct {
	// Device is an OpenCV device index or a video path/URL
	Device           string          `json:"device"`
	PreferRearFacing bool            `json:"prefer_rear_facing"`
	MinWidth         int             `json:"min_width"`
	MinHeight        int             `json:"min_height"`
	SettleIntervalMs int             `json:"settle_interval_ms"`
	SettleTimeoutMs  int             `json:"settle_timeout_ms"`
	Sources          []camera.Source `json:"sources,omitempty"`
}

// RecognizerConfig selects the OCR backend
type RecognizerConfig struct {
	Backend     string   `json:"backend"`
	Languages   []string `json:"languages"`
	Model       string   `json:"model"`
	URL         string   `json:"url"`
	SendSize    int      `json:"send_size"`
	SendQuality int      `json:"send_quality"`
}

// PairConfig is one configured translation direction
type PairConfig struct {
	Model     string `json:"model"`
	Endpoint  string `json:"endpoint"`
	MasterKey string `json:"master_key"`
	Relay     string `json:"relay,omitempty"`
}

// TranslationConfig configures the remote translation service
type TranslationConfig struct {
	Pairs map[string]PairConfig `json:"pairs"`
	// Pair is the selected entry of Pairs; empty disables translation
	Pair             string `json:"pair"`
	PollIntervalMs   int    `json:"poll_interval_ms"`
	MaxWaitMs        int    `json:"max_wait_ms"`
	RequestTimeoutMs int    `json:"request_timeout_ms"`
}

// ServerConfig configures the web interface
type ServerConfig struct {
	Port      string `json:"port"`
	StaticDir string `json:"static_dir,omitempty"`
}

// OutputConfig holds configuration for exported images
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
	Quality       int    `json:"quality"`
}

// Default returns a configuration with default values.
// Language pairs carry their model names only; endpoints and keys must be configured.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Device:           "0",
			PreferRearFacing: true,
			MinWidth:         camera.DefaultMinWidth,
			MinHeight:        camera.DefaultMinHeight,
			SettleIntervalMs: int(camera.DefaultSettleInterval / time.Millisecond),
		},
		Adjust: types.DefaultAdjustments(),
		Recognizer: RecognizerConfig{
			Backend:     "tesseract",
			Languages:   []string{"eus", "spa"},
			SendSize:    1024,
			SendQuality: 90,
		},
		Translation: TranslationConfig{
			Pairs: map[string]PairConfig{
				"eu2es": {Model: "generic_eu2es"},
				"es2eu": {Model: "generic_es2eu"},
			},
			PollIntervalMs: int(translation.DefaultPollInterval / time.Millisecond),
		},
		Server: ServerConfig{
			Port: "8090",
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			OutputDir:     "./output",
			Quality:       90,
		},
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// may contain master keys
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Camera.MinWidth < 0 || c.Camera.MinHeight < 0 {
		return fmt.Errorf("camera.min_width and camera.min_height must not be negative")
	}
	if c.Camera.SettleIntervalMs < 1 {
		return fmt.Errorf("camera.settle_interval_ms must be positive")
	}
	if c.Camera.SettleTimeoutMs < 0 {
		return fmt.Errorf("camera.settle_timeout_ms must not be negative")
	}

	if err := c.Adjust.Validate(); err != nil {
		return fmt.Errorf("adjust: %w", err)
	}

	switch c.Recognizer.Backend {
	case "tesseract":
	case "ollama", "llamacpp":
		if c.Recognizer.Model == "" {
			return fmt.Errorf("recognizer.model is required for the %s backend", c.Recognizer.Backend)
		}
	default:
		return fmt.Errorf("recognizer.backend must be tesseract, ollama or llamacpp, got %q", c.Recognizer.Backend)
	}
	if c.Recognizer.SendQuality < 0 || c.Recognizer.SendQuality > 100 {
		return fmt.Errorf("recognizer.send_quality must be between 0 and 100")
	}

	if c.Translation.PollIntervalMs < 1 {
		return fmt.Errorf("translation.poll_interval_ms must be positive")
	}
	if c.Translation.MaxWaitMs < 0 || c.Translation.RequestTimeoutMs < 0 {
		return fmt.Errorf("translation.max_wait_ms and translation.request_timeout_ms must not be negative")
	}
	if c.Translation.Pair != "" {
		if _, ok := c.Translation.Pairs[c.Translation.Pair]; !ok {
			return fmt.Errorf("translation.pair %q is not one of %v", c.Translation.Pair, c.PairNames())
		}
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// PairNames lists the configured language pairs
func (c *Config) PairNames() []string {
	names := make([]string, 0, len(c.Translation.Pairs))
	for name := range c.Translation.Pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectedPair returns the chosen language pair with the master key
// environment override applied. ok is false when no pair is selected.
func (c *Config) SelectedPair() (translation.LanguagePair, bool, error) {
	name := c.Translation.Pair
	if name == "" {
		return translation.LanguagePair{}, false, nil
	}
	pc, found := c.Translation.Pairs[name]
	if !found {
		return translation.LanguagePair{}, false, fmt.Errorf("unknown language pair %q", name)
	}
	pair := translation.LanguagePair{
		Name:      name,
		Model:     pc.Model,
		Endpoint:  pc.Endpoint,
		MasterKey: pc.MasterKey,
		Relay:     pc.Relay,
	}
	if key := os.Getenv(MasterKeyEnv); key != "" {
		pair.MasterKey = key
	}
	if err := pair.Validate(); err != nil {
		return translation.LanguagePair{}, false, err
	}
	return pair, true, nil
}

// CameraOptions converts the camera section
func (c *Config) CameraOptions() camera.Options {
	return camera.Options{
		SettleInterval: time.Duration(c.Camera.SettleIntervalMs) * time.Millisecond,
		SettleTimeout:  time.Duration(c.Camera.SettleTimeoutMs) * time.Millisecond,
		MinWidth:       c.Camera.MinWidth,
		MinHeight:      c.Camera.MinHeight,
	}
}

// TranslationOptions converts the polling settings
func (c *Config) TranslationOptions() translation.Options {
	return translation.Options{
		PollInterval:   time.Duration(c.Translation.PollIntervalMs) * time.Millisecond,
		MaxWait:        time.Duration(c.Translation.MaxWaitMs) * time.Millisecond,
		RequestTimeout: time.Duration(c.Translation.RequestTimeoutMs) * time.Millisecond,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "photo-translator", "config.json")
}
