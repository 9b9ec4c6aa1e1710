package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the configuration omits a value.
const (
	DefaultPort          = 8080
	DefaultBaseURL       = "https://openrouter.ai/api/v1"
	DefaultModel         = "openai/gpt-4o-mini"
	DefaultImageModel    = "google/gemini-2.5-flash-image-preview"
	DefaultSpeechBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID       = "21m00Tcm4TlvDq8ikWAM"
	DefaultRateLimit     = 60
	DefaultTelemetrySize = 256
	DefaultStorageDir    = "uploads"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Speech     SpeechConfig     `yaml:"speech"`
	Storage    StorageConfig    `yaml:"storage"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig defines listener and middleware configuration.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit_per_second"`
}

// OpenRouterConfig captures credentials and model selection for the
// upstream LLM peer.
type OpenRouterConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	ImageModel string `yaml:"image_model"`
}

// SpeechConfig captures credentials for the speech-synthesis peer.
type SpeechConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	VoiceID string `yaml:"voice_id"`
}

// StorageConfig controls the image store backend.
type StorageConfig struct {
	Directory string `yaml:"directory"`
	BaseURL   string `yaml:"base_url"`
}

// TelemetryConfig controls the async outcome sink.
type TelemetryConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// Load reads YAML configuration from disk, applies environment fallbacks
// and defaults, and validates the result. An empty path yields a
// defaults-plus-environment configuration.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	cfg.applyEnvironment()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvironment() {
	if c.OpenRouter.APIKey == "" {
		c.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = DefaultRateLimit
	}
	if c.OpenRouter.BaseURL == "" {
		c.OpenRouter.BaseURL = DefaultBaseURL
	}
	if c.OpenRouter.Model == "" {
		c.OpenRouter.Model = DefaultModel
	}
	if c.OpenRouter.ImageModel == "" {
		c.OpenRouter.ImageModel = DefaultImageModel
	}
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = DefaultSpeechBaseURL
	}
	if c.Speech.VoiceID == "" {
		c.Speech.VoiceID = DefaultVoiceID
	}
	if c.Storage.Directory == "" {
		c.Storage.Directory = DefaultStorageDir
	}
	if c.Telemetry.BufferSize == 0 {
		c.Telemetry.BufferSize = DefaultTelemetrySize
	}
}

// Validate performs strict sanity checks on the configuration. A missing
// upstream credential is deliberately not rejected here: it is a
// per-request configuration error surfaced on the event stream.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit_per_second must not be negative, got %v", c.Server.RateLimit)
	}
	if strings.TrimSpace(c.OpenRouter.BaseURL) == "" {
		return fmt.Errorf("openrouter.base_url must be provided")
	}
	if strings.TrimSpace(c.OpenRouter.Model) == "" {
		return fmt.Errorf("openrouter.model must be provided")
	}
	if strings.TrimSpace(c.OpenRouter.ImageModel) == "" {
		return fmt.Errorf("openrouter.image_model must be provided")
	}
	if strings.TrimSpace(c.Storage.Directory) == "" {
		return fmt.Errorf("storage.directory must be provided")
	}
	if c.Telemetry.BufferSize <= 0 {
		return fmt.Errorf("telemetry.buffer_size must be positive, got %d", c.Telemetry.BufferSize)
	}
	for _, origin := range c.Server.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("server.allowed_origins must not contain empty entries")
		}
	}
	return nil
}
