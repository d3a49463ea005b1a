package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voicebridge server and call client.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Base URL of the voicebridge server, used by the call client for
	// provisioning requests and the relay connection.
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	RelayURL  string `envconfig:"RELAY_URL" default:"ws://localhost:8080/ws/relay"`

	// Voice-agent platform configuration. The token endpoint exchanges an
	// assistant ID for a one-call session URL; the API base serves call
	// listings for the dashboard proxy.
	AgentAPIKey      string `envconfig:"AGENT_API_KEY"`
	AgentAssistantID string `envconfig:"AGENT_ASSISTANT_ID"`
	AgentTokenURL    string `envconfig:"AGENT_TOKEN_URL" default:"https://widget.synthflow.ai/websocket/token"`
	AgentAPIURL      string `envconfig:"AGENT_API_URL" default:"https://api.synthflow.ai/v2"`

	// Recognition (speech-to-text) configuration
	RecognitionAPIKey      string `envconfig:"RECOGNITION_API_KEY"`
	RecognitionModel       string `envconfig:"RECOGNITION_MODEL" default:"nova-3"`
	RecognitionLanguage    string `envconfig:"RECOGNITION_LANGUAGE" default:"en"`
	RecognitionSampleRate  int    `envconfig:"RECOGNITION_SAMPLE_RATE" default:"16000"`
	RecognitionOpenTimeout int    `envconfig:"RECOGNITION_OPEN_TIMEOUT" default:"10"` // seconds

	// Audio configuration. The capture window is a power-of-two sample
	// count: smaller windows reduce end-to-end latency at the cost of more
	// per-chunk overhead.
	CaptureSampleRate    int `envconfig:"CAPTURE_SAMPLE_RATE" default:"48000"`
	CaptureWindowSamples int `envconfig:"CAPTURE_WINDOW_SAMPLES" default:"8192"`
	PlaybackSampleRate   int `envconfig:"PLAYBACK_SAMPLE_RATE" default:"16000"`
	PlaybackMaxFrames    int `envconfig:"PLAYBACK_MAX_FRAMES" default:"2048"`

	// Resilience configuration for the recognition channels
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from a .env file (if present) and the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// ValidateServer checks the settings the provisioning server cannot run
// without. The call client carries no key material of its own, so this is
// not part of Load.
func (c *Config) ValidateServer() error {
	if c.AgentAPIKey == "" {
		return fmt.Errorf("AGENT_API_KEY is required")
	}
	if c.RecognitionAPIKey == "" {
		return fmt.Errorf("RECOGNITION_API_KEY is required")
	}
	return nil
}
