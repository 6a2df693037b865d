package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com"`
	TranscribeModel string        `env:"TRANSCRIBE_MODEL" envDefault:"gpt-4o-transcribe"`
	TranslateModel  string        `env:"TRANSLATE_MODEL" envDefault:"gpt-4o"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10m"`

	SegmentMaxSeconds float64       `env:"SEGMENT_MAX_SECONDS" envDefault:"1200"`
	RetryMaxAttempts  int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay    time.Duration `env:"RETRY_BASE_DELAY" envDefault:"2s"`

	TempDir     string `env:"TEMP_DIR"`
	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxUploadMB  int64         `env:"MAX_UPLOAD_MB" envDefault:"200"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Inbox watcher (disabled when InboxDir is empty)
	InboxDir            string `env:"INBOX_DIR"`
	InboxSourceLanguage string `env:"INBOX_SOURCE_LANGUAGE" envDefault:"Auto-detect"`
	InboxTargetLanguage string `env:"INBOX_TARGET_LANGUAGE" envDefault:"English"`

	// Artifact export
	OutputDir string   `env:"OUTPUT_DIR"`
	S3        S3Config `envPrefix:"S3_"`

	// Job events (disabled when MQTTBrokerURL is empty)
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"audio-translator"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"audio-translator"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`
}

// S3Config holds S3-compatible object storage settings for artifact export.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Endpoint  string `env:"ENDPOINT"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile   string
	HTTPAddr  string
	LogLevel  string
	APIKey    string
	InboxDir  string
	OutputDir string
	TempDir   string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.APIKey != "" {
		cfg.OpenAIAPIKey = overrides.APIKey
	}
	if overrides.InboxDir != "" {
		cfg.InboxDir = overrides.InboxDir
	}
	if overrides.OutputDir != "" {
		cfg.OutputDir = overrides.OutputDir
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate range-checks numeric settings.
func (c *Config) Validate() error {
	var errs []error
	if c.SegmentMaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("SEGMENT_MAX_SECONDS must be positive, got %v", c.SegmentMaxSeconds))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("RETRY_BASE_DELAY must not be negative, got %s", c.RetryBaseDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.InboxDir != "" && c.InboxTargetLanguage == "" {
		errs = append(errs, errors.New("INBOX_TARGET_LANGUAGE is required when INBOX_DIR is set"))
	}
	return errors.Join(errs...)
}

// ErrMissingAPIKey means neither the caller nor the environment supplied a key.
var ErrMissingAPIKey = errors.New("OpenAI API key not provided")

// ResolveAPIKey returns the cleaned explicit key, or the cleaned fallback
// when the explicit one is blank.
func ResolveAPIKey(explicit, fallback string) (string, error) {
	if key := CleanAPIKey(explicit); key != "" {
		return key, nil
	}
	if key := CleanAPIKey(fallback); key != "" {
		return key, nil
	}
	return "", ErrMissingAPIKey
}

// CleanAPIKey strips whitespace and surrounding quotes pasted along with a key.
func CleanAPIKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.Trim(key, `"'`)
	return strings.TrimSpace(key)
}

// MaskAPIKey renders a key for logs: length plus first 7 and last 4 characters.
func MaskAPIKey(key string) string {
	if len(key) <= 11 {
		return fmt.Sprintf("len=%d ***", len(key))
	}
	return fmt.Sprintf("len=%d %s...%s", len(key), key[:7], key[len(key)-4:])
}
