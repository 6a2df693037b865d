package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"OPENAI_API_KEY":  "sk-env",
		"MQTT_BROKER_URL": "tcp://localhost:1883",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.SegmentMaxSeconds != 1200 {
			t.Errorf("SegmentMaxSeconds = %v, want 1200", cfg.SegmentMaxSeconds)
		}
		if cfg.RetryMaxAttempts != 3 {
			t.Errorf("RetryMaxAttempts = %d, want 3", cfg.RetryMaxAttempts)
		}
		if cfg.RetryBaseDelay != 2*time.Second {
			t.Errorf("RetryBaseDelay = %s, want 2s", cfg.RetryBaseDelay)
		}
		if cfg.TranscribeModel != "gpt-4o-transcribe" {
			t.Errorf("TranscribeModel = %q", cfg.TranscribeModel)
		}
		if cfg.TranslateModel != "gpt-4o" {
			t.Errorf("TranslateModel = %q", cfg.TranslateModel)
		}
		if cfg.MQTTClientID != "audio-translator" {
			t.Errorf("MQTTClientID = %q, want audio-translator", cfg.MQTTClientID)
		}
		if cfg.S3.Region != "us-east-1" {
			t.Errorf("S3.Region = %q, want us-east-1", cfg.S3.Region)
		}
		if cfg.S3.Enabled() {
			t.Error("S3 enabled without a bucket")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:   "nonexistent.env",
			HTTPAddr:  ":9090",
			LogLevel:  "debug",
			APIKey:    "sk-flag",
			InboxDir:  "/tmp/inbox",
			OutputDir: "/tmp/out",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.OpenAIAPIKey != "sk-flag" {
			t.Errorf("OpenAIAPIKey = %q, want override", cfg.OpenAIAPIKey)
		}
		if cfg.InboxDir != "/tmp/inbox" || cfg.OutputDir != "/tmp/out" {
			t.Errorf("InboxDir/OutputDir = %q/%q", cfg.InboxDir, cfg.OutputDir)
		}
	})

	t.Run("empty_overrides_use_env", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.OpenAIAPIKey != "sk-env" {
			t.Errorf("OpenAIAPIKey = %q, want env value", cfg.OpenAIAPIKey)
		}
		if cfg.MQTTBrokerURL != "tcp://localhost:1883" {
			t.Errorf("MQTTBrokerURL = %q, want env value", cfg.MQTTBrokerURL)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"S3_BUCKET": ""})
	defer cleanup()
	os.Unsetenv("S3_BUCKET")

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("S3_BUCKET=transcripts\nSEGMENT_MAX_SECONDS=600\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("SEGMENT_MAX_SECONDS")

	cfg, err := Load(Overrides{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.S3.Enabled() || cfg.S3.Bucket != "transcripts" {
		t.Errorf("S3.Bucket = %q, want transcripts", cfg.S3.Bucket)
	}
	if cfg.SegmentMaxSeconds != 600 {
		t.Errorf("SegmentMaxSeconds = %v, want 600", cfg.SegmentMaxSeconds)
	}
}

func TestLoadRejectsInvalidRanges(t *testing.T) {
	tests := map[string]string{
		"SEGMENT_MAX_SECONDS": "0",
		"RETRY_MAX_ATTEMPTS":  "0",
		"MAX_UPLOAD_MB":       "-1",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			cleanup := setEnvs(t, map[string]string{key: val})
			defer cleanup()
			if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
				t.Errorf("%s=%s accepted", key, val)
			}
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		fallback string
		want     string
		wantErr  bool
	}{
		{"explicit_wins", "sk-user", "sk-default", "sk-user", false},
		{"fallback_when_blank", "   ", "sk-default", "sk-default", false},
		{"strips_quotes", ` "sk-quoted" `, "", "sk-quoted", false},
		{"strips_single_quotes", "'sk-single'\n", "", "sk-single", false},
		{"missing", "", "", "", true},
		{"only_quotes", `""`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAPIKey(tt.explicit, tt.fallback)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingAPIKey) {
					t.Errorf("err = %v, want ErrMissingAPIKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveAPIKey: %v", err)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey("sk-proj-abcdefghijWXYZ"); got != "len=22 sk-proj...WXYZ" {
		t.Errorf("MaskAPIKey = %q", got)
	}
	if got := MaskAPIKey("short"); got != "len=5 ***" {
		t.Errorf("MaskAPIKey(short) = %q", got)
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
