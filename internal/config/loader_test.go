package config_test

import (
	"strings"
	"testing"

	"github.com/voxbridge/voxbridge/internal/config"
)

func TestValidate_MissingAPIKey(t *testing.T) {
	// No t.Parallel(): the test relies on OPENAI_API_KEY being unset.
	t.Setenv("OPENAI_API_KEY", "")

	yaml := `
server:
  listen_addr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_APIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := config.LoadFromReader(strings.NewReader("server:\n  listen_addr: ':8080'\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got := cfg.Model.APIKey; got != "sk-from-env" {
		t.Errorf("model.api_key = %q, want %q", got, "sk-from-env")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: bananas
model:
  api_key: sk-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_IncompleteTLS(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  tls:
    cert_file: /etc/voxbridge/cert.pem
model:
  api_key: sk-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for TLS without key file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_NegativeValues(t *testing.T) {
	t.Parallel()

	yaml := `
model:
  api_key: sk-test
  connect_timeout: -5s
audio:
  model_sample_rate: -1
  queue_depth: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for negative values, got nil")
	}
	for _, want := range []string{"connect_timeout", "model_sample_rate", "queue_depth"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	yaml := `
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	// Both failures must surface in one joined error.
	if !strings.Contains(err.Error(), "log_level") || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("joined error is missing a failure: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/nonexistent/voxbridge.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
