package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// knownVoices lists the voices the realtime API currently accepts. Used by
// [Validate] to warn about likely typos without rejecting new voices.
var knownVoices = []string{
	"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvFallbacks(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvFallbacks fills credentials that are conventionally passed through
// the environment rather than checked into config files.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when TLS is configured"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when TLS is configured"))
		}
	}

	// Model
	if cfg.Model.APIKey == "" {
		errs = append(errs, errors.New("model.api_key is required (or set OPENAI_API_KEY)"))
	}
	if cfg.Model.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("model.connect_timeout %s must not be negative", cfg.Model.ConnectTimeout))
	}
	if cfg.Model.Instructions != "" && cfg.Model.TranslateTo != "" {
		slog.Warn("model.translate_to is ignored because model.instructions is set")
	}
	if v := cfg.Model.Voice; v != "" && !slices.Contains(knownVoices, v) {
		slog.Warn("unknown voice — may be a typo or a newly released voice",
			"voice", v,
			"known", knownVoices,
		)
	}

	// Audio
	if cfg.Audio.ModelSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.model_sample_rate %d must not be negative", cfg.Audio.ModelSampleRate))
	} else if r := cfg.Audio.ModelSampleRate; r != 0 && r != 16000 && r != 24000 {
		slog.Warn("audio.model_sample_rate is unusual for the realtime API",
			"rate", r,
			"expected", []int{16000, 24000},
		)
	}
	if cfg.Audio.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("audio.queue_depth %d must not be negative", cfg.Audio.QueueDepth))
	}

	return errors.Join(errs...)
}
