// Package config provides the configuration schema, loader, and file watcher
// for the Voxbridge call bridge.
package config

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel controls log verbosity for the Voxbridge server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxbridge.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Audio  AudioConfig  `yaml:"audio"`
}

// ServerConfig holds network and logging settings for the Voxbridge server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ModelConfig configures the realtime speech model backing every call.
type ModelConfig struct {
	// APIKey authenticates against the model API. When empty, the loader
	// falls back to the OPENAI_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// Name selects the realtime model (e.g., "gpt-4o-realtime-preview-2024-12-17").
	// Leave empty to use the client's built-in default.
	Name string `yaml:"name"`

	// BaseURL overrides the model's default websocket endpoint.
	BaseURL string `yaml:"base_url"`

	// Voice selects the assistant voice (e.g., "verse").
	Voice string `yaml:"voice"`

	// Instructions is an explicit system prompt. When set it wins over the
	// translator fields below.
	Instructions string `yaml:"instructions"`

	// TranslateTo turns the assistant into a speech translator targeting the
	// given language. Ignored when Instructions is set.
	TranslateTo string `yaml:"translate_to"`

	// TranslateStyle tunes the translator's delivery (e.g., "natural and
	// concise"). Only meaningful with TranslateTo.
	TranslateStyle string `yaml:"translate_style"`

	// TranslateExtras is appended verbatim to the generated translator
	// prompt. Only meaningful with TranslateTo.
	TranslateExtras string `yaml:"translate_extras"`

	// ConnectTimeout bounds how long a new call waits for the model socket
	// to open. Zero uses the client default.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// AudioConfig holds the audio pipeline settings.
type AudioConfig struct {
	// ModelSampleRate is the PCM rate the model consumes and produces.
	// Zero defaults to 24000.
	ModelSampleRate int `yaml:"model_sample_rate"`

	// QueueDepth bounds the per-call caller-audio queue. Zero uses the
	// bridge default.
	QueueDepth int `yaml:"queue_depth"`

	// LocalPlayback mirrors assistant audio to the local sound device.
	LocalPlayback bool `yaml:"local_playback"`
}

const (
	// DefaultVoice is used when model.voice is not set.
	DefaultVoice = "verse"

	defaultTranslateStyle = "natural and concise"
)

// EffectiveInstructions returns the system prompt for new sessions: the
// explicit Instructions when set, a generated translator prompt when
// TranslateTo is set, and a plain assistant prompt otherwise.
func (m *ModelConfig) EffectiveInstructions() string {
	if m.Instructions != "" {
		return m.Instructions
	}
	if m.TranslateTo == "" {
		return "You are a helpful voice assistant on a phone call. Keep answers short and conversational."
	}

	style := m.TranslateStyle
	if style == "" {
		style = defaultTranslateStyle
	}
	prompt := fmt.Sprintf(
		"You are a translator. Translate all user speech into %s. "+
			"Return only the translation with no preface or commentary. "+
			"Keep the original meaning, tone, and intent. Speak %s. "+
			"If the user already speaks %s, rephrase to improve clarity and flow.",
		m.TranslateTo, style, m.TranslateTo,
	)
	if extras := strings.TrimSpace(m.TranslateExtras); extras != "" {
		prompt += " " + extras
	}
	return prompt
}

// EffectiveVoice returns the configured voice or [DefaultVoice].
func (m *ModelConfig) EffectiveVoice() string {
	if m.Voice != "" {
		return m.Voice
	}
	return DefaultVoice
}
