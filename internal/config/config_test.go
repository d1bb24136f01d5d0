package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

model:
  api_key: sk-test
  name: gpt-4o-realtime-preview-2024-12-17
  voice: verse
  translate_to: English
  translate_style: natural and concise
  connect_timeout: 10s

audio:
  model_sample_rate: 24000
  queue_depth: 64
  local_playback: true
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if got := cfg.Server.ListenAddr; got != ":8080" {
		t.Errorf("server.listen_addr = %q, want %q", got, ":8080")
	}
	if got := cfg.Server.LogLevel; got != config.LogInfo {
		t.Errorf("server.log_level = %q, want %q", got, config.LogInfo)
	}
	if got := cfg.Model.APIKey; got != "sk-test" {
		t.Errorf("model.api_key = %q, want %q", got, "sk-test")
	}
	if got := cfg.Model.Name; got != "gpt-4o-realtime-preview-2024-12-17" {
		t.Errorf("model.name = %q", got)
	}
	if got := cfg.Model.ConnectTimeout; got != 10*time.Second {
		t.Errorf("model.connect_timeout = %s, want 10s", got)
	}
	if got := cfg.Audio.ModelSampleRate; got != 24000 {
		t.Errorf("audio.model_sample_rate = %d, want 24000", got)
	}
	if !cfg.Audio.LocalPlayback {
		t.Error("audio.local_playback = false, want true")
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	yaml := `
model:
  api_key: sk-test
  tempo: fast
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", l)
		}
	}
	if config.LogLevel("bananas").IsValid() {
		t.Error(`"bananas".IsValid() = true, want false`)
	}
}

func TestEffectiveInstructions_ExplicitWins(t *testing.T) {
	t.Parallel()

	m := config.ModelConfig{
		Instructions: "You are a pirate.",
		TranslateTo:  "French",
	}
	if got := m.EffectiveInstructions(); got != "You are a pirate." {
		t.Errorf("EffectiveInstructions() = %q, want the explicit prompt", got)
	}
}

func TestEffectiveInstructions_TranslatorPrompt(t *testing.T) {
	t.Parallel()

	m := config.ModelConfig{
		TranslateTo:     "Korean",
		TranslateExtras: "  Use polite speech levels.  ",
	}
	got := m.EffectiveInstructions()
	if !strings.Contains(got, "Translate all user speech into Korean") {
		t.Errorf("prompt missing target language: %q", got)
	}
	if !strings.Contains(got, "Speak natural and concise") {
		t.Errorf("prompt missing default style: %q", got)
	}
	if !strings.HasSuffix(got, "Use polite speech levels.") {
		t.Errorf("prompt missing trimmed extras: %q", got)
	}
}

func TestEffectiveInstructions_DefaultAssistant(t *testing.T) {
	t.Parallel()

	var m config.ModelConfig
	if got := m.EffectiveInstructions(); !strings.Contains(got, "voice assistant") {
		t.Errorf("default prompt = %q", got)
	}
}

func TestEffectiveVoice(t *testing.T) {
	t.Parallel()

	var m config.ModelConfig
	if got := m.EffectiveVoice(); got != config.DefaultVoice {
		t.Errorf("EffectiveVoice() = %q, want %q", got, config.DefaultVoice)
	}
	m.Voice = "sage"
	if got := m.EffectiveVoice(); got != "sage" {
		t.Errorf("EffectiveVoice() = %q, want %q", got, "sage")
	}
}
