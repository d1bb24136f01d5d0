package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: log level takes
// effect immediately, model changes apply to sessions started afterwards.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoiceChanged is set when the effective assistant voice changed.
	VoiceChanged bool

	// InstructionsChanged is set when the effective system prompt changed,
	// whether through the explicit prompt or the translator fields.
	InstructionsChanged bool
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.VoiceChanged || d.InstructionsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Model.EffectiveVoice() != new.Model.EffectiveVoice() {
		d.VoiceChanged = true
	}
	if old.Model.EffectiveInstructions() != new.Model.EffectiveInstructions() {
		d.InstructionsChanged = true
	}

	return d
}
