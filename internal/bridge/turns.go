package bridge

import "github.com/voxbridge/voxbridge/pkg/realtime"

// TurnState is the conversation turn state derived from the ordered model
// event stream.
type TurnState string

const (
	TurnIdle               TurnState = "idle"
	TurnUserSpeaking       TurnState = "user_speaking"
	TurnResponseInProgress TurnState = "response_in_progress"
	TurnAssistantSpeaking  TurnState = "assistant_speaking"
)

// TurnTracker derives the turn state of one session from model lifecycle
// events. Events must be applied strictly in arrival order; the tracker is
// owned by the session's single event-consumer goroutine and is not
// synchronized.
type TurnTracker struct {
	sessionReady       bool
	userSpeaking       bool
	responseInProgress bool
	assistantSpeaking  bool
}

// Apply updates the tracker for one model event type. Unrecognized types
// leave the state unchanged.
func (t *TurnTracker) Apply(eventType string) {
	switch eventType {
	case realtime.TypeSessionCreated:
		t.sessionReady = true
	case realtime.TypeSpeechStarted:
		t.userSpeaking = true
	case realtime.TypeSpeechStopped:
		t.userSpeaking = false
	case realtime.TypeResponseCreated:
		t.responseInProgress = true
	case realtime.TypeAudioDelta, realtime.TypeOutputAudioDelta, realtime.TypeBinary:
		t.assistantSpeaking = true
	case realtime.TypeAudioDone, realtime.TypeOutputAudioDone:
		t.assistantSpeaking = false
	case realtime.TypeResponseDone:
		t.responseInProgress = false
		t.assistantSpeaking = false
	}
}

// SessionReady reports whether the model session has been created and is
// usable for further sends.
func (t *TurnTracker) SessionReady() bool { return t.sessionReady }

// UserSpeaking reports whether server-side VAD currently detects user speech.
func (t *TurnTracker) UserSpeaking() bool { return t.userSpeaking }

// AssistantSpeaking reports whether assistant audio is currently streaming.
// This is the signal consulted for barge-in.
func (t *TurnTracker) AssistantSpeaking() bool { return t.assistantSpeaking }

// State returns the derived turn state. Sub-flags take precedence in order:
// assistant audio over an open response, an open response over user speech.
func (t *TurnTracker) State() TurnState {
	switch {
	case t.assistantSpeaking:
		return TurnAssistantSpeaking
	case t.responseInProgress:
		return TurnResponseInProgress
	case t.userSpeaking:
		return TurnUserSpeaking
	default:
		return TurnIdle
	}
}
