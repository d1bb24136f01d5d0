package realtime

import (
	"encoding/base64"
	"encoding/json"
)

// Client event types (sent to the model).
const (
	TypeSessionUpdate          = "session.update"
	TypeConversationItemCreate = "conversation.item.create"
	TypeInputAudioAppend       = "input_audio_buffer.append"
	TypeResponseCancel         = "response.cancel"
)

// Server event types (received from the model).
const (
	TypeError            = "error"
	TypeSessionCreated   = "session.created"
	TypeSessionUpdated   = "session.updated"
	TypeSpeechStarted    = "input_audio_buffer.speech_started"
	TypeSpeechStopped    = "input_audio_buffer.speech_stopped"
	TypeInputCommitted   = "input_audio_buffer.committed"
	TypeResponseCreated  = "response.created"
	TypeOutputItemAdded  = "response.output_item.added"
	TypeAudioDelta       = "response.audio.delta"
	TypeAudioDone        = "response.audio.done"
	TypeResponseDone     = "response.done"
	TypeOutputAudioDelta = "response.output_audio.delta"
	TypeOutputAudioDone  = "response.output_audio.done"
)

// Synthetic event types injected by the [Client] itself so that transport
// failures flow through the same consumer path as protocol events.
const (
	// TypeClosed signals that the connection is gone; it is always the last
	// event delivered before the event stream closes.
	TypeClosed = "closed"

	// TypeBinary carries a raw binary frame. The payload is assumed to be
	// PCM16 at the model's output rate.
	TypeBinary = "binary"
)

// ErrorDetail is the nested error object of a protocol error event:
// {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ServerEvent is one inbound event from the model session. Protocol events
// carry their full payload in Raw so unrecognized types pass through to the
// consumer instead of being dropped. Synthetic transport events set Err.
type ServerEvent struct {
	Type string `json:"type"`

	// Delta holds the base64 audio payload of audio delta events.
	Delta string `json:"delta,omitempty"`

	// Error is the detail object of a protocol error event.
	Error *ErrorDetail `json:"error,omitempty"`

	// Raw is the undecoded wire payload, set for every protocol event.
	Raw json.RawMessage `json:"-"`

	// Binary is the payload of a TypeBinary event.
	Binary []byte `json:"-"`

	// Err is the transport error behind a synthetic TypeError or TypeClosed
	// event. Nil for protocol events.
	Err error `json:"-"`
}

// IsAudioDelta reports whether the event carries an assistant audio chunk.
// Both protocol revisions of the delta event type are accepted.
func (e *ServerEvent) IsAudioDelta() bool {
	return e.Type == TypeAudioDelta || e.Type == TypeOutputAudioDelta
}

// IsAudioDone reports whether the event marks the end of assistant audio.
func (e *ServerEvent) IsAudioDone() bool {
	return e.Type == TypeAudioDone || e.Type == TypeOutputAudioDone
}

// AudioPayload decodes the event's audio. For delta events this is the
// base64 Delta field; for TypeBinary it is the frame itself. ok is false when
// the event has no audio or the base64 payload is malformed.
func (e *ServerEvent) AudioPayload() (pcm []byte, ok bool) {
	if e.Type == TypeBinary {
		return e.Binary, len(e.Binary) > 0
	}
	if !e.IsAudioDelta() || e.Delta == "" {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(e.Delta)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
