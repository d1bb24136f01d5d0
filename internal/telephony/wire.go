// Package telephony implements the telephony media stream boundary: the
// JSON wire messages exchanged over the media WebSocket, the fixed-cadence
// outbound frame packer, and the HTTP handler that accepts media streams and
// hands them to the bridge.
//
// The wire format is the Twilio Media Streams protocol: 8 kHz mono μ-law
// audio, base64-encoded inside JSON envelopes.
package telephony

// Media stream event names.
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
)

// Telephony audio runs at 8 kHz mono; outbound frames are 20 ms each.
const (
	SampleRate = 8000

	// FrameSamples is the number of samples in one outbound frame.
	FrameSamples = 160

	// FrameBytes is one frame's size as 16-bit linear PCM, the unit the
	// packer buffers in before companding.
	FrameBytes = FrameSamples * 2
)

// Message is the envelope of every inbound media stream message and of
// outbound media frames. Exactly one of Start/Media is set, matching Event.
type Message struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
}

// StartPayload announces a new media stream.
type StartPayload struct {
	StreamSID   string       `json:"streamSid"`
	MediaFormat *MediaFormat `json:"mediaFormat,omitempty"`
}

// MediaFormat describes the stream's audio encoding as reported by the
// telephony provider.
type MediaFormat struct {
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// MediaPayload carries one base64-encoded μ-law audio chunk.
type MediaPayload struct {
	Payload string `json:"payload"`
}
