package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/audio"
)

// SendFunc delivers one marshaled outbound message to the telephony channel.
type SendFunc func(data []byte) error

// FramePacker buffers converted PCM16-at-8kHz audio and emits only whole
// 20 ms frames downstream, companded to μ-law and wrapped in a media message.
// Any remainder stays buffered until the next Accept or a padded Flush.
//
// The packer is written to by the model-inbound consumer; the mutex exists
// because teardown may invoke Flush and MarkClosed from another goroutine.
type FramePacker struct {
	streamSID string
	send      SendFunc

	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewFramePacker creates a FramePacker for the given stream that delivers
// frames through send.
func NewFramePacker(streamSID string, send SendFunc) *FramePacker {
	return &FramePacker{streamSID: streamSID, send: send}
}

// Accept appends pcm to the buffer and sends every complete frame downstream.
// After the packer is closed, Accept is a no-op.
func (p *FramePacker) Accept(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(pcm) == 0 {
		return nil
	}
	p.buf = append(p.buf, pcm...)
	return p.flushFullFramesLocked()
}

// Flush drains the buffer. With pad=true the remainder is zero-padded up to a
// full frame and sent; with pad=false any incomplete remainder is discarded.
// The buffer is empty afterwards either way.
func (p *FramePacker) Flush(pad bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.buf = nil
		return nil
	}

	if pad && len(p.buf) > 0 {
		if rem := len(p.buf) % FrameBytes; rem != 0 {
			p.buf = append(p.buf, make([]byte, FrameBytes-rem)...)
		}
	}
	err := p.flushFullFramesLocked()
	p.buf = p.buf[:0]
	return err
}

// MarkClosed permanently disables the packer. Idempotent; subsequent Accept
// and Flush calls are no-ops.
func (p *FramePacker) MarkClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.buf = nil
}

// flushFullFramesLocked sends every buffered complete frame. A send failure
// marks the packer closed so the session stops producing outbound media.
// Callers must hold p.mu.
func (p *FramePacker) flushFullFramesLocked() error {
	for len(p.buf) >= FrameBytes && !p.closed {
		frame := p.buf[:FrameBytes]

		mulaw, err := audio.CompressULaw(frame)
		if err != nil {
			// Frame size is even, so this is unreachable; guard anyway.
			return fmt.Errorf("telephony: compress frame: %w", err)
		}

		msg := Message{
			Event:     EventMedia,
			StreamSID: p.streamSID,
			Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("telephony: marshal media frame: %w", err)
		}

		if err := p.send(data); err != nil {
			p.closed = true
			p.buf = nil
			slog.Warn("telephony: outbound send failed, closing stream output",
				"stream_sid", p.streamSID, "err", err)
			return fmt.Errorf("telephony: send media frame: %w", err)
		}

		p.buf = append(p.buf[:0], p.buf[FrameBytes:]...)
	}
	return nil
}
