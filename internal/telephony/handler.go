package telephony

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// StreamSession is one live bridge session as seen from the telephony side.
type StreamSession interface {
	// HandleMedia processes one inbound base64 μ-law payload. Malformed
	// payloads are dropped without terminating the session.
	HandleMedia(payload string) error

	// Stop tears the session down. Idempotent.
	Stop()
}

// StreamBridge creates bridge sessions for incoming media streams.
type StreamBridge interface {
	// StartStream opens a session for streamSID. Outbound media frames are
	// delivered through out. The returned session owns the model connection.
	StartStream(ctx context.Context, streamSID string, format *MediaFormat, out SendFunc) (StreamSession, error)
}

// Handler serves the media stream WebSocket endpoint. Each connection runs
// one receive loop that dispatches start/media/stop events to the bridge.
type Handler struct {
	bridge   StreamBridge
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler backed by bridge.
func NewHandler(bridge StreamBridge) *Handler {
	return &Handler{
		bridge: bridge,
		upgrader: websocket.Upgrader{
			// The telephony provider does not send an Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the media stream receive loop
// until the stream stops or the peer disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("telephony: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	slog.Info("telephony: media stream connected", "remote", conn.RemoteAddr())
	h.receiveLoop(r.Context(), conn)
}

// receiveLoop reads inbound messages and drives the session. It never blocks
// on the model path: inbound audio is handed to the session's bounded queue.
func (h *Handler) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	var (
		session StreamSession
		sid     string

		// Serializes outbound writes with the control frames gorilla sends
		// internally; the packer is the only payload writer.
		writeMu sync.Mutex
	)
	defer func() {
		if session != nil {
			session.Stop()
		}
		slog.Info("telephony: media stream disconnected", "stream_sid", sid)
	}()

	out := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("telephony: read error", "stream_sid", sid, "err", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("telephony: dropping undecodable message", "err", err)
			continue
		}

		switch msg.Event {
		case EventStart:
			if msg.Start == nil || msg.Start.StreamSID == "" {
				slog.Warn("telephony: start event without streamSid")
				continue
			}
			if session != nil {
				slog.Warn("telephony: duplicate start event", "stream_sid", sid)
				continue
			}
			sid = msg.Start.StreamSID
			slog.Info("telephony: stream started",
				"stream_sid", sid, "format", msg.Start.MediaFormat)

			session, err = h.bridge.StartStream(ctx, sid, msg.Start.MediaFormat, out)
			if err != nil {
				slog.Error("telephony: failed to start bridge session",
					"stream_sid", sid, "err", err)
				return
			}

		case EventMedia:
			if session == nil || msg.Media == nil {
				continue
			}
			if err := session.HandleMedia(msg.Media.Payload); err != nil {
				slog.Debug("telephony: media frame dropped", "stream_sid", sid, "err", err)
			}

		case EventStop:
			slog.Info("telephony: stream stopped", "stream_sid", sid)
			return

		default:
			slog.Debug("telephony: ignoring event", "event", msg.Event)
		}
	}
}
