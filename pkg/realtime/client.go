// Package realtime implements a client for a speech model's realtime
// WebSocket session (OpenAI Realtime protocol).
//
// A [Client] owns one connection. Outbound messages are funneled through a
// single sender goroutine so concurrent producers get in-order delivery;
// inbound traffic is exposed as an ordered event stream via [Client.Events].
// Connection failures and abnormal closes are surfaced as synthetic events on
// that same stream rather than returned as errors, so the consumer has a
// single processing path for protocol events and transport faults alike.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	defaultModel   = "gpt-4o-realtime-preview-2024-12-17"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"

	// defaultConnectTimeout bounds the dial so a live telephony call is never
	// held waiting on a socket that will not open.
	defaultConnectTimeout = 10 * time.Second

	// Keep-alive: the ping interval must exceed the ping timeout.
	pingInterval = 30 * time.Second
	pingTimeout  = 10 * time.Second

	sendQueueDepth  = 64
	eventQueueDepth = 64
)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithModel sets the model requested for the session.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithConnectTimeout overrides the dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// Client is a realtime model session client. Create one per session with
// [New]; it cannot be restarted after Close.
type Client struct {
	apiKey         string
	model          string
	baseURL        string
	connectTimeout time.Duration

	sendCh chan []byte
	events chan ServerEvent
	opened chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	closed  bool
}

// New creates a Client with the given API key and options. The client does
// not connect until [Client.Start] is called.
func New(apiKey string, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		apiKey:         apiKey,
		model:          defaultModel,
		baseURL:        defaultBaseURL,
		connectTimeout: defaultConnectTimeout,
		sendCh:         make(chan []byte, sendQueueDepth),
		events:         make(chan ServerEvent, eventQueueDepth),
		opened:         make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins connecting asynchronously and returns immediately. Use
// [Client.WaitOpen] to learn whether the connection succeeded. Calling Start
// more than once is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

// WaitOpen blocks until the socket reports open or the timeout elapses.
// It returns false on timeout and after the client is closed.
func (c *Client) WaitOpen(timeout time.Duration) bool {
	select {
	case <-c.opened:
		return true
	case <-time.After(timeout):
		return false
	case <-c.ctx.Done():
		return false
	}
}

// Events returns the ordered inbound event stream. The channel is closed
// after the final [TypeClosed] event once [Client.Start] has been called.
func (c *Client) Events() <-chan ServerEvent { return c.events }

// run dials the endpoint and, on success, starts the sender and keep-alive
// loops and reads events until the connection dies. It owns c.events.
func (c *Client) run() {
	defer close(c.events)

	dialCtx, cancel := context.WithTimeout(c.ctx, c.connectTimeout)
	conn, _, err := websocket.Dial(dialCtx, fmt.Sprintf("%s?model=%s", c.baseURL, c.model), &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + c.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	cancel()
	if err != nil {
		c.emit(ServerEvent{Type: TypeError, Err: fmt.Errorf("realtime: dial: %w", err)})
		c.emit(ServerEvent{Type: TypeClosed, Err: err})
		return
	}
	// Audio deltas are large single frames.
	conn.SetReadLimit(1 << 22)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "client closed")
		c.emit(ServerEvent{Type: TypeClosed})
		return
	}
	c.conn = conn
	c.mu.Unlock()
	close(c.opened)

	go c.sendLoop(conn)
	go c.pingLoop(conn)

	c.readLoop(conn)
}

// readLoop decodes inbound frames into ServerEvents. Undecodable text frames
// are dropped with a diagnostic; they never terminate the session.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.emit(ServerEvent{Type: TypeError, Err: fmt.Errorf("realtime: read: %w", err)})
			}
			c.emit(ServerEvent{Type: TypeClosed, Err: err})
			return
		}

		if msgType == websocket.MessageBinary {
			c.emit(ServerEvent{Type: TypeBinary, Binary: data})
			continue
		}

		var evt ServerEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Debug("realtime: dropping undecodable event", "err", err, "bytes", len(data))
			continue
		}
		evt.Raw = data
		c.emit(evt)
	}
}

// sendLoop drains the outbound queue into the socket, preserving submission
// order. A write failure stops the loop; the read side surfaces the close.
func (c *Client) sendLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.sendCh:
			if err := conn.Write(c.ctx, websocket.MessageText, msg); err != nil {
				if c.ctx.Err() == nil {
					slog.Debug("realtime: write failed", "err", err)
				}
				return
			}
		}
	}
}

// pingLoop keeps the connection alive. On a missed pong the connection is
// torn down so the read loop reports the failure.
func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					slog.Warn("realtime: keep-alive ping failed", "err", err)
					conn.Close(websocket.StatusGoingAway, "keepalive timeout")
				}
				return
			}
		}
	}
}

func (c *Client) emit(ev ServerEvent) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
		// Consumer gone; drop.
	}
}

// Send marshals v and queues it for in-order delivery. Safe for concurrent
// use. Returns an error once the client is closed or the queue cannot accept
// the message before teardown.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("realtime: client closed")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("realtime: client closed")
	}
}

// Close stops the outbound path and releases the connection. Idempotent and
// safe to call before Start or concurrently from multiple teardown paths.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "session closed")
	}
	return nil
}

// newEventID returns a unique client event ID for outbound messages.
func newEventID() string {
	return "evt_" + uuid.NewString()[:12]
}

// ── Outbound protocol messages ────────────────────────────────────────────────

// SessionParams is the session configuration object of a session.update.
type SessionParams struct {
	Type             string       `json:"type,omitempty"`
	OutputModalities []string     `json:"output_modalities,omitempty"`
	Audio            *AudioParams `json:"audio,omitempty"`
	Instructions     string       `json:"instructions,omitempty"`
}

// AudioParams configures the session's input and output audio.
type AudioParams struct {
	Input  *AudioInput  `json:"input,omitempty"`
	Output *AudioOutput `json:"output,omitempty"`
}

type AudioInput struct {
	Format        AudioFormat    `json:"format"`
	TurnDetection *TurnDetection `json:"turn_detection,omitempty"`
}

type AudioOutput struct {
	Format AudioFormat `json:"format"`
	Voice  string      `json:"voice,omitempty"`
}

// AudioFormat names a wire audio encoding, e.g. {"type":"audio/pcm","rate":24000}.
type AudioFormat struct {
	Type string `json:"type"`
	Rate int    `json:"rate,omitempty"`
}

// TurnDetection selects the model's server-side VAD mode.
type TurnDetection struct {
	Type string `json:"type"`
}

type sessionUpdateMessage struct {
	EventID string        `json:"event_id,omitempty"`
	Type    string        `json:"type"`
	Session SessionParams `json:"session"`
}

type appendAudioMessage struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
	Audio   string `json:"audio"` // base64 PCM16
}

type createConversationItemMessage struct {
	EventID string           `json:"event_id,omitempty"`
	Type    string           `json:"type"`
	Item    conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string             `json:"type"`
	Role    string             `json:"role,omitempty"`
	Content []conversationPart `json:"content,omitempty"`
}

type conversationPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type cancelResponseMessage struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// SendSessionUpdate sends a session.update with the given parameters.
func (c *Client) SendSessionUpdate(params SessionParams) error {
	return c.Send(sessionUpdateMessage{
		EventID: newEventID(),
		Type:    TypeSessionUpdate,
		Session: params,
	})
}

// SendSystemMessage seeds a system message into the conversation.
func (c *Client) SendSystemMessage(text string) error {
	return c.Send(createConversationItemMessage{
		EventID: newEventID(),
		Type:    TypeConversationItemCreate,
		Item: conversationItem{
			Type: "message",
			Role: "system",
			Content: []conversationPart{
				{Type: "input_text", Text: text},
			},
		},
	})
}

// AppendAudio queues a PCM16 chunk as an input_audio_buffer.append event.
func (c *Client) AppendAudio(pcm []byte) error {
	return c.Send(appendAudioMessage{
		EventID: newEventID(),
		Type:    TypeInputAudioAppend,
		Audio:   base64.StdEncoding.EncodeToString(pcm),
	})
}

// CancelResponse asks the model to abort the in-flight response. Best-effort:
// the model sends no acknowledgment.
func (c *Client) CancelResponse() error {
	return c.Send(cancelResponseMessage{
		EventID: newEventID(),
		Type:    TypeResponseCancel,
	})
}
