// Package bridge connects one Twilio media stream to one OpenAI Realtime
// session: caller audio is expanded from μ-law, resampled up, and appended to
// the model's input buffer; assistant audio is resampled down, compressed to
// μ-law, and re-packetized into 20ms telephony frames. The package owns the
// per-call turn state and performs barge-in cancellation when the caller
// speaks over the assistant.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/resilience"
	"github.com/voxbridge/voxbridge/internal/telephony"
	"github.com/voxbridge/voxbridge/pkg/realtime"
)

const (
	// defaultQueueDepth bounds the caller-audio queue between the telephony
	// receive loop and the model sender.
	defaultQueueDepth = 64

	defaultConnectTimeout = 10 * time.Second

	// defaultModelSampleRate is the PCM rate of the realtime API.
	defaultModelSampleRate = 24000
)

// ModelSession is the subset of the realtime client the bridge drives. It
// exists so session tests can substitute a scripted model.
type ModelSession interface {
	Start()
	WaitOpen(timeout time.Duration) bool
	SendSessionUpdate(params realtime.SessionParams) error
	SendSystemMessage(text string) error
	AppendAudio(pcm []byte) error
	CancelResponse() error
	Events() <-chan realtime.ServerEvent
	Close() error
}

var _ ModelSession = (*realtime.Client)(nil)

// Monitor receives a copy of the assistant's PCM audio, at the model sample
// rate, for local playback.
type Monitor interface {
	Write(pcm []byte) error
}

// Config carries the model and audio settings for new sessions.
type Config struct {
	// APIKey authenticates against the model API. Required.
	APIKey string

	// Model is the realtime model name. Empty uses the client default.
	Model string

	// BaseURL overrides the model websocket endpoint. Empty uses the client
	// default.
	BaseURL string

	// Voice selects the assistant voice.
	Voice string

	// Instructions is the system prompt sent when the session opens.
	Instructions string

	// ModelSampleRate is the PCM rate the model consumes and produces.
	ModelSampleRate int

	// ConnectTimeout bounds how long StartStream waits for the model socket
	// to open.
	ConnectTimeout time.Duration

	// QueueDepth bounds the caller-audio queue. Zero uses the default.
	QueueDepth int
}

// Orchestrator creates a model session per telephony stream and wires the two
// legs together. It implements [telephony.StreamBridge].
type Orchestrator struct {
	cfg      Config
	registry *Registry
	metrics  *observe.Metrics
	monitor  Monitor

	// connectBreaker fails incoming calls fast while the model API keeps
	// refusing connections.
	connectBreaker *resilience.CircuitBreaker

	newModelSession func() ModelSession
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithMonitor attaches a local playback sink for assistant audio.
func WithMonitor(m Monitor) Option {
	return func(o *Orchestrator) { o.monitor = m }
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithModelSessionFactory overrides how model sessions are created, mainly
// for tests.
func WithModelSessionFactory(f func() ModelSession) Option {
	return func(o *Orchestrator) { o.newModelSession = f }
}

// New returns an orchestrator for the given config.
func New(cfg Config, opts ...Option) *Orchestrator {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.ModelSampleRate <= 0 {
		cfg.ModelSampleRate = defaultModelSampleRate
	}
	o := &Orchestrator{
		cfg:      cfg,
		registry: NewRegistry(),
		connectBreaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "model-connect",
			MaxFailures:  3,
			ResetTimeout: 15 * time.Second,
		}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if o.newModelSession == nil {
		o.newModelSession = func() ModelSession {
			clientOpts := []realtime.Option{
				realtime.WithConnectTimeout(o.cfg.ConnectTimeout),
			}
			if o.cfg.Model != "" {
				clientOpts = append(clientOpts, realtime.WithModel(o.cfg.Model))
			}
			if o.cfg.BaseURL != "" {
				clientOpts = append(clientOpts, realtime.WithBaseURL(o.cfg.BaseURL))
			}
			return realtime.New(o.cfg.APIKey, clientOpts...)
		}
	}
	return o
}

// Registry exposes the live-session registry, used by the readiness probe and
// graceful shutdown.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// StartStream connects a new model session for the given telephony stream and
// starts the audio pumps. The returned session is registered under streamSID
// until it stops.
func (o *Orchestrator) StartStream(ctx context.Context, streamSID string, format *telephony.MediaFormat, out telephony.SendFunc) (telephony.StreamSession, error) {
	if o.cfg.APIKey == "" {
		return nil, errors.New("bridge: model API key not configured")
	}
	if format != nil && format.Encoding != "" && format.Encoding != "audio/x-mulaw" {
		return nil, fmt.Errorf("bridge: unsupported media encoding %q", format.Encoding)
	}

	s := newSession(o, streamSID, out)
	if err := o.registry.Add(streamSID, s); err != nil {
		return nil, err
	}

	dialStart := time.Now()
	err := o.connectBreaker.Execute(func() error {
		s.model.Start()
		if !s.model.WaitOpen(o.cfg.ConnectTimeout) {
			return fmt.Errorf("bridge: model session for stream %s did not open within %s", streamSID, o.cfg.ConnectTimeout)
		}
		return nil
	})
	if err != nil {
		_ = s.model.Close()
		o.registry.Remove(streamSID)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("bridge: model connects are failing, rejecting stream %s: %w", streamSID, err)
		}
		return nil, err
	}
	o.metrics.ModelConnectDuration.Record(ctx, time.Since(dialStart).Seconds())

	// Configure the session before any audio is appended.
	if err := s.model.SendSessionUpdate(o.sessionParams()); err != nil {
		_ = s.model.Close()
		o.registry.Remove(streamSID)
		return nil, fmt.Errorf("bridge: send session update: %w", err)
	}
	if o.cfg.Instructions != "" {
		if err := s.model.SendSystemMessage(o.cfg.Instructions); err != nil {
			_ = s.model.Close()
			o.registry.Remove(streamSID)
			return nil, fmt.Errorf("bridge: send system message: %w", err)
		}
	}

	o.metrics.ActiveSessions.Add(ctx, 1)
	s.wg.Add(2)
	go s.pumpOutbound()
	go s.pumpEvents()

	slog.Info("bridge: session started",
		"stream_sid", streamSID,
		"model", o.cfg.Model,
		"voice", o.cfg.Voice,
	)
	return s, nil
}

// Shutdown stops every live session and waits for their pumps to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	for _, s := range o.registry.snapshot() {
		g.Go(func() error {
			s.Stop()
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) sessionParams() realtime.SessionParams {
	return realtime.SessionParams{
		Type:             "realtime",
		OutputModalities: []string{"audio"},
		Audio: &realtime.AudioParams{
			Input: &realtime.AudioInput{
				Format: realtime.AudioFormat{
					Type: "audio/pcm",
					Rate: o.cfg.ModelSampleRate,
				},
				TurnDetection: &realtime.TurnDetection{Type: "semantic_vad"},
			},
			Output: &realtime.AudioOutput{
				Format: realtime.AudioFormat{Type: "audio/pcm"},
				Voice:  o.cfg.Voice,
			},
		},
		Instructions: o.cfg.Instructions,
	}
}
