package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxbridge/voxbridge/internal/telephony"
	"github.com/voxbridge/voxbridge/pkg/audio"
	"github.com/voxbridge/voxbridge/pkg/realtime"
)

// Session bridges one telephony stream to one model session. It implements
// [telephony.StreamSession]. Caller audio enters through HandleMedia and is
// drained by pumpOutbound; model events are drained by pumpEvents, which owns
// the turn tracker and the outbound audio path.
type Session struct {
	streamSID string
	orch      *Orchestrator

	model  ModelSession
	packer *telephony.FramePacker
	up     *audio.Resampler // caller 8kHz -> model rate
	down   *audio.Resampler // model rate -> caller 8kHz

	// turns is owned by pumpEvents; the derived state is published through
	// turnState for other goroutines.
	turns     TurnTracker
	turnState atomic.Value // TurnState

	inbound chan []byte
	done    chan struct{}

	stopOnce sync.Once
	wg       sync.WaitGroup

	startedAt     time.Time
	inboundCount  atomic.Int64
	droppedCount  atomic.Int64
	outboundCount atomic.Int64
}

func newSession(o *Orchestrator, streamSID string, out telephony.SendFunc) *Session {
	s := &Session{
		streamSID: streamSID,
		orch:      o,
		model:     o.newModelSession(),
		packer:    telephony.NewFramePacker(streamSID, out),
		up:        audio.NewResampler(telephony.SampleRate, o.cfg.ModelSampleRate),
		down:      audio.NewResampler(o.cfg.ModelSampleRate, telephony.SampleRate),
		inbound:   make(chan []byte, o.cfg.QueueDepth),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.turnState.Store(TurnIdle)
	return s
}

// HandleMedia takes one base64 μ-law payload from the telephony leg and
// queues its PCM for the model. When the queue is full the oldest queued
// chunk is dropped so the freshest audio wins.
func (s *Session) HandleMedia(payload string) error {
	if payload == "" {
		return nil
	}
	companded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("bridge: decode media payload: %w", err)
	}
	pcm := audio.ExpandULaw(companded)

	s.orch.metrics.InboundFrames.Add(context.Background(), 1)
	if n := s.inboundCount.Add(1); n%50 == 0 {
		slog.Debug("bridge: inbound media", "stream_sid", s.streamSID, "frames", n)
	}

	select {
	case <-s.done:
		return nil
	case s.inbound <- pcm:
		return nil
	default:
	}

	// Queue full. Make room by discarding the oldest chunk, then retry once.
	select {
	case <-s.inbound:
	default:
	}
	select {
	case s.inbound <- pcm:
	default:
	}
	s.orch.metrics.DroppedChunks.Add(context.Background(), 1)
	if d := s.droppedCount.Add(1); d == 1 || d%100 == 0 {
		slog.Warn("bridge: caller audio queue full, dropping oldest",
			"stream_sid", s.streamSID, "dropped", d)
	}
	return nil
}

// Stop tears the session down and waits for both pumps to exit. Safe to call
// more than once and from any goroutine.
func (s *Session) Stop() {
	s.teardown()
	s.wg.Wait()
}

// TurnState returns the most recently published turn state.
func (s *Session) TurnState() TurnState { return s.turnState.Load().(TurnState) }

// teardown flushes pending outbound audio, closes the model session, and
// unregisters the stream. The event pump calls this on its own exit, so it
// must not wait on the pumps.
func (s *Session) teardown() {
	s.stopOnce.Do(func() {
		if err := s.packer.Flush(true); err != nil {
			slog.Debug("bridge: final flush failed", "stream_sid", s.streamSID, "err", err)
		}
		s.packer.MarkClosed()
		close(s.done)
		_ = s.model.Close()
		s.orch.registry.Remove(s.streamSID)

		ctx := context.Background()
		s.orch.metrics.ActiveSessions.Add(ctx, -1)
		s.orch.metrics.SessionDuration.Record(ctx, time.Since(s.startedAt).Seconds())

		slog.Info("bridge: session stopped",
			"stream_sid", s.streamSID,
			"duration", time.Since(s.startedAt).Round(time.Millisecond),
			"inbound_frames", s.inboundCount.Load(),
			"outbound_chunks", s.outboundCount.Load(),
			"dropped_chunks", s.droppedCount.Load(),
		)
	})
}

// pumpOutbound drains queued caller audio, resamples it to the model rate,
// and appends it to the model's input buffer.
func (s *Session) pumpOutbound() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case pcm := <-s.inbound:
			converted, err := s.up.Convert(pcm)
			if err != nil || len(converted) == 0 {
				continue
			}
			if err := s.model.AppendAudio(converted); err != nil {
				// The event pump observes the matching transport failure and
				// tears the session down.
				slog.Debug("bridge: append audio failed", "stream_sid", s.streamSID, "err", err)
			}
		}
	}
}

// pumpEvents is the single consumer of the model event stream. It drives the
// turn tracker, forwards assistant audio, and tears the session down when the
// stream closes.
func (s *Session) pumpEvents() {
	defer s.wg.Done()
	defer s.teardown()
	for ev := range s.model.Events() {
		s.handleModelEvent(&ev)
	}
}

func (s *Session) handleModelEvent(ev *realtime.ServerEvent) {
	ctx := context.Background()
	s.orch.metrics.RecordModelEvent(ctx, ev.Type)
	defer func() { s.turnState.Store(s.turns.State()) }()

	switch {
	case ev.IsAudioDelta(), ev.Type == realtime.TypeBinary:
		s.turns.Apply(ev.Type)
		pcm, ok := ev.AudioPayload()
		if !ok {
			slog.Debug("bridge: dropping malformed audio delta", "stream_sid", s.streamSID)
			return
		}
		s.forwardAssistantAudio(ctx, pcm)

	case ev.IsAudioDone():
		s.turns.Apply(ev.Type)
		// Emit the partial tail frame now rather than holding it for audio
		// that will never come.
		if err := s.packer.Flush(true); err != nil {
			slog.Debug("bridge: flush on audio done failed", "stream_sid", s.streamSID, "err", err)
		}

	case ev.Type == realtime.TypeSpeechStarted:
		interrupting := s.turns.AssistantSpeaking()
		s.turns.Apply(ev.Type)
		if interrupting {
			// Best effort: a failed cancel only means the response plays out.
			if err := s.model.CancelResponse(); err != nil {
				slog.Warn("bridge: barge-in cancel failed", "stream_sid", s.streamSID, "err", err)
			} else {
				slog.Debug("bridge: barge-in, cancelled in-flight response", "stream_sid", s.streamSID)
			}
		}

	case ev.Type == realtime.TypeSessionCreated:
		s.turns.Apply(ev.Type)
		slog.Info("bridge: model session ready", "stream_sid", s.streamSID)

	case ev.Type == realtime.TypeSpeechStopped,
		ev.Type == realtime.TypeResponseCreated,
		ev.Type == realtime.TypeResponseDone:
		s.turns.Apply(ev.Type)
		slog.Debug("bridge: turn event",
			"stream_sid", s.streamSID, "type", ev.Type, "state", s.turns.State())

	case ev.Type == realtime.TypeError:
		if ev.Err != nil {
			s.orch.metrics.RecordModelError(ctx, "transport")
			slog.Error("bridge: model transport error", "stream_sid", s.streamSID, "err", ev.Err)
		} else if ev.Error != nil {
			// Protocol errors are not fatal; the session continues.
			s.orch.metrics.RecordModelError(ctx, "protocol")
			slog.Warn("bridge: model error event",
				"stream_sid", s.streamSID,
				"code", ev.Error.Code,
				"message", ev.Error.Message,
			)
		}

	case ev.Type == realtime.TypeClosed:
		slog.Info("bridge: model connection closed", "stream_sid", s.streamSID, "err", ev.Err)

	default:
		slog.Debug("bridge: unhandled model event", "stream_sid", s.streamSID, "type", ev.Type)
	}
}

func (s *Session) forwardAssistantAudio(ctx context.Context, pcm []byte) {
	if s.orch.monitor != nil {
		if err := s.orch.monitor.Write(pcm); err != nil {
			slog.Debug("bridge: monitor write failed", "err", err)
		}
	}
	converted, err := s.down.Convert(pcm)
	if err != nil {
		slog.Debug("bridge: resample assistant audio failed", "stream_sid", s.streamSID, "err", err)
		return
	}
	if err := s.packer.Accept(converted); err != nil {
		slog.Debug("bridge: outbound frame dropped", "stream_sid", s.streamSID, "err", err)
		return
	}
	s.orch.metrics.OutboundChunks.Add(ctx, 1)
	if n := s.outboundCount.Add(1); n%50 == 0 {
		slog.Debug("bridge: outbound audio", "stream_sid", s.streamSID, "chunks", n)
	}
}
