package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/audio"
	"github.com/evercall/voicebridge/internal/observability"
)

// State is the lifecycle position of a session.
type State int

const (
	StateIdle       State = iota // created, not yet connected
	StateConnecting              // socket dialing or handshake pending
	StateActive                  // agent ready, audio flowing
	StateEnded                   // terminated normally
	StateError                   // terminated by a failure
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	}
	return "unknown"
}

// SessionConfig wires a session to its collaborators. All callbacks are
// invoked from the session's read goroutine.
type SessionConfig struct {
	// SessionURL is the one-call WebSocket URL from the provisioning step.
	SessionURL string

	// OnAudio receives each decoded chunk of assistant audio.
	OnAudio func(pcm []int16)

	// OnAgentReady fires when the platform signals its pipeline is live.
	// This is the cue to start the microphone.
	OnAgentReady func()

	// OnStateChange observes every transition.
	OnStateChange func(State)
}

// Session is one conversation with the voice agent. It owns the socket,
// decodes inbound traffic, and enforces the readiness handshake: microphone
// audio queued before the agent is ready is flushed in order once it is.
type Session struct {
	cfg    SessionConfig
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	pending [][]byte

	metrics *observability.CallMetrics
	done    chan struct{}
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig, logger zerolog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		logger: logger,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// Connect dials the agent socket and starts the read loop. Valid only from
// the idle state.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot connect from state %s", state)
	}
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	s.notify(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.SessionURL, nil)
	if err != nil {
		s.fail(fmt.Errorf("failed to dial agent socket: %w", err))
		return fmt.Errorf("failed to dial agent socket: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.metrics = observability.NewCallMetrics()
	s.mu.Unlock()

	go s.readLoop(conn)

	s.logger.Info().Msg("Agent socket connected, waiting for agent ready")
	return nil
}

// readLoop decodes inbound frames until the socket closes. Binary frames
// are assistant audio; text frames are control messages. The loop holds its
// own reference to the socket; Disconnect closes it, which unblocks the read.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			ended := s.state == StateEnded
			s.mu.Unlock()
			if !ended {
				s.fail(fmt.Errorf("agent socket read failed: %w", err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.handleAudio(data)
		case websocket.TextMessage:
			s.handleControl(data)
		}
	}
}

func (s *Session) handleAudio(data []byte) {
	s.mu.Lock()
	active := s.state == StateActive || s.state == StateConnecting
	s.mu.Unlock()
	if !active {
		return
	}

	pcm := audio.BytesToInt16(data)
	if len(pcm) == 0 {
		return
	}
	observability.RecordAudioBytes(string(audio.SpeakerAssistant), len(data))
	if s.cfg.OnAudio != nil {
		s.cfg.OnAudio(pcm)
	}
}

func (s *Session) handleControl(data []byte) {
	msg, err := DecodeControl(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Undecodable control frame from agent")
		return
	}

	switch msg.Type {
	case TypeAgentReady:
		s.mu.Lock()
		if s.state != StateConnecting {
			s.mu.Unlock()
			return
		}
		s.setStateLocked(StateActive)
		conn := s.conn
		queued := s.pending
		s.pending = nil
		s.mu.Unlock()
		s.notify(StateActive)

		s.logger.Info().Int("queued_frames", len(queued)).Msg("Agent ready")
		for _, frame := range queued {
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to flush queued audio")
				break
			}
		}
		if s.cfg.OnAgentReady != nil {
			s.cfg.OnAgentReady()
		}

	default:
		// Unknown control types are expected as the platform evolves;
		// surface them instead of failing the call.
		s.logger.Warn().Str("type", msg.Type).Msg("Unknown control message type from agent")
	}
}

// SendAudio streams one window of microphone audio to the agent. Before the
// agent is ready, frames are queued in order; after the session ends they
// are discarded.
func (s *Session) SendAudio(pcm []int16) error {
	data := audio.Int16ToBytes(pcm)

	s.mu.Lock()
	switch s.state {
	case StateConnecting:
		s.pending = append(s.pending, data)
		s.mu.Unlock()
		return nil
	case StateActive:
		conn := s.conn
		s.mu.Unlock()
		observability.RecordAudioBytes(string(audio.SpeakerUser), len(data))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			s.fail(fmt.Errorf("agent socket write failed: %w", err))
			return err
		}
		return nil
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot send audio in state %s", state)
	}
}

// NotifyRecordingStarted completes the readiness handshake once the
// microphone has produced its first samples.
func (s *Session) NotifyRecordingStarted() error {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if state != StateActive || conn == nil {
		return fmt.Errorf("cannot signal client ready in state %s", state)
	}
	if err := conn.WriteMessage(websocket.TextMessage, EncodeControl(TypeClientReady)); err != nil {
		return fmt.Errorf("failed to send client ready: %w", err)
	}
	s.logger.Info().Msg("Client ready sent")
	return nil
}

// Disconnect ends the session. Safe to call from any state, any number of
// times; no callbacks fire after the first call completes the transition.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateEnded || s.state == StateError {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateEnded)
	conn := s.conn
	s.conn = nil
	s.pending = nil
	metrics := s.metrics
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if metrics != nil {
		metrics.RecordCallEnd()
	}
	s.notify(StateEnded)
	close(s.done)
	s.logger.Info().Msg("Agent session ended")
}

// fail moves the session to the error state and releases the socket.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == StateEnded || s.state == StateError {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateError)
	conn := s.conn
	s.conn = nil
	s.pending = nil
	metrics := s.metrics
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if metrics != nil {
		metrics.RecordCallEnd()
	}
	s.notify(StateError)
	close(s.done)
	s.logger.Error().Err(err).Msg("Agent session failed")
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// setStateLocked records a transition. Caller holds s.mu and must call
// notify with the same state after unlocking.
func (s *Session) setStateLocked(next State) {
	s.state = next
}

// notify delivers a transition to the observer outside the lock, so the
// callback may call back into the session.
func (s *Session) notify(next State) {
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(next)
	}
}
