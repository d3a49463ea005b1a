package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/audio"
	"github.com/evercall/voicebridge/internal/observability"
	"github.com/evercall/voicebridge/internal/stt"
)

// MultiplexerConfig configures the dual-channel recognizer.
type MultiplexerConfig struct {
	// Factory creates the recognition channel for a speaker.
	Factory stt.ChannelFactory

	// OpenTimeout bounds how long Connect waits for each channel to open.
	OpenTimeout time.Duration

	// RecognitionSampleRate is what the channels expect; audio submitted at
	// a higher rate is decimated down to it.
	RecognitionSampleRate int

	// OnFragment receives every promoted fragment, in promotion order.
	OnFragment func(Fragment)
}

type channelState struct {
	channel stt.Channel
	active  bool
	// loggedDown ensures a dead channel complains once, not per chunk.
	loggedDown bool
}

// Multiplexer runs one recognition channel per speaker and merges their
// final results into a single deduplicated transcript stream. Interim
// results never leave this package.
type Multiplexer struct {
	cfg    MultiplexerConfig
	logger zerolog.Logger
	log    *Log

	mu       sync.Mutex
	channels map[audio.Speaker]*channelState
	started  bool
	stopped  bool

	wg sync.WaitGroup
}

// NewMultiplexer creates a disconnected multiplexer.
func NewMultiplexer(cfg MultiplexerConfig, logger zerolog.Logger) *Multiplexer {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	if cfg.RecognitionSampleRate <= 0 {
		cfg.RecognitionSampleRate = 16000
	}
	return &Multiplexer{
		cfg:      cfg,
		logger:   logger,
		log:      NewLog(),
		channels: make(map[audio.Speaker]*channelState),
	}
}

// Connect opens both recognition channels. A channel that fails to open
// within the timeout is left inactive and its audio silently dropped; the
// call itself proceeds, just without that speaker's transcript.
func (m *Multiplexer) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for _, speaker := range []audio.Speaker{audio.SpeakerUser, audio.SpeakerAssistant} {
		ch := m.cfg.Factory(string(speaker))
		state := &channelState{channel: ch}

		openCtx, cancel := context.WithTimeout(ctx, m.cfg.OpenTimeout)
		err := ch.Start(openCtx)
		cancel()

		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("speaker", string(speaker)).
				Msg("Recognition channel unavailable, continuing without it")
			observability.RecordRecognitionError(string(speaker))
			ch.Close()
		} else {
			state.active = true
			m.wg.Add(1)
			go m.consume(speaker, ch)
		}

		m.mu.Lock()
		m.channels[speaker] = state
		m.mu.Unlock()
	}
	return nil
}

// consume drains one channel's results until it closes.
func (m *Multiplexer) consume(speaker audio.Speaker, ch stt.Channel) {
	defer m.wg.Done()
	for result := range ch.Results() {
		if !result.IsFinal {
			continue
		}
		m.promote(Fragment{
			Speaker:    speaker,
			Text:       result.Text,
			Timestamp:  time.Now().UTC(),
			IsFinal:    true,
			Confidence: result.Confidence,
		})
	}
}

// promote records a final fragment unless an equivalent one already landed
// from the other channel, then hands it to the subscriber.
func (m *Multiplexer) promote(f Fragment) {
	if m.log.IsDuplicate(f) {
		observability.RecordTranscriptFragment("duplicate")
		m.logger.Debug().
			Str("speaker", string(f.Speaker)).
			Str("text", f.Text).
			Msg("Dropping duplicate transcript fragment")
		return
	}
	m.log.Append(f)
	observability.RecordTranscriptFragment("kept")

	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped || m.cfg.OnFragment == nil {
		return
	}
	m.cfg.OnFragment(f)
}

// Submit routes a frame of call audio to its speaker's channel. User audio
// arrives at the capture rate and is decimated down to the recognition rate;
// assistant audio is already there. Frames for an inactive channel are
// dropped.
func (m *Multiplexer) Submit(frame audio.Frame) {
	m.mu.Lock()
	state := m.channels[frame.Speaker]
	stopped := m.stopped
	m.mu.Unlock()

	if stopped || state == nil || !state.active {
		m.logDroppedOnce(frame.Speaker, state)
		return
	}

	pcm := frame.PCM
	if frame.SampleRate > m.cfg.RecognitionSampleRate {
		pcm = audio.Decimate(pcm, frame.SampleRate, m.cfg.RecognitionSampleRate)
	}

	data := audio.Int16ToBytes(pcm)
	if err := state.channel.Send(data); err != nil {
		m.logger.Warn().
			Err(err).
			Str("speaker", string(frame.Speaker)).
			Msg("Failed to send audio to recognition channel")
		observability.RecordRecognitionError(string(frame.Speaker))
	}
}

func (m *Multiplexer) logDroppedOnce(speaker audio.Speaker, state *channelState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == nil || state.loggedDown {
		return
	}
	state.loggedDown = true
	m.logger.Warn().
		Str("speaker", string(speaker)).
		Msg("Recognition channel down, dropping audio")
}

// Transcript returns everything promoted so far, in order.
func (m *Multiplexer) Transcript() []Fragment {
	return m.log.Fragments()
}

// Disconnect closes both channels and waits for their result streams to
// drain. Idempotent; no fragments are emitted after it returns.
func (m *Multiplexer) Disconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	var toClose []stt.Channel
	for _, s := range m.channels {
		if s.active {
			s.active = false
			toClose = append(toClose, s.channel)
		}
	}
	m.mu.Unlock()

	for _, ch := range toClose {
		ch.Close()
	}
	m.wg.Wait()
}
