package stt

import (
	"context"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/evercall/voicebridge/internal/observability"
	"github.com/evercall/voicebridge/internal/resilience"
)

// DeepgramOptions configures one Deepgram live-transcription channel.
type DeepgramOptions struct {
	APIKey     string
	Speaker    string // label used for logging and metrics
	Model      string
	Language   string
	SampleRate int

	CircuitBreakerMaxFailures  int
	CircuitBreakerResetTimeout time.Duration
	ReconnectMaxAttempts       int
	ReconnectBackoff           time.Duration
}

// callbackHandler embeds the SDK default handler and overrides only the
// events the channel cares about.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onOpen    func()
	onMessage func(*msginterfaces.MessageResponse)
	onError   func(*msginterfaces.ErrorResponse)
}

func (h *callbackHandler) Open(or *msginterfaces.OpenResponse) error {
	h.onOpen()
	return nil
}

func (h *callbackHandler) Message(mr *msginterfaces.MessageResponse) error {
	h.onMessage(mr)
	return nil
}

func (h *callbackHandler) Error(er *msginterfaces.ErrorResponse) error {
	h.onError(er)
	return nil
}

// DeepgramChannel implements Channel against Deepgram's streaming API. A
// dropped connection is redialed in the background with backoff; audio sent
// while down fails fast through the circuit breaker.
type DeepgramChannel struct {
	opts    DeepgramOptions
	results chan Result
	breaker *resilience.CircuitBreaker

	// lifeCtx ends when the channel is closed for good; it stops any
	// background reconnection.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu     sync.RWMutex
	client *listenClient.WSCallback
	active bool
	closed bool
}

// NewDeepgramChannel creates an unconnected channel.
func NewDeepgramChannel(opts DeepgramOptions) *DeepgramChannel {
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	return &DeepgramChannel{
		opts:       opts,
		results:    make(chan Result, 100),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		breaker: resilience.NewCircuitBreaker(
			"deepgram-"+opts.Speaker,
			opts.CircuitBreakerMaxFailures,
			opts.CircuitBreakerResetTimeout,
		),
	}
}

// Start opens the streaming connection and waits for the service to
// acknowledge it. Returns an error if ctx expires first; the caller decides
// whether to degrade or abort.
func (d *DeepgramChannel) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("recognition channel %q is closed", d.opts.Speaker)
	}
	if d.active {
		d.mu.Unlock()
		return fmt.Errorf("recognition channel %q is already active", d.opts.Speaker)
	}

	logger := observability.GetLogger()

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.opts.Model,
		Language:       d.opts.Language,
		SmartFormat:    true,
		Punctuate:      true,
		InterimResults: true,
		Endpointing:    "100",
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     d.opts.SampleRate,
	}

	opened := make(chan struct{})
	callback := &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onOpen: func() {
			select {
			case <-opened:
			default:
				close(opened)
			}
		},
		onMessage: d.handleMessage,
		onError: func(er *msginterfaces.ErrorResponse) {
			logger.Error().
				Str("speaker", d.opts.Speaker).
				Str("description", er.Description).
				Msg("Recognition channel error")
			d.breaker.RecordResult(false)
			observability.RecordRecognitionError(d.opts.Speaker)
			d.markDown()
			go d.attemptReconnect()
		},
	}

	client, err := listenClient.NewWSUsingCallback(
		d.lifeCtx,
		d.opts.APIKey,
		nil,
		tOptions,
		callback,
	)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to create recognition client: %w", err)
	}

	d.client = client
	d.active = true
	d.mu.Unlock()

	select {
	case <-opened:
	case <-ctx.Done():
		d.markDown()
		return fmt.Errorf("recognition channel %q did not open: %w", d.opts.Speaker, ctx.Err())
	}

	d.breaker.RecordResult(true)
	logger.Info().
		Str("speaker", d.opts.Speaker).
		Str("model", d.opts.Model).
		Int("sample_rate", d.opts.SampleRate).
		Msg("Recognition channel open")
	return nil
}

// markDown flags the connection as unusable without closing the channel.
func (d *DeepgramChannel) markDown() {
	d.mu.Lock()
	d.active = false
	d.mu.Unlock()
}

// attemptReconnect redials in the background until it succeeds, attempts
// run out, or the channel is closed.
func (d *DeepgramChannel) attemptReconnect() {
	d.mu.RLock()
	skip := d.closed || d.active
	d.mu.RUnlock()
	if skip {
		return
	}

	cfg := &resilience.RetryConfig{
		MaxAttempts:    d.opts.ReconnectMaxAttempts,
		InitialBackoff: d.opts.ReconnectBackoff,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}

	err := resilience.Retry(d.lifeCtx, func() error {
		openCtx, cancel := context.WithTimeout(d.lifeCtx, 10*time.Second)
		defer cancel()
		return d.Start(openCtx)
	}, cfg)

	logger := observability.GetLogger()
	if err != nil {
		logger.Error().
			Err(err).
			Str("speaker", d.opts.Speaker).
			Msg("Recognition channel reconnect failed")
		return
	}
	logger.Info().
		Str("speaker", d.opts.Speaker).
		Msg("Recognition channel reconnected")
}

func (d *DeepgramChannel) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		result := Result{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		}

		// The closed check and the send stay under the read lock; Close
		// takes the write lock before closing the channel.
		d.mu.RLock()
		if d.closed {
			d.mu.RUnlock()
			return
		}
		select {
		case d.results <- result:
		default:
			logger := observability.GetLogger()
			logger.Warn().
				Str("speaker", d.opts.Speaker).
				Msg("Result channel full, dropping hypothesis")
		}
		d.mu.RUnlock()

	case "Metadata", "SpeechStarted", "UtteranceEnd":
		// Timing events; the multiplexer works from results alone.

	default:
		logger := observability.GetLogger()
		logger.Debug().
			Str("speaker", d.opts.Speaker).
			Str("type", msg.Type).
			Msg("Unhandled recognition event")
	}
}

// Send forwards an audio chunk under circuit breaker protection.
func (d *DeepgramChannel) Send(pcm []byte) error {
	return d.breaker.Call(func() error {
		d.mu.RLock()
		active := d.active
		client := d.client
		d.mu.RUnlock()

		if !active || client == nil {
			return fmt.Errorf("recognition channel %q is not active", d.opts.Speaker)
		}
		if _, err := client.Write(pcm); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
		return nil
	})
}

// Results returns the hypothesis stream.
func (d *DeepgramChannel) Results() <-chan Result {
	return d.results
}

// Close finishes the session and stops any reconnection. Idempotent.
func (d *DeepgramChannel) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.active = false
	client := d.client
	d.mu.Unlock()

	d.lifeCancel()
	if client != nil {
		client.Finish()
	}

	// Delay the close so in-flight callback deliveries drain first.
	go func() {
		time.Sleep(100 * time.Millisecond)
		d.mu.Lock()
		close(d.results)
		d.mu.Unlock()
	}()

	logger := observability.GetLogger()
	logger.Info().
		Str("speaker", d.opts.Speaker).
		Msg("Recognition channel closed")
	return nil
}
