package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evercall/voicebridge/internal/agent"
	"github.com/evercall/voicebridge/internal/audio"
	"github.com/evercall/voicebridge/internal/capture"
	"github.com/evercall/voicebridge/internal/config"
	"github.com/evercall/voicebridge/internal/observability"
	"github.com/evercall/voicebridge/internal/playback"
	"github.com/evercall/voicebridge/internal/provision"
	"github.com/evercall/voicebridge/internal/relay"
	"github.com/evercall/voicebridge/internal/stt"
	"github.com/evercall/voicebridge/internal/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	callID := observability.NewCallID()
	logger := observability.WithCallID(callID)

	if cfg.AgentAssistantID == "" {
		logger.Fatal().Msg("AGENT_ASSISTANT_ID is required")
	}

	ctx := context.Background()

	// Provision credentials through the server; the call process never sees
	// long-lived API keys.
	prov := provision.NewClient(cfg.ServerURL)
	sessionURL, err := prov.GetSessionURL(ctx, cfg.AgentAssistantID)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to provision agent session")
	}
	token, err := prov.GetRecognitionToken(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to fetch recognition token")
	}

	relayClient := relay.NewClient(cfg.RelayURL, logger)

	player, err := playback.NewPlayer(cfg.PlaybackSampleRate, cfg.PlaybackMaxFrames, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open playback device")
	}

	mux := transcript.NewMultiplexer(transcript.MultiplexerConfig{
		Factory: func(speaker string) stt.Channel {
			return stt.NewDeepgramChannel(stt.DeepgramOptions{
				APIKey:                     token,
				Speaker:                    speaker,
				Model:                      cfg.RecognitionModel,
				Language:                   cfg.RecognitionLanguage,
				SampleRate:                 cfg.RecognitionSampleRate,
				CircuitBreakerMaxFailures:  cfg.CircuitBreakerMaxFailures,
				CircuitBreakerResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
				ReconnectMaxAttempts:       cfg.ReconnectMaxAttempts,
				ReconnectBackoff:           time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
			})
		},
		OpenTimeout:           time.Duration(cfg.RecognitionOpenTimeout) * time.Second,
		RecognitionSampleRate: cfg.RecognitionSampleRate,
		OnFragment: func(f transcript.Fragment) {
			relayClient.SendTranscript(f)
		},
	}, logger)
	mux.Connect(ctx)

	var session *agent.Session

	pipeline := capture.NewPipeline(capture.Config{
		SampleRate:    cfg.CaptureSampleRate,
		WindowSamples: cfg.CaptureWindowSamples,
		OnWindow: func(frame audio.Frame) {
			if err := session.SendAudio(frame.PCM); err != nil {
				logger.Warn().Err(err).Msg("Dropped capture window")
			}
			mux.Submit(frame)
		},
		OnStarted: func() {
			if err := session.NotifyRecordingStarted(); err != nil {
				logger.Warn().Err(err).Msg("Failed to signal recording start")
			}
		},
	}, logger)

	session = agent.NewSession(agent.SessionConfig{
		SessionURL: sessionURL,
		OnAudio: func(pcm []int16) {
			player.Enqueue(pcm)
			relayClient.SendAudio(pcm)
			mux.Submit(audio.NewAssistantFrame(pcm, cfg.PlaybackSampleRate))
		},
		OnAgentReady: func() {
			if err := pipeline.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start capture")
				session.Disconnect()
			}
		},
		OnStateChange: func(state agent.State) {
			logger.Info().Str("state", state.String()).Msg("Session state changed")
		},
	}, logger)

	manager := agent.NewManager()
	if err := manager.Begin(session); err != nil {
		logger.Fatal().Err(err).Msg("Cannot start call")
	}

	if err := session.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to agent")
	}

	logger.Info().Str("call_id", callID).Msg("Call started, press Ctrl+C to hang up")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info().Msg("Hanging up")
	case <-session.Done():
		logger.Info().Msg("Session ended by agent")
	}

	pipeline.Stop()
	session.Disconnect()
	mux.Disconnect()

	relayClient.SendCallEnded()
	relayClient.Close()
	player.Close()
	manager.End(session)

	logger.Info().Int("transcript_fragments", len(mux.Transcript())).Msg("Call finished")
}
