package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_active_calls",
		Help: "Number of active call sessions",
	})

	totalCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_calls_total",
		Help: "Total number of call sessions started",
	})

	callDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebridge_call_duration_seconds",
		Help:    "Duration of call sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"speaker"})

	relayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_relay_messages_total",
		Help: "Relay messages broadcast, by type",
	}, []string{"type"})

	relayObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_relay_observers",
		Help: "Number of connected downstream observers",
	})

	relayDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_relay_malformed_messages_total",
		Help: "Observer messages dropped because they were not valid JSON",
	})

	transcriptFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_transcript_fragments_total",
		Help: "Final transcript fragments, by outcome (kept or duplicate)",
	}, []string{"outcome"})

	recognitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_recognition_errors_total",
		Help: "Recognition channel errors, by speaker channel",
	}, []string{"speaker"})

	playbackDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_playback_dropped_frames_total",
		Help: "Playback frames dropped by the queue depth cap",
	})

	captureLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_capture_level_rms",
		Help: "RMS level of the most recent capture window",
	})
)

// CallMetrics tracks metrics for a single call session.
type CallMetrics struct {
	startTime time.Time
}

// NewCallMetrics records a call start and returns its tracker.
func NewCallMetrics() *CallMetrics {
	activeCalls.Inc()
	totalCalls.Inc()
	return &CallMetrics{startTime: time.Now()}
}

// RecordCallEnd records the end of the call.
func (m *CallMetrics) RecordCallEnd() {
	activeCalls.Dec()
	callDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordAudioBytes records audio volume per speaker channel.
func RecordAudioBytes(speaker string, n int) {
	audioBytes.WithLabelValues(speaker).Add(float64(n))
}

// RecordRelayMessage records one broadcast relay message.
func RecordRelayMessage(msgType string) {
	relayMessages.WithLabelValues(msgType).Inc()
}

// SetRelayObservers records the current observer count.
func SetRelayObservers(n int) {
	relayObservers.Set(float64(n))
}

// RecordRelayMalformed records a dropped non-JSON observer message.
func RecordRelayMalformed() {
	relayDropped.Inc()
}

// RecordTranscriptFragment records a promoted or discarded final fragment.
func RecordTranscriptFragment(outcome string) {
	transcriptFragments.WithLabelValues(outcome).Inc()
}

// RecordRecognitionError records a failure on one recognition channel.
func RecordRecognitionError(speaker string) {
	recognitionErrors.WithLabelValues(speaker).Inc()
}

// RecordPlaybackDrop records a frame discarded by the playback queue cap.
func RecordPlaybackDrop() {
	playbackDroppedFrames.Inc()
}

// SetCaptureLevel records the RMS of the latest capture window.
func SetCaptureLevel(rms float64) {
	captureLevel.Set(rms)
}
