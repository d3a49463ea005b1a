package relay

import (
	"encoding/json"
	"time"

	"github.com/evercall/voicebridge/internal/transcript"
)

// Message types on the relay socket.
const (
	TypeAudio      = "audio"
	TypeTranscript = "transcript"
	TypeCallEnded  = "call_ended"
)

// timestampLayout matches ISO 8601 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Message is the envelope every relay frame travels in. Data is left raw so
// the hub can rebroadcast frames without knowing every payload shape.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// NewAudioMessage wraps a chunk of 16-bit PCM samples.
func NewAudioMessage(pcm []int16) Message {
	data, _ := json.Marshal(pcm)
	return Message{Type: TypeAudio, Data: data, Timestamp: now()}
}

// NewTranscriptMessage wraps a promoted transcript fragment.
func NewTranscriptMessage(f transcript.Fragment) Message {
	data, _ := json.Marshal(f)
	return Message{Type: TypeTranscript, Data: data, Timestamp: now()}
}

// NewCallEndedMessage signals the end of the call to all observers.
func NewCallEndedMessage() Message {
	return Message{Type: TypeCallEnded, Timestamp: now()}
}
