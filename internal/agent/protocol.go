package agent

import "encoding/json"

// Control message types on the agent socket. Binary frames carry 16 kHz
// s16le PCM in both directions; text frames carry these JSON envelopes.
const (
	// TypeAgentReady is sent by the platform once its pipeline is live and
	// it is safe to start streaming microphone audio.
	TypeAgentReady = "status_agent_ready"

	// TypeClientReady is sent by us once the microphone has actually
	// produced data, completing the readiness handshake.
	TypeClientReady = "status_client_ready"
)

// ControlMessage is the envelope for text frames on the agent socket.
type ControlMessage struct {
	Type string `json:"type"`
}

// EncodeControl serializes a control message.
func EncodeControl(msgType string) []byte {
	data, _ := json.Marshal(ControlMessage{Type: msgType})
	return data
}

// DecodeControl parses a text frame. A decode error means the frame was not
// a control message at all; callers log and ignore it.
func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}
