package audio

// Speaker identifies which side of the call produced a piece of audio or
// transcript text.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Encoding is the sample format carried by a Frame.
type Encoding string

const (
	EncodingInt16   Encoding = "int16"
	EncodingFloat32 Encoding = "float32"
)

// Frame is an immutable chunk of mono linear PCM. It is created by the
// capture pipeline (user) or decoded from the agent socket (assistant) and
// consumed exactly once by its sink; callers must not mutate PCM after
// construction.
type Frame struct {
	Speaker    Speaker
	SampleRate int
	Encoding   Encoding
	PCM        []int16
}

// NewUserFrame wraps capture output (48 kHz int16 after conversion).
func NewUserFrame(pcm []int16, sampleRate int) Frame {
	return Frame{Speaker: SpeakerUser, SampleRate: sampleRate, Encoding: EncodingInt16, PCM: pcm}
}

// NewAssistantFrame wraps agent audio (16 kHz int16 off the wire).
func NewAssistantFrame(pcm []int16, sampleRate int) Frame {
	return Frame{Speaker: SpeakerAssistant, SampleRate: sampleRate, Encoding: EncodingInt16, PCM: pcm}
}
