package transcript

import (
	"testing"
	"time"

	"github.com/evercall/voicebridge/internal/audio"
)

func frag(speaker audio.Speaker, text string, at time.Time) Fragment {
	return Fragment{Speaker: speaker, Text: text, Timestamp: at, IsFinal: true, Confidence: 0.9}
}

func TestLog_DuplicateWithinWindow(t *testing.T) {
	l := NewLog()
	base := time.Now()

	l.Append(frag(audio.SpeakerUser, "hello there", base))

	if !l.IsDuplicate(frag(audio.SpeakerUser, "hello there", base.Add(500*time.Millisecond))) {
		t.Error("Expected identical text 500ms later to be a duplicate")
	}
	if !l.IsDuplicate(frag(audio.SpeakerUser, "  hello there  ", base.Add(time.Second))) {
		t.Error("Expected whitespace-padded text to be a duplicate")
	}
}

func TestLog_NotDuplicateOutsideWindow(t *testing.T) {
	l := NewLog()
	base := time.Now()

	l.Append(frag(audio.SpeakerUser, "hello there", base))

	if l.IsDuplicate(frag(audio.SpeakerUser, "hello there", base.Add(3*time.Second))) {
		t.Error("Expected identical text 3s later to be kept as a repeat")
	}
}

func TestLog_DifferentSpeakerNotDuplicate(t *testing.T) {
	l := NewLog()
	base := time.Now()

	l.Append(frag(audio.SpeakerUser, "hello there", base))

	if l.IsDuplicate(frag(audio.SpeakerAssistant, "hello there", base.Add(100*time.Millisecond))) {
		t.Error("Expected same text from the other speaker to be kept")
	}
}

func TestLog_DifferentTextNotDuplicate(t *testing.T) {
	l := NewLog()
	base := time.Now()

	l.Append(frag(audio.SpeakerUser, "hello there", base))

	if l.IsDuplicate(frag(audio.SpeakerUser, "hello where", base.Add(100*time.Millisecond))) {
		t.Error("Expected different text to be kept")
	}
}

func TestLog_FragmentsReturnsCopyInOrder(t *testing.T) {
	l := NewLog()
	base := time.Now()
	l.Append(frag(audio.SpeakerUser, "one", base))
	l.Append(frag(audio.SpeakerAssistant, "two", base.Add(time.Second)))

	got := l.Fragments()
	if len(got) != 2 || got[0].Text != "one" || got[1].Text != "two" {
		t.Fatalf("Unexpected transcript contents: %+v", got)
	}

	got[0].Text = "mutated"
	if l.Fragments()[0].Text != "one" {
		t.Error("Fragments should return a copy, not the backing slice")
	}
}
