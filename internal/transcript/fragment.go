package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/evercall/voicebridge/internal/audio"
)

// DedupWindow is how close two identical fragments must land to count as the
// same utterance. Both recognition channels occasionally hear the other
// speaker through echo, producing near-simultaneous duplicates.
const DedupWindow = 2000 * time.Millisecond

// Fragment is one final piece of transcript attributed to a speaker.
type Fragment struct {
	Speaker    audio.Speaker `json:"speaker"`
	Text       string        `json:"text"`
	Timestamp  time.Time     `json:"timestamp"`
	IsFinal    bool          `json:"isFinal"`
	Confidence float64       `json:"confidence"`
}

// Log accumulates promoted fragments and answers duplicate queries. It keeps
// the full call transcript; calls are short enough that pruning is not worth
// the bookkeeping.
type Log struct {
	mu        sync.Mutex
	fragments []Fragment
}

// NewLog creates an empty transcript log.
func NewLog() *Log {
	return &Log{}
}

// IsDuplicate reports whether an equivalent fragment was already recorded:
// same speaker, same trimmed text, timestamps within DedupWindow.
func (l *Log) IsDuplicate(f Fragment) bool {
	text := strings.TrimSpace(f.Text)
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.fragments) - 1; i >= 0; i-- {
		prev := l.fragments[i]
		delta := f.Timestamp.Sub(prev.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta > DedupWindow {
			// Entries are appended in time order; everything earlier is
			// further away still.
			break
		}
		if prev.Speaker == f.Speaker && strings.TrimSpace(prev.Text) == text {
			return true
		}
	}
	return false
}

// Append records a fragment.
func (l *Log) Append(f Fragment) {
	l.mu.Lock()
	l.fragments = append(l.fragments, f)
	l.mu.Unlock()
}

// Fragments returns a copy of everything recorded so far, in order.
func (l *Log) Fragments() []Fragment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Fragment, len(l.fragments))
	copy(out, l.fragments)
	return out
}

// Len reports the number of recorded fragments.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fragments)
}
