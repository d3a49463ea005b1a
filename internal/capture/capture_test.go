package capture

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/audio"
)

// deviceChunk packs samples the way the input device delivers them.
func deviceChunk(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestPipeline_StartSignalOnFirstWindow(t *testing.T) {
	var mu sync.Mutex
	var events []string
	started := 0

	p := NewPipeline(Config{
		SampleRate:    48000,
		WindowSamples: 4,
		OnWindow: func(f audio.Frame) {
			mu.Lock()
			events = append(events, "window")
			mu.Unlock()
			if f.Speaker != audio.SpeakerUser {
				t.Errorf("Speaker = %s, want user", f.Speaker)
			}
			if len(f.PCM) != 4 {
				t.Errorf("Window size = %d, want 4", len(f.PCM))
			}
		},
		OnStarted: func() {
			mu.Lock()
			started++
			events = append(events, "started")
			mu.Unlock()
		},
	}, zerolog.Nop())

	p.wg.Add(1)
	go p.accumulate()

	// A partial chunk, then enough to finish two windows. The first window
	// is silent, the second carries signal.
	p.chunks <- deviceChunk([]float32{0, 0})
	p.chunks <- deviceChunk([]float32{0, 0, 0.5, 0.5, 0.5, 0.5})
	close(p.chunks)
	p.wg.Wait()

	if started != 1 {
		t.Errorf("OnStarted fired %d times, want 1", started)
	}
	want := []string{"started", "window", "window"}
	if len(events) != len(want) {
		t.Fatalf("Events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("Events = %v, want %v", events, want)
		}
	}
}

func TestPipeline_NoStartSignalWithoutFullWindow(t *testing.T) {
	started := 0
	windows := 0

	p := NewPipeline(Config{
		SampleRate:    48000,
		WindowSamples: 8,
		OnWindow:      func(audio.Frame) { windows++ },
		OnStarted:     func() { started++ },
	}, zerolog.Nop())

	p.wg.Add(1)
	go p.accumulate()

	p.chunks <- deviceChunk([]float32{0.1, 0.2, 0.3})
	close(p.chunks)
	p.wg.Wait()

	if started != 0 {
		t.Errorf("OnStarted fired %d times before a full window", started)
	}
	if windows != 0 {
		t.Errorf("Emitted %d windows from a partial buffer", windows)
	}
}
