package playback

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/audio"
	"github.com/evercall/voicebridge/internal/observability"
)

// Player drives the output device from a frame queue. The device pulls
// samples at its own clock; when the queue runs dry the player substitutes
// silence, so gaps in agent audio produce quiet rather than glitches or
// blocking.
type Player struct {
	logger zerolog.Logger
	queue  *audio.FrameQueue

	otoCtx *oto.Context
	player *oto.Player

	mu          sync.Mutex
	lastDropped uint64
	closed      bool
}

// NewPlayer opens the output device at the given rate.
func NewPlayer(sampleRate, maxFrames int, logger zerolog.Logger) (*Player, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to init output device: %w", err)
	}
	<-ready

	p := &Player{
		logger: logger,
		queue:  audio.NewFrameQueue(maxFrames),
		otoCtx: otoCtx,
	}
	p.player = otoCtx.NewPlayer(p)
	p.player.Play()

	logger.Info().Int("sample_rate", sampleRate).Msg("Playback started")
	return p, nil
}

// Enqueue queues a chunk of agent audio for playback. Called from the
// single goroutine reading the agent socket.
func (p *Player) Enqueue(pcm []int16) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	p.queue.Push(audio.Int16ToFloat(pcm))

	if dropped := p.queue.Dropped(); dropped > p.lastDropped {
		for i := p.lastDropped; i < dropped; i++ {
			observability.RecordPlaybackDrop()
		}
		p.lastDropped = dropped
		p.logger.Warn().Uint64("dropped_total", dropped).Msg("Playback queue full, dropping oldest audio")
	}
}

// Read implements io.Reader for the output device. It always fills p,
// padding with silence once the queue is empty.
func (p *Player) Read(buf []byte) (int, error) {
	n := len(buf) / 2
	for i := 0; i < n; i++ {
		sample, ok := p.queue.Pull()
		var s int16
		if ok {
			s = floatToSample(sample)
		}
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(uint16(s) >> 8)
	}
	return n * 2, nil
}

// Buffered reports how many samples are queued but not yet played.
func (p *Player) Buffered() int {
	return p.queue.Len()
}

// Close stops playback and discards queued audio. Idempotent.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.player.Close()
	p.queue.Reset()
	p.logger.Info().Msg("Playback stopped")
}

func floatToSample(s float32) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7fff)
}
