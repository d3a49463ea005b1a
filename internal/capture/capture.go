package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/audio"
	"github.com/evercall/voicebridge/internal/observability"
)

// Config configures the microphone capture pipeline.
type Config struct {
	// SampleRate is the capture rate in Hz.
	SampleRate int

	// WindowSamples is how many samples accumulate before a window is
	// emitted. Smaller windows mean lower latency and more per-window
	// overhead.
	WindowSamples int

	// OnWindow receives each completed window as a user frame, in capture
	// order, from a single goroutine.
	OnWindow func(audio.Frame)

	// OnStarted fires once, from the worker goroutine, when the first full
	// window has been assembled.
	OnStarted func()
}

// silenceRMSThreshold is the RMS floor below which a window reads as zero
// on the capture level gauge.
const silenceRMSThreshold = 100

// Pipeline captures mono float32 audio from the default input device and
// emits fixed-size windows of 16-bit PCM. The device callback does no work
// beyond handing bytes off; accumulation and conversion happen on a worker
// goroutine so the audio thread is never blocked.
type Pipeline struct {
	cfg    Config
	logger zerolog.Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	chunks      chan []byte
	startedOnce sync.Once
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewPipeline creates an unstarted pipeline.
func NewPipeline(cfg Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		chunks: make(chan []byte, 64),
	}
}

// Start opens the input device and begins capturing.
func (p *Pipeline) Start() error {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to init capture context: %w", err)
	}
	p.ctx = mctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(p.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// The device owns the input buffer; copy before queueing.
			chunk := make([]byte, len(input))
			copy(chunk, input)
			select {
			case p.chunks <- chunk:
			default:
				// The worker is behind; drop rather than stall the
				// audio thread.
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		return fmt.Errorf("failed to init input device: %w", err)
	}
	p.device = device

	p.wg.Add(1)
	go p.accumulate()

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		close(p.chunks)
		p.wg.Wait()
		return fmt.Errorf("failed to start input device: %w", err)
	}

	p.logger.Info().
		Int("sample_rate", p.cfg.SampleRate).
		Int("window_samples", p.cfg.WindowSamples).
		Msg("Capture started")
	return nil
}

// accumulate assembles device chunks into fixed-size windows.
func (p *Pipeline) accumulate() {
	defer p.wg.Done()

	window := make([]float32, 0, p.cfg.WindowSamples)
	for chunk := range p.chunks {
		window = append(window, bytesToFloat32(chunk)...)
		for len(window) >= p.cfg.WindowSamples {
			pcm := audio.FloatToInt16(window[:p.cfg.WindowSamples])
			window = append(window[:0], window[p.cfg.WindowSamples:]...)

			p.startedOnce.Do(func() {
				if p.cfg.OnStarted != nil {
					p.cfg.OnStarted()
				}
			})

			if audio.IsSilence(pcm, silenceRMSThreshold) {
				observability.SetCaptureLevel(0)
			} else {
				observability.SetCaptureLevel(audio.RMS(pcm))
			}
			if p.cfg.OnWindow != nil {
				p.cfg.OnWindow(audio.NewUserFrame(pcm, p.cfg.SampleRate))
			}
		}
	}
}

// Stop stops the device and waits for the worker to drain. Idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		if p.device != nil {
			p.device.Stop()
			p.device.Uninit()
		}
		close(p.chunks)
		p.wg.Wait()
		if p.ctx != nil {
			p.ctx.Uninit()
			p.ctx.Free()
		}
		p.logger.Info().Msg("Capture stopped")
	})
}

// bytesToFloat32 reinterprets little-endian float32 device output. A
// trailing partial sample is dropped.
func bytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
