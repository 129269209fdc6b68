package audio

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrDeviceClosed is returned when scheduling on a closed device.
var ErrDeviceClosed = errors.New("audio device is closed")

// DeviceConfig contains configuration for the output device.
type DeviceConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // 16 bits per sample
	BufferSize int // bytes of driver buffer
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate: 48000,
		Channels:   1,
		BitDepth:   16,
		BufferSize: 4096,
	}
}

// Device is an Output backed by the system audio device. Its clock starts
// when the device opens. Buffers are resampled to the device rate.
//
// oto allows a single context per process, so open one Device and share it.
type Device struct {
	context *oto.Context
	config  DeviceConfig
	opened  time.Time

	volume atomic.Uint64 // float64 bits
	closed atomic.Bool
}

// NewDevice opens the audio device.
func NewDevice(config DeviceConfig) (*Device, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*2),
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	d := &Device{
		context: ctx,
		config:  config,
		opened:  time.Now(),
	}
	d.SetVolume(1.0)
	return d, nil
}

func validateConfig(config DeviceConfig) error {
	// oto only supports these rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}

	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}

	return nil
}

// Now returns time elapsed since the device opened.
func (d *Device) Now() time.Duration {
	return time.Since(d.opened)
}

// SetVolume sets the volume for buffers started afterwards, clamped to [0, 1].
func (d *Device) SetVolume(v float64) {
	v = math.Max(0, math.Min(1, v))
	d.volume.Store(math.Float64bits(v))
}

// Volume returns the current volume.
func (d *Device) Volume() float64 {
	return math.Float64frombits(d.volume.Load())
}

// Start plays buf at the device time at. Times in the past start immediately.
func (d *Device) Start(buf Buffer, at time.Duration, onEnded func()) (Handle, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	if len(buf.Samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	h := &deviceHandle{
		data:     d.render(buf),
		duration: buf.Duration(),
	}

	delay := at - d.Now()
	if delay < 0 {
		delay = 0
	}
	h.mu.Lock()
	h.startTimer = time.AfterFunc(delay, func() { h.begin(d, onEnded) })
	h.mu.Unlock()
	return h, nil
}

// render converts buf to interleaved 16-bit PCM at the device format.
func (d *Device) render(buf Buffer) []byte {
	samples := Resample(buf.Samples, buf.SampleRate, d.config.SampleRate)
	if d.config.Channels == 2 {
		stereo := make([]float32, len(samples)*2)
		for i, s := range samples {
			stereo[2*i] = s
			stereo[2*i+1] = s
		}
		samples = stereo
	}
	return EncodeFloat32(samples)
}

// Close suspends the device. Buffers already started are cut off.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.context.Suspend()
}

// deviceHandle keeps the rendered PCM alive until playback finishes.
type deviceHandle struct {
	data     []byte
	duration time.Duration

	mu         sync.Mutex
	player     *oto.Player
	startTimer *time.Timer
	endTimer   *time.Timer
	done       bool
}

func (h *deviceHandle) begin(d *Device, onEnded func()) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	player := d.context.NewPlayer(bytes.NewReader(h.data))
	player.SetVolume(d.Volume())
	player.Play()
	h.player = player
	h.endTimer = time.AfterFunc(h.duration, func() { h.finish(onEnded) })
	h.mu.Unlock()
}

func (h *deviceHandle) finish(onEnded func()) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	h.done = true
	h.release()
	h.mu.Unlock()

	if onEnded != nil {
		onEnded()
	}
}

// Stop cuts the buffer off. The end callback is not called.
func (h *deviceHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return
	}
	h.done = true
	h.release()
}

// release must be called with h.mu held.
func (h *deviceHandle) release() {
	if h.startTimer != nil {
		h.startTimer.Stop()
	}
	if h.endTimer != nil {
		h.endTimer.Stop()
	}
	if h.player != nil {
		if h.player.IsPlaying() {
			h.player.Pause()
		}
		_ = h.player.Close()
		h.player = nil
	}
	h.data = nil
}
