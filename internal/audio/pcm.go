package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// Stream formats used by the tutor.
const (
	// OutputSampleRate is the rate of synthesized and live reply audio.
	OutputSampleRate = 24000
	// InputSampleRate is the rate of microphone audio sent to live sessions.
	InputSampleRate = 16000
	// InputMIMEType labels microphone chunks for the live API.
	InputMIMEType = "audio/pcm;rate=16000"

	bytesPerSample = 2
)

// ErrOddLength indicates a PCM buffer that does not hold whole 16-bit samples.
var ErrOddLength = errors.New("PCM data length must be even (16-bit samples)")

// Buffer is decoded mono audio ready for scheduling.
type Buffer struct {
	Samples    []float32 // in [-1, 1)
	SampleRate int
}

// Duration returns how long the buffer plays.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// DecodePCM16 converts mono 16-bit little-endian PCM to float samples,
// dividing by 32768.
func DecodePCM16(pcm []byte, sampleRate int) (Buffer, error) {
	if len(pcm)%bytesPerSample != 0 {
		return Buffer{}, ErrOddLength
	}
	samples := make([]float32, len(pcm)/bytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// EncodeFloat32 converts float samples to 16-bit little-endian PCM,
// multiplying by 32768 and clamping to the int16 range.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

// PCMDuration returns the play time of mono 16-bit PCM at sampleRate.
func PCMDuration(nBytes, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := nBytes / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || len(samples) == 0 || inputRate <= 0 || outputRate <= 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	n := int(float64(len(samples)) * ratio)
	out := make([]float32, n)

	for i := range out {
		pos := float64(i) / ratio
		i0 := int(pos)
		i1 := i0 + 1
		if i1 >= len(samples) {
			i1 = len(samples) - 1
		}
		frac := float32(pos - float64(i0))
		out[i] = samples[i0]*(1-frac) + samples[i1]*frac
	}
	return out
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768.0)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
