package gateway

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// EnergyDetector is a speech-activity detector that classifies audio by
// frame energy. It understands PCM16 WAV payloads and falls back to
// treating the input as raw little-endian PCM16.
type EnergyDetector struct {
	// Threshold is the RMS amplitude (0..1) above which a frame counts
	// as speech.
	Threshold float64
	// MinFrames is how many speech frames are required before the audio
	// is classified as containing speech.
	MinFrames int
	// FrameSize is the number of samples per analysis frame.
	FrameSize int
}

// NewEnergyDetector returns a detector with defaults tuned for 16 kHz
// voice recordings (30 ms frames).
func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{
		Threshold: 0.015,
		MinFrames: 3,
		FrameSize: 480,
	}
}

// DetectSpeech reports whether the audio contains speech.
func (d *EnergyDetector) DetectSpeech(_ context.Context, audio []byte) (bool, error) {
	samples, err := pcm16Samples(audio)
	if err != nil {
		return false, fmt.Errorf("detect speech: %w", err)
	}
	if len(samples) == 0 {
		return false, nil
	}

	frameSize := d.FrameSize
	if frameSize <= 0 {
		frameSize = 480
	}

	speechFrames := 0
	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		if frameRMS(samples[start:end]) >= d.Threshold {
			speechFrames++
			if speechFrames >= d.MinFrames {
				return true, nil
			}
		}
	}
	return false, nil
}

func frameRMS(samples []int16) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// pcm16Samples extracts little-endian PCM16 samples from a WAV payload,
// or from the raw bytes when no RIFF header is present.
func pcm16Samples(audio []byte) ([]int16, error) {
	data := audio
	if len(audio) >= 12 && string(audio[0:4]) == "RIFF" && string(audio[8:12]) == "WAVE" {
		var err error
		data, err = wavDataChunk(audio[12:])
		if err != nil {
			return nil, err
		}
	}

	samples := make([]int16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		samples = append(samples, int16(binary.LittleEndian.Uint16(data[i:i+2])))
	}
	return samples, nil
}

// wavDataChunk walks RIFF sub-chunks and returns the payload of the
// "data" chunk.
func wavDataChunk(b []byte) ([]byte, error) {
	for len(b) >= 8 {
		id := string(b[0:4])
		size := int(binary.LittleEndian.Uint32(b[4:8]))
		b = b[8:]
		if size < 0 || size > len(b) {
			size = len(b)
		}
		if id == "data" {
			return b[:size], nil
		}
		// Chunks are word-aligned.
		if size%2 == 1 && size < len(b) {
			size++
		}
		b = b[size:]
	}
	return nil, fmt.Errorf("wav payload has no data chunk")
}
