// Package audio provides the waveform data model, WAV codec helpers and
// sample-accurate concatenation for the chatterbox-service.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/book-expert/chatterbox-service/internal/core"
)

// PCM encoding constants for the WAV files exchanged with the backend.
const (
	bitDepthPCM16  = 16
	wavAudioFormat = 1 // linear PCM
)

// ErrInvalidWaveData indicates bytes that do not parse as a WAV file.
var ErrInvalidWaveData = errors.New("invalid wav data")

// Waveform holds decoded linear PCM samples. Data stores one int per sample,
// interleaved by channel, as produced by the backend's 16-bit WAV output.
type Waveform struct {
	Data       []int
	SampleRate int
	Channels   int
}

// Decode parses WAV bytes into a Waveform.
func Decode(wavData []byte) (Waveform, error) {
	decoder := wav.NewDecoder(bytes.NewReader(wavData))
	if !decoder.IsValidFile() {
		return Waveform{}, ErrInvalidWaveData
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to decode wav data: %w", err)
	}

	return Waveform{
		Data:       buffer.Data,
		SampleRate: buffer.Format.SampleRate,
		Channels:   buffer.Format.NumChannels,
	}, nil
}

// Encode renders the waveform as 16-bit PCM WAV bytes. The wav encoder needs
// a seekable writer to patch up the header, so encoding goes through a
// temporary file.
func (w Waveform) Encode() ([]byte, error) {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return nil, ErrInvalidWaveData
	}

	file, err := os.CreateTemp("", "chatterbox-wav-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp wav file: %w", err)
	}

	defer func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}()

	encoder := wav.NewEncoder(file, w.SampleRate, bitDepthPCM16, w.Channels, wavAudioFormat)

	buffer := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: w.Channels,
			SampleRate:  w.SampleRate,
		},
		Data:           w.Data,
		SourceBitDepth: bitDepthPCM16,
	}

	writeErr := encoder.Write(buffer)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write wav samples: %w", writeErr)
	}

	closeErr := encoder.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to finalize wav encoding: %w", closeErr)
	}

	data, readErr := os.ReadFile(file.Name())
	if readErr != nil {
		return nil, fmt.Errorf("failed to read encoded wav: %w", readErr)
	}

	return data, nil
}

// Frames returns the number of sample frames in the waveform.
func (w Waveform) Frames() int {
	if w.Channels == 0 {
		return 0
	}

	return len(w.Data) / w.Channels
}

// Duration returns the playback duration in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}

	return float64(w.Frames()) / float64(w.SampleRate)
}

// Clone returns an equal-valued copy with its own sample buffer.
func (w Waveform) Clone() Waveform {
	data := make([]int, len(w.Data))
	copy(data, w.Data)

	return Waveform{
		Data:       data,
		SampleRate: w.SampleRate,
		Channels:   w.Channels,
	}
}

// Concatenate joins ordered waveforms into one continuous waveform by raw
// sample-buffer append. No gaps, no crossfade, no resampling: every input
// must already share the sample rate and channel count. An empty list and
// mismatched inputs are explicit errors, never silent successes.
func Concatenate(waveforms []Waveform) (Waveform, error) {
	if len(waveforms) == 0 {
		return Waveform{}, core.ErrEmptyWaveformList
	}

	first := waveforms[0]
	if len(waveforms) == 1 {
		return first.Clone(), nil
	}

	totalSamples := 0

	for index, waveform := range waveforms {
		if waveform.SampleRate != first.SampleRate {
			return Waveform{}, fmt.Errorf(
				"%w: waveform %d has rate %d, expected %d",
				core.ErrSampleRateMismatch, index, waveform.SampleRate, first.SampleRate,
			)
		}

		if waveform.Channels != first.Channels {
			return Waveform{}, fmt.Errorf(
				"%w: waveform %d has %d channels, expected %d",
				core.ErrChannelMismatch, index, waveform.Channels, first.Channels,
			)
		}

		totalSamples += len(waveform.Data)
	}

	data := make([]int, 0, totalSamples)
	for _, waveform := range waveforms {
		data = append(data, waveform.Data...)
	}

	return Waveform{
		Data:       data,
		SampleRate: first.SampleRate,
		Channels:   first.Channels,
	}, nil
}
