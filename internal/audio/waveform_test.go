// Package audio_test tests waveform encoding and concatenation.
package audio_test

import (
	"testing"

	"github.com/book-expert/chatterbox-service/internal/audio"
	"github.com/book-expert/chatterbox-service/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 22050

func rampWaveform(samples int) audio.Waveform {
	data := make([]int, samples)
	for i := range data {
		data[i] = i % 256
	}

	return audio.Waveform{
		Data:       data,
		SampleRate: testSampleRate,
		Channels:   1,
	}
}

func TestConcatenateEmptyListFails(t *testing.T) {
	t.Parallel()

	_, err := audio.Concatenate(nil)

	require.ErrorIs(t, err, core.ErrEmptyWaveformList)
}

func TestConcatenateSingleWaveformReturnsCopy(t *testing.T) {
	t.Parallel()

	original := rampWaveform(100)

	result, err := audio.Concatenate([]audio.Waveform{original})
	require.NoError(t, err)

	assert.Equal(t, original.Data, result.Data)
	assert.Equal(t, original.SampleRate, result.SampleRate)

	// The copy must own its buffer.
	result.Data[0] = -1
	assert.Zero(t, original.Data[0])
}

func TestConcatenateJoinsSamplesInOrder(t *testing.T) {
	t.Parallel()

	first := audio.Waveform{Data: []int{1, 2, 3}, SampleRate: testSampleRate, Channels: 1}
	second := audio.Waveform{Data: []int{4, 5}, SampleRate: testSampleRate, Channels: 1}
	third := audio.Waveform{Data: []int{6}, SampleRate: testSampleRate, Channels: 1}

	result, err := audio.Concatenate([]audio.Waveform{first, second, third})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, result.Data)
}

func TestConcatenateDurationIsSumOfParts(t *testing.T) {
	t.Parallel()

	parts := []audio.Waveform{rampWaveform(11025), rampWaveform(22050), rampWaveform(5512)}

	result, err := audio.Concatenate(parts)
	require.NoError(t, err)

	var expected float64
	for _, part := range parts {
		expected += part.Duration()
	}

	assert.InEpsilon(t, expected, result.Duration(), 0.0001)
}

func TestConcatenateSampleRateMismatchFails(t *testing.T) {
	t.Parallel()

	first := rampWaveform(10)
	second := rampWaveform(10)
	second.SampleRate = 44100

	_, err := audio.Concatenate([]audio.Waveform{first, second})

	require.ErrorIs(t, err, core.ErrSampleRateMismatch)
}

func TestConcatenateChannelMismatchFails(t *testing.T) {
	t.Parallel()

	first := rampWaveform(10)
	second := rampWaveform(10)
	second.Channels = 2

	_, err := audio.Concatenate([]audio.Waveform{first, second})

	require.ErrorIs(t, err, core.ErrChannelMismatch)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	original := rampWaveform(2048)

	wavData, err := original.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, wavData)

	decoded, err := audio.Decode(wavData)
	require.NoError(t, err)

	assert.Equal(t, original.SampleRate, decoded.SampleRate)
	assert.Equal(t, original.Channels, decoded.Channels)
	assert.Equal(t, original.Data, decoded.Data)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := audio.Decode([]byte("definitely not a wav file"))

	require.Error(t, err)
}

func TestDurationOfKnownWaveform(t *testing.T) {
	t.Parallel()

	waveform := rampWaveform(testSampleRate) // exactly one second

	assert.InEpsilon(t, 1.0, waveform.Duration(), 0.0001)
}
