// Package core defines the collaborator contracts and shared types for the
// chatterbox-service.
package core

import (
	"context"
	"errors"
)

// Parameter ranges accepted by the synthesis backend.
const (
	MinExaggeration = 0.0
	MaxExaggeration = 2.0
	MinGuidance     = 0.0
	MaxGuidance     = 1.0
	MinTemperature  = 0.1
	MaxTemperature  = 2.0
)

// Default synthesis parameters, matching the backend's own defaults.
const (
	DefaultExaggeration = 0.5
	DefaultGuidance     = 0.5
	DefaultTemperature  = 1.0
)

// Failure taxonomy. Each class maps to a distinct client-facing behavior:
// validation rejects before enqueue, timeout abandons the wait, synthesis and
// concatenation fail the job, encoding recovers locally by falling back to WAV.
var (
	// ErrValidation indicates a malformed or out-of-range request.
	ErrValidation = errors.New("request validation failed")
	// ErrTimeout indicates the submitter gave up waiting for a job.
	ErrTimeout = errors.New("timed out waiting for job")
	// ErrSynthesis indicates the synthesis backend failed for a text or segment.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrEmptyWaveformList indicates concatenation was asked to join zero waveforms.
	ErrEmptyWaveformList = errors.New("cannot concatenate empty waveform list")
	// ErrSampleRateMismatch indicates concatenation inputs disagree on sample rate.
	ErrSampleRateMismatch = errors.New("sample rate mismatch between waveforms")
	// ErrChannelMismatch indicates concatenation inputs disagree on channel count.
	ErrChannelMismatch = errors.New("channel count mismatch between waveforms")
	// ErrEncoding indicates a format conversion failed.
	ErrEncoding = errors.New("audio encoding failed")
)

// SynthesisParams holds the per-request generation controls passed through to
// the backend. ReferenceAudioPath, when set, points at a server-side audio
// file used to condition the generated voice.
type SynthesisParams struct {
	Exaggeration       float64
	Guidance           float64
	Temperature        float64
	ReferenceAudioPath string
}

// DefaultSynthesisParams returns the backend defaults for all controls.
func DefaultSynthesisParams() SynthesisParams {
	return SynthesisParams{
		Exaggeration:       DefaultExaggeration,
		Guidance:           DefaultGuidance,
		Temperature:        DefaultTemperature,
		ReferenceAudioPath: "",
	}
}

// Synthesizer is the contract for the speech-generation backend. It is
// assumed expensive and not safely callable concurrently with itself; the job
// queue guarantees at most one call is in flight.
type Synthesizer interface {
	// Synthesize converts one text segment into WAV audio bytes.
	Synthesize(ctx context.Context, text string, params SynthesisParams) ([]byte, error)
	// Health probes the backend, returning nil when it is ready.
	Health(ctx context.Context) error
}

// Encoder converts WAV audio into a named output format. Implementations may
// fall back to the lossless WAV representation when the target format's
// encoder is unavailable, logging instead of failing.
type Encoder interface {
	Encode(ctx context.Context, wavData []byte, format string) (data []byte, mediaType string, err error)
}

// ObjectStore is the contract for the audio archive blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}
