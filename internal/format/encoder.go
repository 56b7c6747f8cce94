// Package format converts WAV audio into client-requested output formats by
// driving the external ffmpeg encoder through temporary files. When a target
// format's encoder is unavailable the conversion falls back to the lossless
// WAV bytes instead of failing the request.
package format

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/chatterbox-service/internal/core"
)

// Supported output formats.
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
	FormatOGG = "ogg"
)

// Media types for the supported formats.
const (
	MediaTypeWAV = "audio/wav"
	MediaTypeMP3 = "audio/mpeg"
	MediaTypeOGG = "audio/ogg"
)

const (
	ffmpegBinary    = "ffmpeg"
	filePermissions = 0o600
)

// FFmpegEncoder implements core.Encoder using the ffmpeg binary.
type FFmpegEncoder struct {
	log *logger.Logger
}

// Compile-time interface check.
var _ core.Encoder = (*FFmpegEncoder)(nil)

// NewFFmpegEncoder creates an encoder that shells out to ffmpeg.
func NewFFmpegEncoder(log *logger.Logger) *FFmpegEncoder {
	return &FFmpegEncoder{log: log}
}

// Encode converts WAV bytes into the requested format and returns the encoded
// bytes with their media type. WAV and unknown formats pass the input through
// unchanged; mp3 and ogg transcode via ffmpeg, falling back to WAV when the
// binary is missing or the conversion fails.
func (e *FFmpegEncoder) Encode(
	ctx context.Context,
	wavData []byte,
	format string,
) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case FormatMP3:
		return e.transcode(ctx, wavData, FormatMP3, MediaTypeMP3,
			"-codec:a", "libmp3lame", "-b:a", "128k")
	case FormatOGG:
		return e.transcode(ctx, wavData, FormatOGG, MediaTypeOGG,
			"-codec:a", "libvorbis", "-q:a", "4")
	case FormatWAV:
		return wavData, MediaTypeWAV, nil
	default:
		e.log.Warn("Unknown output format '%s', returning WAV", format)

		return wavData, MediaTypeWAV, nil
	}
}

// transcode runs ffmpeg over temp files. Any encoder-side failure is logged
// and recovered by returning the original WAV bytes.
func (e *FFmpegEncoder) transcode(
	ctx context.Context,
	wavData []byte,
	extension, mediaType string,
	codecArgs ...string,
) ([]byte, string, error) {
	_, lookErr := exec.LookPath(ffmpegBinary)
	if lookErr != nil {
		e.log.Warn("ffmpeg not found, returning WAV instead of %s", extension)

		return wavData, MediaTypeWAV, nil
	}

	workDir, err := os.MkdirTemp("", "chatterbox-encode-")
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to create temp dir: %w", core.ErrEncoding, err)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			e.log.Warn("Failed to remove temp dir '%s': %v", workDir, removeErr)
		}
	}()

	inputPath := filepath.Join(workDir, "input.wav")
	outputPath := filepath.Join(workDir, "output."+extension)

	writeErr := os.WriteFile(inputPath, wavData, filePermissions)
	if writeErr != nil {
		return nil, "", fmt.Errorf("%w: failed to write input wav: %w", core.ErrEncoding, writeErr)
	}

	args := append([]string{"-i", inputPath}, codecArgs...)
	args = append(args, "-y", outputPath)

	// #nosec G204 -- arguments are fixed codec flags plus generated temp paths
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		e.log.Error("ffmpeg conversion to %s failed: %v - output: %s",
			extension, runErr, string(output))

		return wavData, MediaTypeWAV, nil
	}

	encoded, readErr := os.ReadFile(outputPath)
	if readErr != nil {
		e.log.Error("Failed to read encoded %s output: %v", extension, readErr)

		return wavData, MediaTypeWAV, nil
	}

	return encoded, mediaType, nil
}
