package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMainFlags verifies that command-line flags are parsed correctly.
func TestMainFlags(t *testing.T) {
	oldArgs := os.Args

	t.Cleanup(func() { os.Args = oldArgs })

	tests := []struct {
		name     string
		args     []string
		wantText string
	}{
		{
			name:     "text flag parsing",
			args:     []string{"cmd", "--text", "Hello, world!"},
			wantText: "Hello, world!",
		},
		{
			name:     "no text flag",
			args:     []string{"cmd"},
			wantText: "",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			// Reset flag parsing state for each test run to ensure isolation.
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
			os.Args = testCase.args

			flags := parseFlags()

			assert.Equal(t, testCase.wantText, flags.text)
			assert.Equal(t, defaultURL, flags.url)
			assert.Equal(t, defaultOutputFile, flags.output)
			assert.InEpsilon(t, defaultExaggeration, flags.exaggeration, 0.001)
		})
	}
}

// TestSynthesizeWritesAudioFile verifies the request payload and that the
// binary response lands in the output file.
func TestSynthesizeWritesAudioFile(t *testing.T) {
	t.Parallel()

	audioBytes := []byte("fake-wav-bytes")

	var received map[string]any

	testServer := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/tts", r.URL.Path)

			err := json.NewDecoder(r.Body).Decode(&received)
			require.NoError(t, err)

			w.Header().Set("Content-Type", "audio/wav")
			w.Header().Set("X-Audio-Duration", "1.5")
			w.Header().Set("X-Output-Format", "wav")
			w.WriteHeader(http.StatusOK)

			_, err = w.Write(audioBytes)
			require.NoError(t, err)
		}))
	defer testServer.Close()

	outputPath := filepath.Join(t.TempDir(), "speech.wav")

	err := synthesize(appFlags{
		url:          testServer.URL,
		text:         "Hello.",
		output:       outputPath,
		format:       "wav",
		exaggeration: 0.7,
		cfgWeight:    0.4,
		temperature:  1.0,
		health:       false,
		timeout:      defaultTimeout,
	})
	require.NoError(t, err)

	written, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, audioBytes, written)

	assert.Equal(t, "Hello.", received["text"])
	assert.InEpsilon(t, 0.7, received["exaggeration"].(float64), 0.001)
	assert.InEpsilon(t, 0.4, received["cfg_weight"].(float64), 0.001)
	assert.Equal(t, "wav", received["output_format"])
}

// TestSynthesizeFailureStatus verifies a non-200 response surfaces as an
// error without writing the output file.
func TestSynthesizeFailureStatus(t *testing.T) {
	t.Parallel()

	testServer := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":"text must not be empty"}`))
		}))
	defer testServer.Close()

	outputPath := filepath.Join(t.TempDir(), "speech.wav")

	err := synthesize(appFlags{
		url:          testServer.URL,
		text:         "  ",
		output:       outputPath,
		format:       "wav",
		exaggeration: defaultExaggeration,
		cfgWeight:    defaultCFGWeight,
		temperature:  defaultTemperature,
		health:       false,
		timeout:      defaultTimeout,
	})
	require.Error(t, err)

	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr))
}

// TestCheckHealth verifies both health outcomes against a stub server.
func TestCheckHealth(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	defer healthy.Close()

	require.NoError(t, checkHealth(healthy.URL))

	unhealthy := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
	defer unhealthy.Close()

	require.Error(t, checkHealth(unhealthy.URL))
}
