// Package engine provides the HTTP adapter for the speech-generation
// backend. It implements core.Synthesizer by translating segment synthesis
// calls into requests against the standalone model server.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/chatterbox-service/internal/core"
)

// API endpoints exposed by the model server.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio/wav, got %s"
	errFmtBackendErrorWithCode  = "backend error (%s): %s (code: %s)"
	errFmtBackendNonOKStatus    = "backend returned non-OK status: %s, body: %s"
)

// Static errors.
var (
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrEmptyAudioData = errors.New("received empty audio data")
)

// Client is an HTTP client for the model server. One generation is expensive
// and the server is bound to a single accelerator, so callers must serialize
// Synthesize calls; the job queue provides that guarantee.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// generateRequest is the JSON payload for a synthesis call.
type generateRequest struct {
	// Text is the segment to speak. Must be non-empty.
	Text string `json:"text"`

	// Exaggeration controls emotional intensity, range [0.0, 2.0].
	Exaggeration float64 `json:"exaggeration"`

	// CFGWeight controls generation guidance, range [0.0, 1.0].
	CFGWeight float64 `json:"cfg_weight"`

	// Temperature controls randomness, range [0.1, 2.0].
	Temperature float64 `json:"temperature"`

	// SpeakerRefPath optionally names a server-side reference audio file
	// used to condition the generated voice identity.
	SpeakerRefPath string `json:"speaker_ref_path,omitempty"`
}

// errorResponse is the structured error body the model server returns on
// failed requests.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewClient creates a synthesis client for the model server at baseURL
// (protocol and port included, e.g. "http://localhost:8000"). The timeout
// applies to every request; segment generation on CPU can take tens of
// seconds, so it should comfortably exceed the hard duration limit.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends one segment to the model server and returns the WAV bytes.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	params core.SynthesisParams,
) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(generateRequest{
		Text:           text,
		Exaggeration:   params.Exaggeration,
		CFGWeight:      params.Guidance,
		Temperature:    params.Temperature,
		SpeakerRefPath: params.ReferenceAudioPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to backend at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudioData
	}

	return audioData, nil
}

// Health performs a lightweight probe against the model server's health
// endpoint, returning an error when it is unreachable or reports unhealthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+apiHealth,
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"health check failed for backend at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error from the backend,
// falling back to the raw body so diagnostics are never lost.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp errorResponse

	err := json.NewDecoder(resp.Body).Decode(&errResp)
	if err == nil {
		return fmt.Errorf(errFmtBackendErrorWithCode,
			resp.Status, errResp.Detail, errResp.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(errFmtBackendNonOKStatus, resp.Status, string(body))
}
