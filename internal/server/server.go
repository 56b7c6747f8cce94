// Package server implements the HTTP façade of the chatterbox-service. It
// decodes wire requests into queue jobs, enforces input constraints before
// anything reaches the worker, waits on each job's completion handle under a
// caller-facing timeout, and renders results as binary audio or structured
// JSON.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/chatterbox-service/internal/core"
	"github.com/book-expert/chatterbox-service/internal/queue"
)

const serviceVersion = "1.0.0"

// Options carries the request-level limits and collaborator endpoints the
// façade needs beyond its direct dependencies.
type Options struct {
	EngineBaseURL     string
	MaxTextLength     int
	MaxBatchSize      int
	RequestTimeout    time.Duration
	BatchTimeout      time.Duration
	ReferenceAudioDir string
}

// Server is the HTTP façade. The archive is optional; when nil the audio
// retrieval endpoint reports the feature as unavailable.
type Server struct {
	queue       *queue.Queue
	synthesizer core.Synthesizer
	encoder     core.Encoder
	archive     core.ObjectStore
	opts        Options
	log         *logger.Logger
}

// New creates the façade around its collaborators.
func New(
	jobQueue *queue.Queue,
	synthesizer core.Synthesizer,
	encoder core.Encoder,
	archive core.ObjectStore,
	opts Options,
	log *logger.Logger,
) *Server {
	return &Server{
		queue:       jobQueue,
		synthesizer: synthesizer,
		encoder:     encoder,
		archive:     archive,
		opts:        opts,
		log:         log,
	}
}

// Handler returns the route table for the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tts", s.handleTTS)
	mux.HandleFunc("POST /batch-tts", s.handleBatchTTS)
	mux.HandleFunc("POST /voice-clone", s.handleVoiceClone)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /queue/status", s.handleQueueStatus)
	mux.HandleFunc("GET /audio/{id}", s.handleAudio)

	return mux
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		s.log.Error("Failed to encode response body: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Detail: err.Error()})
}

// statusFor maps the failure taxonomy to client-facing status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
