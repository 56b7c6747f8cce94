package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/chatterbox-service/internal/core"
	"github.com/book-expert/chatterbox-service/internal/format"
	"github.com/book-expert/chatterbox-service/internal/objectstore"
	"github.com/book-expert/chatterbox-service/internal/queue"
)

const maxUploadBytes = 32 << 20

// ttsRequest is the wire form of a single synthesis request. Omitted controls
// take the backend defaults.
type ttsRequest struct {
	Text         string   `json:"text"`
	Exaggeration *float64 `json:"exaggeration"`
	CFGWeight    *float64 `json:"cfg_weight"`
	Temperature  *float64 `json:"temperature"`
	OutputFormat string   `json:"output_format"`
	ReturnBase64 bool     `json:"return_base64"`
}

// batchRequest is the wire form of a batch request. The controls apply to
// every text in the batch.
type batchRequest struct {
	Texts        []string `json:"texts"`
	Exaggeration *float64 `json:"exaggeration"`
	CFGWeight    *float64 `json:"cfg_weight"`
	Temperature  *float64 `json:"temperature"`
}

// ttsResponse is the JSON result for a single text, both standalone and as a
// batch element. Base64 audio is always the lossless WAV encoding.
type ttsResponse struct {
	Success         bool    `json:"success"`
	Message         string  `json:"message,omitempty"`
	AudioBase64     string  `json:"audio_base64,omitempty"`
	SampleRate      int     `json:"sample_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
	JobID           string  `json:"job_id,omitempty"`
}

type batchResponse struct {
	Success       bool          `json:"success"`
	Results       []ttsResponse `json:"results"`
	TotalDuration float64       `json:"total_duration"`
	JobID         string        `json:"job_id"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body: %w", core.ErrValidation, err))

		return
	}

	params, err := s.buildParams(req.Text, req.Exaggeration, req.CFGWeight, req.Temperature)
	if err != nil {
		s.writeError(w, err)

		return
	}

	job := queue.NewSingleJob(strings.TrimSpace(req.Text), params)
	s.completeSingle(w, r, job, req.OutputFormat, req.ReturnBase64)
}

func (s *Server) handleVoiceClone(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid multipart form: %w", core.ErrValidation, err))

		return
	}

	job, outputFormat, returnBase64, err := s.buildVoiceCloneJob(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.completeSingle(w, r, job, outputFormat, returnBase64)
}

// buildVoiceCloneJob persists the uploaded reference and assembles the job.
// The job owns the reference file; if the request is rejected before a job
// exists, the upload is removed here.
func (s *Server) buildVoiceCloneJob(r *http.Request) (*queue.Job, string, bool, error) {
	referencePath, err := s.saveReferenceUpload(r)
	if err != nil {
		return nil, "", false, err
	}

	params, err := s.parseFormParams(r)
	if err != nil {
		removeErr := os.Remove(referencePath)
		if removeErr != nil {
			s.log.Warn(
				"Failed to remove rejected reference upload %s: %v",
				referencePath, removeErr,
			)
		}

		return nil, "", false, err
	}

	params.ReferenceAudioPath = referencePath

	job := queue.NewSingleJob(strings.TrimSpace(r.FormValue("text")), params)
	job.CleanupReference = true

	returnBase64, _ := strconv.ParseBool(r.FormValue("return_base64"))

	return job, r.FormValue("output_format"), returnBase64, nil
}

func (s *Server) parseFormParams(r *http.Request) (core.SynthesisParams, error) {
	exaggeration, err := parseFloatField(r, "exaggeration")
	if err != nil {
		return core.SynthesisParams{}, err
	}

	cfgWeight, err := parseFloatField(r, "cfg_weight")
	if err != nil {
		return core.SynthesisParams{}, err
	}

	temperature, err := parseFloatField(r, "temperature")
	if err != nil {
		return core.SynthesisParams{}, err
	}

	return s.buildParams(r.FormValue("text"), exaggeration, cfgWeight, temperature)
}

func (s *Server) handleBatchTTS(w http.ResponseWriter, r *http.Request) {
	var req batchRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body: %w", core.ErrValidation, err))

		return
	}

	if len(req.Texts) == 0 {
		s.writeError(w, fmt.Errorf("%w: texts must not be empty", core.ErrValidation))

		return
	}

	if len(req.Texts) > s.opts.MaxBatchSize {
		s.writeError(w, fmt.Errorf(
			"%w: batch size %d exceeds maximum of %d",
			core.ErrValidation, len(req.Texts), s.opts.MaxBatchSize,
		))

		return
	}

	texts := make([]string, len(req.Texts))

	for i, batchText := range req.Texts {
		err = s.validateText(batchText)
		if err != nil {
			s.writeError(w, fmt.Errorf("text %d: %w", i, err))

			return
		}

		texts[i] = strings.TrimSpace(batchText)
	}

	params, err := s.buildParams(req.Texts[0], req.Exaggeration, req.CFGWeight, req.Temperature)
	if err != nil {
		s.writeError(w, err)

		return
	}

	job := queue.NewBatchJob(texts, params)

	result, err := s.runJob(r.Context(), job, s.opts.BatchTimeout)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, s.renderBatch(result))
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":              "Chatterbox TTS service is running",
		"version":              serviceVersion,
		"engine_url":           s.opts.EngineBaseURL,
		"queue_size":           s.queue.Len(),
		"total_jobs_processed": s.queue.Processed(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	err := s.synthesizer.Health(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"queue_size":           s.queue.Len(),
		"total_jobs_processed": s.queue.Processed(),
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Detail: "audio archive is not configured",
		})

		return
	}

	jobID := r.PathValue("id")

	data, err := s.archive.Download(r.Context(), jobID+".wav")
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{
				Detail: "no archived audio for job " + jobID,
			})

			return
		}

		s.log.Error("Failed to download archived audio for job %s: %v", jobID, err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Detail: "failed to retrieve archived audio",
		})

		return
	}

	w.Header().Set("Content-Type", format.MediaTypeWAV)
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(data)
	if err != nil {
		s.log.Error("Failed to write archived audio for job %s: %v", jobID, err)
	}
}

// completeSingle runs a single-text job to completion and renders its result
// as JSON or binary audio.
func (s *Server) completeSingle(
	w http.ResponseWriter,
	r *http.Request,
	job *queue.Job,
	outputFormat string,
	returnBase64 bool,
) {
	result, err := s.runJob(r.Context(), job, s.opts.RequestTimeout)
	if err != nil {
		s.writeError(w, err)

		return
	}

	single := result.Single

	wavData, err := single.Audio.Encode()
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.archiveAudio(r.Context(), result.JobID, wavData)

	if returnBase64 {
		s.writeJSON(w, http.StatusOK, ttsResponse{
			Success:         true,
			Message:         "",
			AudioBase64:     base64.StdEncoding.EncodeToString(wavData),
			SampleRate:      single.Audio.SampleRate,
			DurationSeconds: single.DurationSeconds,
			JobID:           result.JobID,
		})

		return
	}

	if outputFormat == "" {
		outputFormat = format.FormatWAV
	}

	encoded, mediaType, err := s.encoder.Encode(r.Context(), wavData, outputFormat)
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("X-Audio-Duration", formatFloat(single.DurationSeconds))
	w.Header().Set("X-Sample-Rate", strconv.Itoa(single.Audio.SampleRate))
	w.Header().Set("X-Exaggeration", formatFloat(job.Params.Exaggeration))
	w.Header().Set("X-CFG-Weight", formatFloat(job.Params.Guidance))
	w.Header().Set("X-Job-ID", result.JobID)
	w.Header().Set("X-Output-Format", strings.ToLower(outputFormat))
	w.Header().Set("X-Voice-Cloned", strconv.FormatBool(single.VoiceCloned))
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(encoded)
	if err != nil {
		s.log.Error("Failed to write audio response for job %s: %v", result.JobID, err)
	}
}

// runJob submits a job and waits on its completion handle. Timeout abandons
// the wait without cancelling the in-flight synthesis.
func (s *Server) runJob(
	ctx context.Context,
	job *queue.Job,
	timeout time.Duration,
) (*queue.Result, error) {
	err := s.queue.Submit(job)
	if err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := job.Wait(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("job %s failed: %w", job.ID, err)
	}

	return result, nil
}

func (s *Server) renderBatch(result *queue.Result) batchResponse {
	items := make([]ttsResponse, 0, len(result.Batch.Items))

	for _, item := range result.Batch.Items {
		if item.Err != nil {
			items = append(items, ttsResponse{
				Success:         false,
				Message:         item.Err.Error(),
				AudioBase64:     "",
				SampleRate:      0,
				DurationSeconds: 0,
				JobID:           "",
			})

			continue
		}

		wavData, err := item.Audio.Encode()
		if err != nil {
			items = append(items, ttsResponse{
				Success:         false,
				Message:         err.Error(),
				AudioBase64:     "",
				SampleRate:      0,
				DurationSeconds: 0,
				JobID:           "",
			})

			continue
		}

		items = append(items, ttsResponse{
			Success:         true,
			Message:         "",
			AudioBase64:     base64.StdEncoding.EncodeToString(wavData),
			SampleRate:      item.Audio.SampleRate,
			DurationSeconds: item.DurationSeconds,
			JobID:           "",
		})
	}

	return batchResponse{
		Success:       true,
		Results:       items,
		TotalDuration: result.Batch.TotalDurationSeconds,
		JobID:         result.JobID,
	}
}

// archiveAudio stores the lossless WAV under the job's identifier. Archive
// failures are logged, never surfaced to the client.
func (s *Server) archiveAudio(ctx context.Context, jobID string, wavData []byte) {
	if s.archive == nil {
		return
	}

	err := s.archive.Upload(ctx, jobID+".wav", wavData)
	if err != nil {
		s.log.Error("Failed to archive audio for job %s: %v", jobID, err)

		return
	}

	s.log.Info("Archived audio for job %s (%d bytes)", jobID, len(wavData))
}

// saveReferenceUpload persists the uploaded reference audio to a temp file
// under the configured reference directory and returns its path.
func (s *Server) saveReferenceUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("audio_file")
	if err != nil {
		return "", fmt.Errorf("%w: missing audio_file upload: %w", core.ErrValidation, err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close uploaded file: %v", closeErr)
		}
	}()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		return "", fmt.Errorf(
			"%w: uploaded file must be audio, got content type %q",
			core.ErrValidation, contentType,
		)
	}

	err = os.MkdirAll(s.opts.ReferenceAudioDir, 0o750)
	if err != nil {
		return "", fmt.Errorf("failed to create reference audio directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.opts.ReferenceAudioDir, "reference-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create reference audio file: %w", err)
	}

	_, err = io.Copy(tmpFile, file)
	closeErr := tmpFile.Close()

	if err != nil {
		return "", fmt.Errorf("failed to store reference audio: %w", err)
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to store reference audio: %w", closeErr)
	}

	return tmpFile.Name(), nil
}

// buildParams validates the text and numeric controls and assembles the
// synthesis parameters, filling omitted controls with backend defaults.
func (s *Server) buildParams(
	text string,
	exaggeration, cfgWeight, temperature *float64,
) (core.SynthesisParams, error) {
	err := s.validateText(text)
	if err != nil {
		return core.SynthesisParams{}, err
	}

	params := core.DefaultSynthesisParams()

	if exaggeration != nil {
		params.Exaggeration = *exaggeration
	}

	if cfgWeight != nil {
		params.Guidance = *cfgWeight
	}

	if temperature != nil {
		params.Temperature = *temperature
	}

	err = validateParams(params)
	if err != nil {
		return core.SynthesisParams{}, err
	}

	return params, nil
}

func (s *Server) validateText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("%w: text must not be empty", core.ErrValidation)
	}

	if len(trimmed) > s.opts.MaxTextLength {
		return fmt.Errorf(
			"%w: text length %d exceeds maximum of %d",
			core.ErrValidation, len(trimmed), s.opts.MaxTextLength,
		)
	}

	return nil
}

func validateParams(params core.SynthesisParams) error {
	if params.Exaggeration < core.MinExaggeration || params.Exaggeration > core.MaxExaggeration {
		return fmt.Errorf(
			"%w: exaggeration %g outside [%g, %g]",
			core.ErrValidation, params.Exaggeration, core.MinExaggeration, core.MaxExaggeration,
		)
	}

	if params.Guidance < core.MinGuidance || params.Guidance > core.MaxGuidance {
		return fmt.Errorf(
			"%w: cfg_weight %g outside [%g, %g]",
			core.ErrValidation, params.Guidance, core.MinGuidance, core.MaxGuidance,
		)
	}

	if params.Temperature < core.MinTemperature || params.Temperature > core.MaxTemperature {
		return fmt.Errorf(
			"%w: temperature %g outside [%g, %g]",
			core.ErrValidation, params.Temperature, core.MinTemperature, core.MaxTemperature,
		)
	}

	return nil
}

// parseFloatField reads an optional float form field, returning nil when the
// field is absent.
func parseFloatField(r *http.Request, name string) (*float64, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return nil, nil //nolint:nilnil // absent field means use the default
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s value %q", core.ErrValidation, name, raw)
	}

	return &value, nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}
