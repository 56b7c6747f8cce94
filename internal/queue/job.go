// Package queue implements the single-consumer job queue that serializes all
// synthesis work. Requests from any number of handlers are enqueued as Jobs;
// exactly one worker drains the queue, drives chunking, synthesis and
// concatenation, and resolves each job's completion handle exactly once.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/book-expert/chatterbox-service/internal/audio"
	"github.com/book-expert/chatterbox-service/internal/core"
)

// Kind distinguishes single-text jobs from batch jobs.
type Kind int

const (
	// KindSingle is a job carrying one text.
	KindSingle Kind = iota
	// KindBatch is a job carrying multiple texts processed sequentially.
	KindBatch
)

// SingleResult is the success payload of a single-text job.
type SingleResult struct {
	Audio           audio.Waveform
	DurationSeconds float64
	SegmentCount    int
	VoiceCloned     bool
}

// BatchItem is the outcome for one text of a batch job. Err is set when that
// element failed; the rest of the batch is unaffected.
type BatchItem struct {
	Audio           audio.Waveform
	DurationSeconds float64
	Err             error
}

// BatchResult is the payload of a batch job. The batch as a whole succeeds as
// long as every element was attempted; TotalDurationSeconds sums successful
// elements only.
type BatchResult struct {
	Items                []BatchItem
	TotalDurationSeconds float64
}

// Result is the resolved outcome of a job. Exactly one of Single or Batch is
// set, according to the job's kind.
type Result struct {
	JobID  string
	Single *SingleResult
	Batch  *BatchResult
}

// completionCell is a single-assignment result slot: one writer (the worker),
// one or more readers, resolved exactly once.
type completionCell struct {
	done   chan struct{}
	once   sync.Once
	result *Result
	err    error
}

func newCompletionCell() *completionCell {
	return &completionCell{
		done:   make(chan struct{}),
		once:   sync.Once{},
		result: nil,
		err:    nil,
	}
}

// resolve stores the outcome exactly once; later calls are ignored.
func (c *completionCell) resolve(result *Result, err error) {
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
	})
}

// wait blocks until the cell is resolved or the context expires. Expiry only
// abandons the wait: the job keeps running and its eventual resolution is
// retained in the cell.
func (c *completionCell) wait(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", core.ErrTimeout, ctx.Err())
	}
}

// Job captures one synthesis request. It is created by the façade, owned
// exclusively by the queue once submitted, and reaches its submitter only
// through the completion handle.
type Job struct {
	ID     string
	Kind   Kind
	Text   string
	Texts  []string
	Params core.SynthesisParams

	// CleanupReference marks the reference audio file as a temporary upload
	// the worker must delete once the job has been processed.
	CleanupReference bool

	completion *completionCell
}

// NewSingleJob creates a job for one text.
func NewSingleJob(jobText string, params core.SynthesisParams) *Job {
	return &Job{
		ID:               uuid.NewString(),
		Kind:             KindSingle,
		Text:             jobText,
		Texts:            nil,
		Params:           params,
		CleanupReference: false,
		completion:       newCompletionCell(),
	}
}

// NewBatchJob creates a job for a list of texts processed in order.
func NewBatchJob(texts []string, params core.SynthesisParams) *Job {
	return &Job{
		ID:               uuid.NewString(),
		Kind:             KindBatch,
		Text:             "",
		Texts:            texts,
		Params:           params,
		CleanupReference: false,
		completion:       newCompletionCell(),
	}
}

// Wait suspends until the job is resolved or ctx expires. A timeout failure
// is surfaced to this caller only and never cancels in-flight synthesis.
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	return j.completion.wait(ctx)
}
