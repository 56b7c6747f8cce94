package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/book-expert/logger"

	"github.com/book-expert/chatterbox-service/internal/audio"
	"github.com/book-expert/chatterbox-service/internal/core"
	"github.com/book-expert/chatterbox-service/internal/text"
)

// Static errors.
var (
	// ErrQueueClosed indicates a submit after shutdown began.
	ErrQueueClosed = errors.New("job queue is closed")
	// ErrQueueFull indicates the configured queue bound was reached.
	ErrQueueFull = errors.New("job queue is full")
	// ErrUnknownJobKind indicates a job with an unrecognized kind value.
	ErrUnknownJobKind = errors.New("unknown job kind")
)

// Queue is an unbounded FIFO with exactly one consumer. Enqueuing is safe
// from any number of goroutines; dequeuing and processing are strictly
// serialized because the synthesis backend is resource-exclusive. The queue
// and its processed counter are the only shared mutable state, each accessed
// through individually atomic operations.
type Queue struct {
	synthesizer core.Synthesizer
	chunker     *text.Chunker
	log         *logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []*Job
	closed bool

	// maxSize bounds admissions when positive; zero keeps the queue
	// unbounded, trading memory growth for never rejecting work.
	maxSize int

	processed atomic.Int64
	done      chan struct{}
}

// New creates a queue processing jobs with the given synthesizer and chunker.
// maxSize of zero leaves the queue unbounded.
func New(
	synthesizer core.Synthesizer,
	chunker *text.Chunker,
	maxSize int,
	log *logger.Logger,
) *Queue {
	queue := &Queue{
		synthesizer: synthesizer,
		chunker:     chunker,
		log:         log,
		mu:          sync.Mutex{},
		cond:        nil,
		jobs:        nil,
		closed:      false,
		maxSize:     maxSize,
		processed:   atomic.Int64{},
		done:        make(chan struct{}),
	}
	queue.cond = sync.NewCond(&queue.mu)

	return queue
}

// Start launches the single worker goroutine. Cancelling ctx initiates
// shutdown the same way Close does.
func (q *Queue) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		q.Close()
	}()

	go q.run(ctx)
}

// Close stops admissions, fails every job still waiting in the queue and,
// once the in-flight job finishes, stops the worker. Safe to call more than
// once.
func (q *Queue) Close() {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return
	}

	q.closed = true
	pending := q.jobs
	q.jobs = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, job := range pending {
		job.completion.resolve(nil, ErrQueueClosed)
	}

	<-q.done
}

// Submit enqueues a job for the worker. It never blocks on queue capacity;
// with a configured bound it fails fast with ErrQueueFull instead.
func (q *Queue) Submit(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if q.maxSize > 0 && len(q.jobs) >= q.maxSize {
		return ErrQueueFull
	}

	q.jobs = append(q.jobs, job)
	q.cond.Signal()

	return nil
}

// Len returns the number of jobs waiting to be processed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.jobs)
}

// Processed returns the count of jobs resolved so far, success or failure.
func (q *Queue) Processed() int64 {
	return q.processed.Load()
}

// run is the single consumer loop. One job's failure never stops the loop:
// every outcome, including a panic inside processing, resolves that job's
// completion handle and the loop advances.
func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	q.log.Info("TTS queue consumer started")

	for {
		job := q.next()
		if job == nil {
			q.log.Info("TTS queue consumer stopped")

			return
		}

		result, err := q.processJob(ctx, job)
		if err != nil {
			q.log.Error("Job %s failed: %v", job.ID, err)
		}

		q.processed.Add(1)
		job.completion.resolve(result, err)
	}
}

// next blocks until a job is available or the queue is closed.
func (q *Queue) next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.jobs) == 0 {
		return nil
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]

	return job
}

// processJob is the per-job failure boundary.
func (q *Queue) processJob(ctx context.Context, job *Job) (result *Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = fmt.Errorf("%w: panic processing job %s: %v",
				core.ErrSynthesis, job.ID, recovered)
		}
	}()

	defer q.cleanupReference(job)

	switch job.Kind {
	case KindSingle:
		return q.processSingle(ctx, job)
	case KindBatch:
		return q.processBatch(ctx, job)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownJobKind, job.Kind)
	}
}

// cleanupReference removes a temporary uploaded reference file once the job
// no longer needs it.
func (q *Queue) cleanupReference(job *Job) {
	if !job.CleanupReference || job.Params.ReferenceAudioPath == "" {
		return
	}

	removeErr := os.Remove(job.Params.ReferenceAudioPath)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		q.log.Warn("Failed to remove reference audio '%s': %v",
			job.Params.ReferenceAudioPath, removeErr)
	}
}

func (q *Queue) processSingle(ctx context.Context, job *Job) (*Result, error) {
	waveform, segmentCount, err := q.synthesizeText(ctx, job.Text, job.Params, true)
	if err != nil {
		return nil, err
	}

	return &Result{
		JobID: job.ID,
		Single: &SingleResult{
			Audio:           waveform,
			DurationSeconds: waveform.Duration(),
			SegmentCount:    segmentCount,
			VoiceCloned:     job.Params.ReferenceAudioPath != "",
		},
		Batch: nil,
	}, nil
}

// processBatch attempts every element in order. A per-text failure is
// recorded in that element's slot without aborting the rest.
func (q *Queue) processBatch(ctx context.Context, job *Job) (*Result, error) {
	items := make([]BatchItem, 0, len(job.Texts))
	totalDuration := 0.0

	for index, batchText := range job.Texts {
		waveform, _, err := q.synthesizeText(ctx, batchText, job.Params, false)
		if err != nil {
			q.log.Error("Batch job %s: text %d failed: %v", job.ID, index, err)
			items = append(items, BatchItem{Audio: audio.Waveform{}, DurationSeconds: 0, Err: err})

			continue
		}

		duration := waveform.Duration()
		totalDuration += duration
		items = append(items, BatchItem{Audio: waveform, DurationSeconds: duration, Err: nil})
	}

	return &Result{
		JobID:  job.ID,
		Single: nil,
		Batch: &BatchResult{
			Items:                items,
			TotalDurationSeconds: totalDuration,
		},
	}, nil
}

// synthesizeText converts one text into a waveform. Text within the hard
// duration limit is synthesized in a single call; longer text is chunked and
// synthesized segment by segment, in order, then concatenated losslessly.
// Reference audio, when allowed, conditions only the first segment: voice
// identity carries across segments without paying the conditioning cost per
// call.
func (q *Queue) synthesizeText(
	ctx context.Context,
	inputText string,
	params core.SynthesisParams,
	allowReference bool,
) (audio.Waveform, int, error) {
	if !allowReference {
		params.ReferenceAudioPath = ""
	}

	estimated := q.chunker.Estimate(inputText)
	if estimated <= q.chunker.HardLimit() {
		waveform, err := q.synthesizeSegment(ctx, inputText, params)
		if err != nil {
			return audio.Waveform{}, 0, err
		}

		return waveform, 1, nil
	}

	segments := q.chunker.Chunk(inputText)
	q.log.Info("Chunking text estimated at %.1fs into %d segments", estimated, len(segments))

	waveforms := make([]audio.Waveform, 0, len(segments))

	for index, segment := range segments {
		segmentParams := params
		if index > 0 {
			segmentParams.ReferenceAudioPath = ""
		}

		waveform, err := q.synthesizeSegment(ctx, segment, segmentParams)
		if err != nil {
			return audio.Waveform{}, 0, fmt.Errorf(
				"segment %d/%d: %w", index+1, len(segments), err)
		}

		waveforms = append(waveforms, waveform)
	}

	combined, err := audio.Concatenate(waveforms)
	if err != nil {
		return audio.Waveform{}, 0, fmt.Errorf("failed to concatenate segments: %w", err)
	}

	return combined, len(segments), nil
}

func (q *Queue) synthesizeSegment(
	ctx context.Context,
	segment string,
	params core.SynthesisParams,
) (audio.Waveform, error) {
	wavData, err := q.synthesizer.Synthesize(ctx, segment, params)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	waveform, decodeErr := audio.Decode(wavData)
	if decodeErr != nil {
		return audio.Waveform{}, fmt.Errorf("%w: %w", core.ErrSynthesis, decodeErr)
	}

	return waveform, nil
}
