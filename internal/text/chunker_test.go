// Package text_test tests duration estimation and chunking.
package text_test

import (
	"strings"
	"testing"

	"github.com/book-expert/chatterbox-service/internal/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultChunker() *text.Chunker {
	estimator := text.NewEstimator(text.DefaultCharsPerSecond)

	return text.NewChunker(text.DefaultComfortableDuration, text.DefaultHardLimit, estimator)
}

// repeatSentences builds text with a predictable estimated duration by
// repeating a fixed sentence.
func repeatSentences(sentence string, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = sentence
	}

	return strings.Join(parts, " ")
}

func TestEstimateShortText(t *testing.T) {
	t.Parallel()

	estimator := text.NewEstimator(text.DefaultCharsPerSecond)

	// "Hi there." is 9 characters: 9 / 12 = 0.75s.
	assert.InEpsilon(t, 0.75, estimator.Estimate("Hi there."), 0.001)
}

func TestEstimateNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	estimator := text.NewEstimator(text.DefaultCharsPerSecond)

	assert.InEpsilon(t,
		estimator.Estimate("one two three"),
		estimator.Estimate("  one \n\n two\t\tthree  "),
		0.0001,
	)
}

func TestEstimateEmptyText(t *testing.T) {
	t.Parallel()

	estimator := text.NewEstimator(text.DefaultCharsPerSecond)

	assert.Zero(t, estimator.Estimate(""))
	assert.Zero(t, estimator.Estimate("   \n \t "))
}

func TestChunkShortTextIsUnchanged(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	chunks := chunker.Chunk("Hi there.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hi there.", chunks[0])
}

func TestChunkTrimsSingleSegment(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	chunks := chunker.Chunk("  Hello world.  \n")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world.", chunks[0])
}

func TestChunkEmptyInputYieldsSingleEmptySegment(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	chunks := chunker.Chunk("   ")

	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0])
}

func TestChunkTwoLongParagraphs(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	// Each paragraph estimates to ~30s (360 chars); the total of ~60s is over
	// the 40s hard limit, so the paragraphs must become one segment each.
	paragraph := strings.TrimSpace(strings.Repeat("abcdefghi ", 36))
	input := paragraph + "\n\n" + paragraph

	require.Greater(t, chunker.Estimate(paragraph), 25.0)
	require.Less(t, chunker.Estimate(paragraph), 40.0)

	chunks := chunker.Chunk(input)

	require.Len(t, chunks, 2)
	assert.Equal(t, paragraph, chunks[0])
	assert.Equal(t, paragraph, chunks[1])
}

func TestChunkGentleKeepsCoherentTextWhole(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	// Between comfortable and hard limit with no paragraph or sentence
	// boundary at all: stays a single over-comfortable segment.
	input := strings.TrimSpace(strings.Repeat("word ", 72)) // ~30s, no [.!?]

	estimated := chunker.Estimate(input)
	require.Greater(t, estimated, chunker.ComfortableDuration())
	require.LessOrEqual(t, estimated, chunker.HardLimit())

	chunks := chunker.Chunk(input)

	require.Len(t, chunks, 1)
	assert.Equal(t, input, chunks[0])
}

func TestChunkGentleSplitsOnSentences(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	// ~30s of text made of many sentences but no paragraph breaks.
	input := repeatSentences("This sentence is about forty chars long.", 9)

	estimated := chunker.Estimate(input)
	require.Greater(t, estimated, chunker.ComfortableDuration())
	require.LessOrEqual(t, estimated, chunker.HardLimit())

	chunks := chunker.Chunk(input)

	require.Len(t, chunks, 1)

	// The whole text fits under the hard limit, so gentle accumulation keeps
	// it as one chunk; only two or more are accepted as a gentle split.
	assert.Equal(t, input, chunks[0])
}

func TestChunkAggressiveRespectsHardLimit(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	input := repeatSentences("This sentence is about forty chars long.", 30) // ~100s

	require.Greater(t, chunker.Estimate(input), chunker.HardLimit())

	chunks := chunker.Chunk(input)

	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunker.Estimate(chunk), chunker.HardLimit())
	}
}

func TestChunkOversizedWordBecomesSingletonSegment(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	longWord := strings.Repeat("x", 600) // ~50s, unsplittable
	input := repeatSentences("Short filler sentence here now.", 20) + " " + longWord + "."

	chunks := chunker.Chunk(input)

	found := false

	for _, chunk := range chunks {
		if strings.Contains(chunk, longWord) {
			found = true
		}
	}

	assert.True(t, found, "oversized word must survive chunking intact")
}

func TestChunkIsIdempotent(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	input := repeatSentences("Deterministic chunking, every single time.", 25)

	first := chunker.Chunk(input)
	second := chunker.Chunk(input)

	assert.Equal(t, first, second)
}

func TestChunkPreservesWordOrder(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	input := "First paragraph with enough words to matter, truly.\n\n" +
		repeatSentences("Second paragraph keeps on going and going.", 15)

	chunks := chunker.Chunk(input)

	joined := strings.Join(chunks, " ")
	assert.Equal(t, strings.Fields(input), strings.Fields(joined))
}

func TestChunkSegmentsAreTrimmedAndNonEmpty(t *testing.T) {
	t.Parallel()

	chunker := newDefaultChunker()

	input := "\n\n" + repeatSentences("Sentence padding for the splitter to chew on.", 25) + "\n\n"

	for _, chunk := range chunker.Chunk(input) {
		assert.NotEmpty(t, chunk)
		assert.Equal(t, strings.TrimSpace(chunk), chunk)
	}
}

func TestNewChunkerRaisesHardLimitToComfortable(t *testing.T) {
	t.Parallel()

	estimator := text.NewEstimator(text.DefaultCharsPerSecond)
	chunker := text.NewChunker(30, 10, estimator)

	assert.InEpsilon(t, 30.0, chunker.HardLimit(), 0.001)
}
