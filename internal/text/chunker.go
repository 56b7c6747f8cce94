package text

import (
	"regexp"
	"strings"
)

// Boundary patterns, ordered from most to least preferred split level.
const (
	paragraphBreakPattern = `\n\s*\n`
	sentenceEndPattern    = `[.!?]+`
	clauseBreakPattern    = `[,;:]+`
)

// Chunker splits text into speakable segments under a duration budget.
//
// Policy, by estimated duration of the whole input:
//   - at or under the comfortable duration: one segment, trimmed only;
//   - under the hard limit: gentle chunking on paragraph or sentence
//     boundaries, accepted only when it yields at least two segments,
//     otherwise the text stays whole even though it is over-comfortable;
//   - over the hard limit: recursive chunking through paragraph, sentence,
//     clause and finally word boundaries, greedily accumulating units while
//     the running segment stays within the comfortable duration.
//
// A single whitespace-free token longer than the budget becomes its own
// oversized segment; content is never truncated or dropped, and output order
// always matches input order.
type Chunker struct {
	comfortable    float64
	hardLimit      float64
	estimator      Estimator
	paragraphBreak *regexp.Regexp
	sentenceEnd    *regexp.Regexp
	clauseBreak    *regexp.Regexp
}

// NewChunker creates a chunker with the given duration budgets. Non-positive
// budgets fall back to the defaults; a hard limit below the comfortable
// duration is raised to it.
func NewChunker(comfortable, hardLimit float64, estimator Estimator) *Chunker {
	if comfortable <= 0 {
		comfortable = DefaultComfortableDuration
	}

	if hardLimit <= 0 {
		hardLimit = DefaultHardLimit
	}

	if hardLimit < comfortable {
		hardLimit = comfortable
	}

	return &Chunker{
		comfortable:    comfortable,
		hardLimit:      hardLimit,
		estimator:      estimator,
		paragraphBreak: regexp.MustCompile(paragraphBreakPattern),
		sentenceEnd:    regexp.MustCompile(sentenceEndPattern),
		clauseBreak:    regexp.MustCompile(clauseBreakPattern),
	}
}

// ComfortableDuration returns the target duration for a single segment.
func (c *Chunker) ComfortableDuration() float64 {
	return c.comfortable
}

// HardLimit returns the duration ceiling beyond which chunking is mandatory.
func (c *Chunker) HardLimit() float64 {
	return c.hardLimit
}

// Estimate exposes the chunker's duration estimator.
func (c *Chunker) Estimate(text string) float64 {
	return c.estimator.Estimate(text)
}

// Chunk partitions text into an ordered sequence of non-empty trimmed
// segments. Empty or whitespace-only input yields a single empty segment.
func (c *Chunker) Chunk(text string) []string {
	estimated := c.estimator.Estimate(text)

	if estimated <= c.comfortable {
		return []string{strings.TrimSpace(text)}
	}

	if estimated <= c.hardLimit {
		gentle := c.gentleChunks(text)
		if len(gentle) > 1 {
			return gentle
		}
		// No usable boundary found: prefer coherence over strict duration
		// and keep the text whole, up to the hard limit.
		return []string{strings.TrimSpace(text)}
	}

	return c.aggressiveChunks(text)
}

// gentleChunks looks for natural break points without forcing a split. It
// accumulates paragraphs (or, failing that, sentences) while the running
// segment stays under the hard limit.
func (c *Chunker) gentleChunks(text string) []string {
	paragraphs := c.paragraphBreak.Split(text, -1)
	if len(paragraphs) > 1 {
		return c.accumulate(paragraphs, "\n\n", c.hardLimit)
	}

	sentences := splitAfter(text, c.sentenceEnd)
	if len(sentences) > 1 {
		return c.accumulate(sentences, " ", c.hardLimit)
	}

	return nil
}

// aggressiveChunks splits text that exceeds the hard limit. A paragraph that
// fits under the hard limit on its own is kept whole, preferring coherence
// over the comfortable target; only paragraphs over the hard limit are split
// recursively on sentence, clause and word boundaries.
func (c *Chunker) aggressiveChunks(text string) []string {
	var chunks []string

	for _, paragraph := range c.paragraphBreak.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if c.estimator.Estimate(paragraph) <= c.hardLimit {
			chunks = append(chunks, paragraph)

			continue
		}

		chunks = append(chunks, c.splitLongText(paragraph, c.comfortable)...)
	}

	return compact(chunks)
}

// splitLongText splits on sentence boundaries, descending to clause
// boundaries for any sentence that alone exceeds the budget.
func (c *Chunker) splitLongText(text string, budget float64) []string {
	if c.estimator.Estimate(text) <= budget {
		return []string{text}
	}

	var (
		chunks  []string
		current string
	)

	for _, sentence := range splitAfter(text, c.sentenceEnd) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		candidate := join(current, sentence, " ")
		if c.estimator.Estimate(candidate) <= budget {
			current = candidate

			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if c.estimator.Estimate(sentence) <= budget {
			current = sentence
		} else {
			clauseChunks := c.splitOnClauses(sentence, budget)
			chunks = append(chunks, clauseChunks[:len(clauseChunks)-1]...)
			current = clauseChunks[len(clauseChunks)-1]
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return compact(chunks)
}

// splitOnClauses splits on clause markers, descending to word boundaries for
// any clause that alone exceeds the budget.
func (c *Chunker) splitOnClauses(text string, budget float64) []string {
	if c.estimator.Estimate(text) <= budget {
		return []string{text}
	}

	var (
		chunks  []string
		current string
	)

	for _, clause := range splitAfter(text, c.clauseBreak) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		candidate := join(current, clause, " ")
		if c.estimator.Estimate(candidate) <= budget {
			current = candidate

			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if c.estimator.Estimate(clause) <= budget {
			current = clause
		} else {
			wordChunks := c.splitOnWords(clause, budget)
			chunks = append(chunks, wordChunks[:len(wordChunks)-1]...)
			current = wordChunks[len(wordChunks)-1]
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return compact(chunks)
}

// splitOnWords is the last resort. A single word longer than the budget
// becomes its own oversized chunk rather than being truncated.
func (c *Chunker) splitOnWords(text string, budget float64) []string {
	var (
		chunks  []string
		current string
	)

	for _, word := range strings.Fields(text) {
		candidate := join(current, word, " ")
		if c.estimator.Estimate(candidate) <= budget {
			current = candidate

			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		current = word
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return compact(chunks)
}

// accumulate greedily appends units to a running chunk while the result stays
// within budget, starting a new chunk when the next unit would exceed it.
func (c *Chunker) accumulate(units []string, separator string, budget float64) []string {
	var (
		chunks  []string
		current string
	)

	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}

		candidate := join(current, unit, separator)
		if current == "" || c.estimator.Estimate(candidate) <= budget {
			current = candidate

			continue
		}

		chunks = append(chunks, current)
		current = unit
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return compact(chunks)
}

// splitAfter splits text into units that each end with one run of the
// delimiter pattern; punctuation stays attached to the preceding unit. A text
// with no delimiter comes back as a single unit.
func splitAfter(text string, delimiter *regexp.Regexp) []string {
	matches := delimiter.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	units := make([]string, 0, len(matches)+1)
	start := 0

	for _, match := range matches {
		units = append(units, text[start:match[1]])
		start = match[1]
	}

	if start < len(text) {
		units = append(units, text[start:])
	}

	return units
}

func join(current, unit, separator string) string {
	if current == "" {
		return unit
	}

	return current + separator + unit
}

func compact(chunks []string) []string {
	result := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			result = append(result, chunk)
		}
	}

	return result
}
