// Package text provides speech duration estimation and boundary-aware text
// chunking for the chatterbox-service.
//
// The chunker partitions arbitrarily long input into segments the synthesis
// backend can speak within a bounded duration, preferring coarse linguistic
// boundaries (paragraphs) and only descending to finer ones (sentences,
// clauses, words) when a coarser split cannot satisfy the budget.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Default duration budgets, in seconds, and the speech rate used to map
// character counts to durations.
const (
	// DefaultComfortableDuration is the target upper bound for an unchunked
	// segment, chosen for audio quality.
	DefaultComfortableDuration = 25.0
	// DefaultHardLimit is the absolute ceiling beyond which chunking is
	// mandatory.
	DefaultHardLimit = 40.0
	// DefaultCharsPerSecond is the rough speech rate used for estimation.
	DefaultCharsPerSecond = 12.0
)

const whitespaceRunPattern = `\s+`

// Estimator maps text to an estimated speech duration. It is pure and
// deterministic: whitespace runs are collapsed to single spaces and the ends
// trimmed before counting characters.
type Estimator struct {
	charsPerSecond float64
	whitespaceRun  *regexp.Regexp
}

// NewEstimator creates an estimator for the given speech rate. A rate of zero
// or below falls back to DefaultCharsPerSecond.
func NewEstimator(charsPerSecond float64) Estimator {
	if charsPerSecond <= 0 {
		charsPerSecond = DefaultCharsPerSecond
	}

	return Estimator{
		charsPerSecond: charsPerSecond,
		whitespaceRun:  regexp.MustCompile(whitespaceRunPattern),
	}
}

// Estimate returns the estimated speech duration of text in seconds.
func (e Estimator) Estimate(text string) float64 {
	normalized := e.whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")

	return float64(utf8.RuneCountInString(normalized)) / e.charsPerSecond
}
