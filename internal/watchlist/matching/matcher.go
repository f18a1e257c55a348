// Package matching compares one transaction field against one watchlist
// field and classifies the result as none, partial or exact.
package matching

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/orovista/backoffice/internal/watchlist/normalize"
	"github.com/orovista/backoffice/pkg/models"
)

// FieldKind distinguishes plain text fields from location fields, which get
// variant expansion before comparison.
type FieldKind string

const (
	FieldKindText     FieldKind = "text"
	FieldKindLocation FieldKind = "location"
)

// Result is the verdict of a single field comparison. Similarity is a
// Levenshtein-based detail used for deterministic candidate ordering only; it
// never influences verdict or confidence.
type Result struct {
	Verdict    models.MatchVerdict
	Confidence float64
	Similarity float64
}

// Matcher applies the comparison rules. Zero-configuration by default; the
// minimum substring length guards against false positives on trivial strings.
type Matcher struct {
	minPartialLen int
}

// Option configures a Matcher
type Option func(*Matcher)

// WithMinPartialLength overrides the minimum substring length for a partial
// verdict
func WithMinPartialLength(n int) Option {
	return func(m *Matcher) { m.minPartialLen = n }
}

// New creates a Matcher with the default rules
func New(opts ...Option) *Matcher {
	m := &Matcher{minPartialLen: 3}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match compares a transaction value against a watchlist value
func (m *Matcher) Match(txValue, watchValue string, kind FieldKind) Result {
	if kind == FieldKindLocation {
		return m.matchLocation(txValue, watchValue)
	}
	return m.compare(normalize.Normalize(txValue), normalize.Normalize(watchValue))
}

// matchLocation expands the watchlist value through the variant resolver and
// splits the transaction value into its compound parts, so that
// "Madrid, España" against "MADRID" still counts as exact.
func (m *Matcher) matchLocation(txValue, watchValue string) Result {
	txParts := []string{txValue}
	loc := normalize.SplitCompoundLocation(txValue)
	for _, part := range []string{loc.City, loc.Region, loc.Country} {
		if part != "" && part != txValue {
			txParts = append(txParts, part)
		}
	}

	watchParts := []string{watchValue}
	for _, v := range normalize.ResolveVariants(watchValue) {
		watchParts = append(watchParts, v)
	}

	best := Result{Verdict: models.VerdictNone}
	for _, tx := range txParts {
		ntx := normalize.Normalize(tx)
		for _, watch := range watchParts {
			r := m.compare(ntx, normalize.Normalize(watch))
			if r.Verdict == models.VerdictExact {
				return r
			}
			if betterThan(r, best) {
				best = r
			}
		}
	}
	return best
}

// compare applies the plain-text rule to two already-normalized values
func (m *Matcher) compare(tx, watch string) Result {
	if watch == "" || tx == "" {
		return Result{Verdict: models.VerdictNone}
	}
	txLen := utf8.RuneCountInString(tx)
	watchLen := utf8.RuneCountInString(watch)
	// length-1 inputs never match
	if txLen <= 1 || watchLen <= 1 {
		return Result{Verdict: models.VerdictNone}
	}

	if tx == watch {
		return Result{Verdict: models.VerdictExact, Confidence: 1.0, Similarity: 1.0}
	}

	shorter, longer := tx, watch
	shortLen, longLen := txLen, watchLen
	if shortLen > longLen {
		shorter, longer = watch, tx
		shortLen, longLen = watchLen, txLen
	}

	if shortLen >= m.minPartialLen && strings.Contains(longer, shorter) {
		confidence := float64(shortLen) / float64(longLen)
		if confidence < 0.5 {
			confidence = 0.5
		}
		return Result{
			Verdict:    models.VerdictPartial,
			Confidence: confidence,
			Similarity: similarity(tx, watch),
		}
	}

	return Result{Verdict: models.VerdictNone, Similarity: similarity(tx, watch)}
}

func betterThan(a, b Result) bool {
	if rank(a.Verdict) != rank(b.Verdict) {
		return rank(a.Verdict) > rank(b.Verdict)
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Similarity > b.Similarity
}

func rank(v models.MatchVerdict) int {
	switch v {
	case models.VerdictExact:
		return 2
	case models.VerdictPartial:
		return 1
	default:
		return 0
	}
}

// similarity is the Levenshtein distance turned into a [0,1] ratio
func similarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}
