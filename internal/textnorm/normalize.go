// Package textnorm provides question text normalization for the matching
// pipeline. It segments mixed Chinese/Latin text into tokens and keeps only
// tokens that carry matching signal: words, numbers, and the math symbols
// that distinguish question types.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-ego/gse"
)

// importantSymbols are single-rune tokens retained during normalization.
// Math operators and angle/degree marks often decide which knowledge point
// a question exercises (e.g. ≥ vs = separates inequalities from equations).
var importantSymbols = map[string]struct{}{
	"+": {}, "-": {}, "×": {}, "÷": {}, "*": {}, "/": {},
	"=": {}, ">": {}, "<": {}, "≥": {}, "≤": {}, "≠": {}, "±": {},
	"°": {}, "∠": {}, "△": {}, "⊥": {}, "∥": {},
	"√": {}, "π": {}, "%": {}, "²": {}, "³": {},
}

// Normalizer segments and cleans raw question text.
// Safe for concurrent use after construction; the segmenter dictionary is
// loaded once and read-only thereafter.
type Normalizer struct {
	seg gse.Segmenter
}

// New creates a Normalizer with the embedded segmentation dictionary.
func New() (*Normalizer, error) {
	seg, err := gse.New()
	if err != nil {
		return nil, err
	}
	return &Normalizer{seg: seg}, nil
}

// Normalize collapses whitespace, segments the text, and re-joins the
// retained tokens with single spaces. Deterministic and side-effect free;
// empty input yields empty output.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens returns the retained tokens of the text in order.
// A token survives when it is alphanumeric, longer than one rune, or a
// member of the important-symbol set; everything else is punctuation noise.
func (n *Normalizer) Tokens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	collapsed := collapseWhitespace(text)

	var tokens []string
	for _, tok := range n.seg.Cut(collapsed, true) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if keepToken(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// keepToken reports whether a segmented token carries matching signal.
func keepToken(tok string) bool {
	if isAlphanumeric(tok) {
		return true
	}
	if utf8.RuneCountInString(tok) > 1 {
		return true
	}
	_, ok := importantSymbols[tok]
	return ok
}

// isAlphanumeric reports whether every rune is a letter or digit.
func isAlphanumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Collapse replaces runs of whitespace with a single space without
// segmenting. Rule matching uses this form so that keyword substrings
// survive intact regardless of how the segmenter would split them.
func Collapse(text string) string {
	return collapseWhitespace(text)
}

// collapseWhitespace replaces runs of whitespace with a single space.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
