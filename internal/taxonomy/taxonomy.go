// Package taxonomy provides the in-memory knowledge taxonomy: the fixed tree
// of subject -> category -> knowledge point that the matchers score against.
// The taxonomy is validated and flattened once at load time and is read-only
// for the lifetime of the engine, so it is safe to share across requests
// without locking.
package taxonomy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
)

// KnowledgePoint is one leaf of the taxonomy: a single learnable concept.
// Immutable after load.
type KnowledgePoint struct {
	Path        string // dotted path: subject.category.point_id
	ID          string
	Name        string
	Subject     string // subject key (e.g. "math")
	SubjectName string // display name (e.g. "数学")
	Category    string

	Keywords         []string
	Patterns         []*regexp.Regexp
	NegativePatterns []*regexp.Regexp

	Difficulty    int     // 1-5
	Importance    int     // 1-5
	ExamFrequency float64 // 0.0-1.0

	// BaseConfidence reflects how distinctive this point's signature is;
	// the rule matcher starts from it before keyword/pattern bonuses.
	BaseConfidence float64
	Weight         float64

	// Ord is the point's position in the canonical taxonomy order,
	// used as the stable tie-break when confidences are equal.
	Ord int
}

// SyntheticDocument builds the pseudo-document used to vectorize this point
// for lexical and semantic matching: its keywords plus the literal words of
// its patterns, regex syntax stripped.
func (kp *KnowledgePoint) SyntheticDocument() string {
	parts := make([]string, 0, len(kp.Keywords)+len(kp.Patterns)+1)
	parts = append(parts, kp.Name)
	parts = append(parts, kp.Keywords...)
	for _, p := range kp.Patterns {
		if lit := PatternLiterals(p.String()); lit != "" {
			parts = append(parts, lit)
		}
	}
	return strings.Join(parts, " ")
}

// PatternLiterals strips regex metacharacters from a pattern, leaving the
// literal vocabulary it anchors on. "求.*?的值" becomes "求 的值".
func PatternLiterals(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		if escaped {
			// Escaped metacharacters drop together with their class
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '.', '*', '?', '+', '^', '$', '|', '(', ')', '[', ']', '{', '}':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Index is the flattened, read-only view of the taxonomy.
type Index struct {
	byPath    map[string]*KnowledgePoint
	ordered   []*KnowledgePoint // canonical order (sorted by path)
	bySubject map[string][]*KnowledgePoint
	subjects  map[string]string // subject key -> display name
}

// NewIndex flattens a validated set of knowledge points into an index.
// Points are assigned their canonical ordinal here.
func NewIndex(points []*KnowledgePoint, subjectNames map[string]string) (*Index, error) {
	idx := &Index{
		byPath:    make(map[string]*KnowledgePoint, len(points)),
		ordered:   make([]*KnowledgePoint, 0, len(points)),
		bySubject: make(map[string][]*KnowledgePoint),
		subjects:  subjectNames,
	}

	for _, kp := range points {
		if _, dup := idx.byPath[kp.Path]; dup {
			return nil, domerrors.NewTaxonomyError(kp.Path, "duplicate knowledge point path")
		}
		idx.byPath[kp.Path] = kp
		idx.ordered = append(idx.ordered, kp)
	}

	sort.Slice(idx.ordered, func(i, j int) bool {
		return idx.ordered[i].Path < idx.ordered[j].Path
	})
	for i, kp := range idx.ordered {
		kp.Ord = i
		idx.bySubject[kp.Subject] = append(idx.bySubject[kp.Subject], kp)
	}

	return idx, nil
}

// Lookup returns the knowledge point at the given dotted path.
func (idx *Index) Lookup(path string) (*KnowledgePoint, bool) {
	kp, ok := idx.byPath[path]
	return kp, ok
}

// All returns every knowledge point in canonical order.
// The returned slice is shared; callers must not mutate it.
func (idx *Index) All() []*KnowledgePoint {
	return idx.ordered
}

// ForSubject returns the knowledge points of one subject in canonical order.
func (idx *Index) ForSubject(subject string) []*KnowledgePoint {
	return idx.bySubject[subject]
}

// Subjects returns the subject key -> display name mapping.
func (idx *Index) Subjects() map[string]string {
	return idx.subjects
}

// SubjectName returns the display name for a subject key, falling back to
// the key itself when no display name was configured.
func (idx *Index) SubjectName(subject string) string {
	if name, ok := idx.subjects[subject]; ok {
		return name
	}
	return subject
}

// Len returns the number of knowledge points.
func (idx *Index) Len() int {
	return len(idx.ordered)
}

// JoinPath builds the dotted path for a point.
func JoinPath(subject, category, pointID string) string {
	return fmt.Sprintf("%s.%s.%s", subject, category, pointID)
}
