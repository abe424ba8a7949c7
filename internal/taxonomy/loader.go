package taxonomy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
)

// File schema for the hand-authored taxonomy. Subject and category keys are
// identifiers; display names live in the "name" fields.
type fileRoot struct {
	Subjects map[string]fileSubject `yaml:"subjects"`
}

type fileSubject struct {
	Name       string                  `yaml:"name"`
	Categories map[string]fileCategory `yaml:"categories"`
}

type fileCategory struct {
	Name   string               `yaml:"name"`
	Points map[string]filePoint `yaml:"points"`
}

type filePoint struct {
	Name             string   `yaml:"name"`
	Keywords         []string `yaml:"keywords"`
	Patterns         []string `yaml:"patterns"`
	NegativePatterns []string `yaml:"negative_patterns"`
	Difficulty       int      `yaml:"difficulty"`
	Importance       int      `yaml:"importance"`
	ExamFrequency    float64  `yaml:"exam_frequency"`
	BaseConfidence   float64  `yaml:"base_confidence"`
	Weight           float64  `yaml:"weight"`
}

// LoadFile reads and validates a taxonomy YAML file.
// Any malformed entry is fatal: the engine must refuse to start rather than
// silently match against a partial taxonomy.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	return Load(data)
}

// Load parses and validates taxonomy YAML bytes.
func Load(data []byte) (*Index, error) {
	var root fileRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(root.Subjects) == 0 {
		return nil, domerrors.NewTaxonomyError("", "no subjects defined")
	}

	subjectNames := make(map[string]string, len(root.Subjects))
	var points []*KnowledgePoint

	for subjectKey, subject := range root.Subjects {
		if subject.Name == "" {
			return nil, domerrors.NewTaxonomyError(subjectKey, "subject missing name")
		}
		subjectNames[subjectKey] = subject.Name

		for categoryKey, category := range subject.Categories {
			for pointID, fp := range category.Points {
				kp, err := buildPoint(subjectKey, subject.Name, categoryKey, pointID, fp)
				if err != nil {
					return nil, err
				}
				points = append(points, kp)
			}
		}
	}

	if len(points) == 0 {
		return nil, domerrors.NewTaxonomyError("", "no knowledge points defined")
	}

	return NewIndex(points, subjectNames)
}

// buildPoint validates one entry and compiles its patterns.
func buildPoint(subject, subjectName, category, pointID string, fp filePoint) (*KnowledgePoint, error) {
	path := JoinPath(subject, category, pointID)

	if fp.Name == "" {
		return nil, domerrors.NewTaxonomyError(path, "missing name")
	}
	if len(fp.Keywords) == 0 && len(fp.Patterns) == 0 {
		return nil, domerrors.NewTaxonomyError(path, "needs at least one keyword or pattern")
	}
	if fp.Difficulty < 1 || fp.Difficulty > 5 {
		return nil, domerrors.NewTaxonomyError(path, fmt.Sprintf("difficulty must be 1-5, got %d", fp.Difficulty))
	}
	if fp.Importance < 1 || fp.Importance > 5 {
		return nil, domerrors.NewTaxonomyError(path, fmt.Sprintf("importance must be 1-5, got %d", fp.Importance))
	}
	if fp.ExamFrequency < 0 || fp.ExamFrequency > 1 {
		return nil, domerrors.NewTaxonomyError(path, fmt.Sprintf("exam_frequency must be in [0,1], got %v", fp.ExamFrequency))
	}
	if fp.BaseConfidence < 0 || fp.BaseConfidence > 1 {
		return nil, domerrors.NewTaxonomyError(path, fmt.Sprintf("base_confidence must be in [0,1], got %v", fp.BaseConfidence))
	}

	patterns, err := compileAll(path, "pattern", fp.Patterns)
	if err != nil {
		return nil, err
	}
	negatives, err := compileAll(path, "negative_pattern", fp.NegativePatterns)
	if err != nil {
		return nil, err
	}

	weight := fp.Weight
	if weight == 0 {
		weight = 1.0
	}

	return &KnowledgePoint{
		Path:             path,
		ID:               pointID,
		Name:             fp.Name,
		Subject:          subject,
		SubjectName:      subjectName,
		Category:         category,
		Keywords:         fp.Keywords,
		Patterns:         patterns,
		NegativePatterns: negatives,
		Difficulty:       fp.Difficulty,
		Importance:       fp.Importance,
		ExamFrequency:    fp.ExamFrequency,
		BaseConfidence:   fp.BaseConfidence,
		Weight:           weight,
	}, nil
}

func compileAll(path, kind string, patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, domerrors.NewTaxonomyError(path, fmt.Sprintf("invalid %s %q: %v", kind, p, err))
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
