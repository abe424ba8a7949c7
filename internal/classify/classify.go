// Package classify decides which curriculum subject a question belongs to.
// It reuses the matching engine's per-method evidence, aggregated to subject
// granularity and fused with the same weight-renormalization scheme.
package classify

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/match"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
)

// Unclassified is returned when no method produces any subject evidence.
// The grading flow treats it as "no subject", never as a failure.
const Unclassified = "unclassified"

// Result is the subject verdict for one query.
type Result struct {
	Subject     string             `json:"subject"`
	SubjectName string             `json:"subject_name"`
	Confidence  float64            `json:"confidence"`
	Method      string             `json:"method"`
	Details     map[string]float64 `json:"details"`
}

// Classifier fuses per-subject evidence from the matching engine.
// Stateless per call; usage counters live in the shared engine stats.
type Classifier struct {
	cfg     config.MatchConfig
	engine  *match.Engine
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New creates a classifier over a warmed-up engine.
func New(cfg config.MatchConfig, engine *match.Engine, log *logger.Logger, m *metrics.Metrics) *Classifier {
	return &Classifier{
		cfg:     cfg,
		engine:  engine,
		log:     log.WithModule("classify"),
		metrics: m,
	}
}

// Classify determines the subject of the text. With useEnsemble the three
// methods' subject scores are fused; without it the single method with the
// highest-confidence verdict wins, an escape hatch for side-by-side
// comparison. Empty text classifies as Unclassified, never an error.
func (c *Classifier) Classify(ctx context.Context, text string, useEnsemble bool) (Result, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		c.metrics.RecordClassify("empty", time.Since(start).Seconds())
		return unclassified(), nil
	}

	bySubject, contributing, err := c.subjectScores(ctx, text)
	if err != nil {
		c.metrics.RecordClassify("error", time.Since(start).Seconds())
		return Result{}, err
	}
	if len(bySubject) == 0 {
		c.engine.Stats().Record(nil, 0)
		c.metrics.RecordClassify("unclassified", time.Since(start).Seconds())
		return unclassified(), nil
	}

	var result Result
	if useEnsemble {
		result = c.fuseSubjects(bySubject)
	} else {
		result = c.bestSingleMethod(bySubject)
	}
	result.SubjectName = c.engine.Taxonomy().SubjectName(result.Subject)

	c.engine.Stats().Record(contributing, result.Confidence)
	for _, m := range contributing {
		c.metrics.RecordMethodUsage(m)
	}
	c.metrics.RecordClassify("ok", time.Since(start).Seconds())
	return result, nil
}

// subjectScores collects raw per-method evidence and keeps, per method and
// subject, the strongest point score as that method's subject evidence.
func (c *Classifier) subjectScores(ctx context.Context, text string) (map[string]map[string]float64, []string, error) {
	byMethod, contributing, err := c.engine.Evidence(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	bySubject := make(map[string]map[string]float64)
	for method, results := range byMethod {
		for _, r := range results {
			subject := r.Point.Subject
			if bySubject[subject] == nil {
				bySubject[subject] = make(map[string]float64)
			}
			if r.Score > bySubject[subject][method] {
				bySubject[subject][method] = r.Score
			}
		}
	}

	sort.Strings(contributing)
	return bySubject, contributing, nil
}

// fuseSubjects applies the ensemble weights per subject and picks the top.
func (c *Classifier) fuseSubjects(bySubject map[string]map[string]float64) Result {
	weights := map[string]float64{
		match.MethodRule:     c.cfg.RuleWeight,
		match.MethodLexical:  c.cfg.LexicalWeight,
		match.MethodSemantic: c.cfg.SemanticWeight,
	}

	best := Result{Subject: Unclassified, Method: "ensemble"}
	for _, subject := range sortedKeys(bySubject) {
		scores := bySubject[subject]

		var weighted, weightSum float64
		n := 0
		for _, method := range []string{match.MethodRule, match.MethodLexical, match.MethodSemantic} {
			score, ok := scores[method]
			if !ok {
				continue
			}
			weighted += weights[method] * score
			weightSum += weights[method]
			n++
		}
		if weightSum == 0 {
			continue
		}

		confidence := weighted / weightSum
		if n > 1 {
			confidence += c.cfg.AgreementBonus * float64(n-1)
		}
		if confidence > 1 {
			confidence = 1
		}

		if confidence > best.Confidence {
			best.Subject = subject
			best.Confidence = confidence
			best.Details = copyScores(scores)
		}
	}
	return best
}

// bestSingleMethod returns the strongest single-method verdict.
func (c *Classifier) bestSingleMethod(bySubject map[string]map[string]float64) Result {
	best := Result{Subject: Unclassified}
	for _, subject := range sortedKeys(bySubject) {
		for _, method := range []string{match.MethodRule, match.MethodLexical, match.MethodSemantic} {
			score, ok := bySubject[subject][method]
			if !ok {
				continue
			}
			if score > best.Confidence {
				best.Subject = subject
				best.Confidence = score
				best.Method = method
				best.Details = copyScores(bySubject[subject])
			}
		}
	}
	return best
}

func unclassified() Result {
	return Result{Subject: Unclassified, SubjectName: Unclassified, Method: "none", Details: map[string]float64{}}
}

func sortedKeys(m map[string]map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyScores(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out
}
