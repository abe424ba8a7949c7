package match

import (
	"fmt"
	"sync"
)

// EngineStats tracks observability counters for one engine instance. Owned
// by the engine rather than stored globally so independently constructed
// engines (and tests) never share counters. Never consulted for scoring.
type EngineStats struct {
	mu          sync.Mutex
	totalCalls  int64
	methodUsage map[string]int64
	// histogram buckets confidence to one decimal ("0.7" holds [0.7, 0.8)).
	confidenceHist map[string]int64
}

// NewEngineStats returns zeroed counters.
func NewEngineStats() *EngineStats {
	return &EngineStats{
		methodUsage:    make(map[string]int64),
		confidenceHist: make(map[string]int64),
	}
}

// Record counts one match/classify call, the methods that contributed, and
// the top confidence bucket.
func (s *EngineStats) Record(methods []string, topConfidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalCalls++
	for _, m := range methods {
		s.methodUsage[m]++
	}
	s.confidenceHist[bucket(topConfidence)]++
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalCalls          int64            `json:"total_calls"`
	MethodUsage         map[string]int64 `json:"method_usage"`
	ConfidenceHistogram map[string]int64 `json:"confidence_histogram"`
}

// Snapshot copies the counters without exposing internal maps.
func (s *EngineStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalCalls:          s.totalCalls,
		MethodUsage:         make(map[string]int64, len(s.methodUsage)),
		ConfidenceHistogram: make(map[string]int64, len(s.confidenceHist)),
	}
	for k, v := range s.methodUsage {
		snap.MethodUsage[k] = v
	}
	for k, v := range s.confidenceHist {
		snap.ConfidenceHistogram[k] = v
	}
	return snap
}

func bucket(confidence float64) string {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return fmt.Sprintf("%.1f", float64(int(confidence*10))/10)
}
