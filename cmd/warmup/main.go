// Command warmup precomputes the knowledge point embedding snapshot offline
// so server startup does not pay per-point embedding calls. Run it whenever
// the taxonomy or the embedding model changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	"github.com/ulinhsu/kpmatch-go/internal/embedding"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/match"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	resetFlag   = flag.Bool("reset", false, "Ignore the existing snapshot and embed every point again")
	timeoutFlag = flag.Duration("timeout", 10*time.Minute, "Overall embedding timeout")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting embedding warmup tool")

	if !cfg.SemanticEnabled() {
		log.Error("OPENAI_API_KEY not configured, nothing to precompute")
		os.Exit(1)
	}

	idx, err := taxonomy.LoadFile(cfg.TaxonomyPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load taxonomy")
	}
	log.WithField("points", idx.Len()).Info("Taxonomy loaded")

	norm, err := textnorm.New()
	if err != nil {
		log.WithError(err).Fatal("Failed to load segmentation dictionary")
	}

	embedder, err := embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDims)
	if err != nil {
		log.WithError(err).Fatal("Failed to create embedding backend")
	}

	var snap *embedding.Snapshot
	if !*resetFlag {
		if loaded, err := embedding.LoadSnapshot(cfg.EmbeddingSnapshotPath()); err == nil {
			snap = loaded
			log.WithField("cached", len(loaded.Vectors)).Info("Reusing existing snapshot vectors")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	engine := match.NewEngine(cfg.Match, norm, idx, embedder, log, metrics.New(prometheus.NewRegistry()))
	start := time.Now()
	out, err := engine.WarmUp(ctx, snap)
	if err != nil {
		log.WithError(err).Fatal("Failed to embed taxonomy")
	}

	if err := embedding.SaveSnapshot(cfg.EmbeddingSnapshotPath(), out); err != nil {
		log.WithError(err).Fatal("Failed to save embedding snapshot")
	}

	log.WithFields(map[string]any{
		"path":        cfg.EmbeddingSnapshotPath(),
		"vectors":     len(out.Vectors),
		"model":       out.Model,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Embedding snapshot written")
	fmt.Printf("✅ Snapshot written: %d vectors (%s)\n", len(out.Vectors), cfg.EmbeddingSnapshotPath())
}
