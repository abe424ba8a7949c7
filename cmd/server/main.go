// Package main provides the knowledge point matching server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ulinhsu/kpmatch-go/internal/buildinfo"
	"github.com/ulinhsu/kpmatch-go/internal/classify"
	"github.com/ulinhsu/kpmatch-go/internal/config"
	"github.com/ulinhsu/kpmatch-go/internal/embedding"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/match"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
	"github.com/ulinhsu/kpmatch-go/internal/ratelimit"
	"github.com/ulinhsu/kpmatch-go/internal/search"
	"github.com/ulinhsu/kpmatch-go/internal/storage"
	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.WithFields(map[string]any{
		"version":    buildinfo.Version,
		"commit":     buildinfo.Commit,
		"build_date": buildinfo.BuildDate,
	}).Info("Starting knowledge point matching server")

	// Connect to the question bank
	db, err := storage.New(cfg.SQLitePath())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() { _ = db.Close() }()
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")
	repo := storage.NewQuestionRepository(db)

	// Create Prometheus registry with runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())
	m := metrics.New(registry)
	log.Info("Metrics initialized")

	// Load the knowledge taxonomy; a malformed taxonomy refuses to start
	// rather than silently matching against a partial one
	idx, err := taxonomy.LoadFile(cfg.TaxonomyPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load taxonomy")
	}
	log.WithFields(map[string]any{
		"path":     cfg.TaxonomyPath,
		"points":   idx.Len(),
		"subjects": len(idx.Subjects()),
	}).Info("Taxonomy loaded")

	norm, err := textnorm.New()
	if err != nil {
		log.WithError(err).Fatal("Failed to load segmentation dictionary")
	}

	// Embedding backend is optional: without a key the engine runs with
	// semantic matching disabled
	var embedder embedding.Embedder
	if cfg.SemanticEnabled() {
		e, err := embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDims)
		if err != nil {
			log.WithError(err).Warn("Failed to create embedding backend, semantic matching disabled")
		} else {
			embedder = e
			log.WithField("model", cfg.EmbeddingModel).Info("Embedding backend enabled")
		}
	} else {
		log.Info("OpenAI API key not configured, semantic matching disabled")
	}

	// Build the matching engine and warm it up before serving traffic
	engine := match.NewEngine(cfg.Match, norm, idx, embedder, log, m)
	warmEngine(context.Background(), engine, cfg, log)
	classifier := classify.New(cfg.Match, engine, log, m)

	// Build the similarity search index from the stored corpus
	searchIndex := search.NewIndex(cfg.Search, cfg.Match, norm, log, m)
	rebuildSearchIndex(context.Background(), searchIndex, repo, log)

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))

	var limiter *ratelimit.PerKeyLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewPerKey(ratelimit.PerKeyConfig{
			MaxTokens:  cfg.RateLimitPerMinute / 30, // 2 seconds of burst
			RefillRate: cfg.RateLimitPerMinute / 60,
		})
		defer limiter.Stop()
	}

	api := &apiHandler{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		engine:     engine,
		classifier: classifier,
		search:     searchIndex,
		repo:       repo,
	}
	setupRoutes(router, api, registry, cfg, limiter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.HTTPRead,
		WriteTimeout: config.HTTPWrite,
		IdleTimeout:  config.HTTPIdle,
	}

	// Background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in index refresh goroutine")
			}
		}()
		refreshSearchIndex(ctx, searchIndex, repo, log)
	}()

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	goDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(goDone)
	}()
	select {
	case <-goDone:
		log.Info("All background goroutines stopped")
	case <-time.After(5 * time.Second):
		log.Warn("Timeout waiting for goroutines to stop")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	if err := db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}

	log.Info("Server stopped")
}

// warmEngine fits the lexical vectorizer and builds the semantic matrix,
// reusing the on-disk embedding snapshot when its model still matches.
func warmEngine(ctx context.Context, engine *match.Engine, cfg *config.Config, log *logger.Logger) {
	var snap *embedding.Snapshot
	if engine.SemanticEnabled() {
		loaded, err := embedding.LoadSnapshot(cfg.EmbeddingSnapshotPath())
		if err != nil {
			log.WithError(err).Debug("No usable embedding snapshot, embedding all points")
		} else {
			snap = loaded
		}
	}

	out, err := engine.WarmUp(ctx, snap)
	if err != nil {
		log.WithError(err).Fatal("Failed to warm up matching engine")
	}

	if out != nil {
		if err := embedding.SaveSnapshot(cfg.EmbeddingSnapshotPath(), out); err != nil {
			log.WithError(err).Warn("Failed to save embedding snapshot")
		}
	}
}

// rebuildSearchIndex loads the stored corpus and builds the index. An empty
// corpus leaves the index unbuilt; searches report not-built until questions
// are imported.
func rebuildSearchIndex(ctx context.Context, idx *search.Index, repo *storage.QuestionRepository, log *logger.Logger) {
	stored, err := repo.GetAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load question corpus")
		return
	}
	if len(stored) == 0 {
		log.Info("Question bank empty, search index not built")
		return
	}

	if err := idx.BuildIndex(toSearchQuestions(stored)); err != nil {
		log.WithError(err).Error("Failed to build search index")
	}
}

func toSearchQuestions(stored []storage.Question) []search.Question {
	questions := make([]search.Question, len(stored))
	for i, q := range stored {
		questions[i] = search.Question{
			ID:         q.ID,
			Stem:       q.Stem,
			Answer:     q.Answer,
			Type:       q.Type,
			Difficulty: q.Difficulty,
			Subject:    q.Subject,
		}
	}
	return questions
}
