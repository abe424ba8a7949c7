// Package main provides the knowledge point matching server entry point.
package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ulinhsu/kpmatch-go/internal/buildinfo"
	"github.com/ulinhsu/kpmatch-go/internal/classify"
	"github.com/ulinhsu/kpmatch-go/internal/config"
	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/match"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
	"github.com/ulinhsu/kpmatch-go/internal/search"
	"github.com/ulinhsu/kpmatch-go/internal/storage"
)

type apiHandler struct {
	cfg        *config.Config
	log        *logger.Logger
	metrics    *metrics.Metrics
	engine     *match.Engine
	classifier *classify.Classifier
	search     *search.Index
	repo       *storage.QuestionRepository
}

type matchRequest struct {
	Text        string `json:"text" binding:"required"`
	TopK        int    `json:"top_k"`
	SubjectHint string `json:"subject_hint"`
}

type matchedPoint struct {
	KnowledgePointID    string             `json:"knowledge_point_id"`
	Name                string             `json:"name"`
	Subject             string             `json:"subject"`
	SubjectName         string             `json:"subject_name"`
	Confidence          float64            `json:"confidence"`
	ContributingMethods []string           `json:"contributing_methods"`
	MethodScores        map[string]float64 `json:"method_scores"`
	MatchReasons        []string           `json:"match_reasons"`
}

func (h *apiHandler) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	candidates, err := h.engine.Match(c.Request.Context(), req.Text, req.TopK, req.SubjectHint)
	if err != nil {
		h.serverError(c, err)
		return
	}

	results := make([]matchedPoint, len(candidates))
	for i, cand := range candidates {
		results[i] = matchedPoint{
			KnowledgePointID:    cand.Point.Path,
			Name:                cand.Point.Name,
			Subject:             cand.Point.Subject,
			SubjectName:         cand.Point.SubjectName,
			Confidence:          cand.Confidence,
			ContributingMethods: cand.ContributingMethods,
			MethodScores:        cand.MethodScores,
			MatchReasons:        cand.MatchReasons,
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

type classifyRequest struct {
	Text        string `json:"text" binding:"required"`
	UseEnsemble *bool  `json:"use_ensemble"`
}

func (h *apiHandler) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	useEnsemble := req.UseEnsemble == nil || *req.UseEnsemble
	result, err := h.classifier.Classify(c.Request.Context(), req.Text, useEnsemble)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type similarRequest struct {
	Question  search.Question `json:"question" binding:"required"`
	TopK      int             `json:"top_k"`
	Threshold float64         `json:"threshold"`
}

func (h *apiHandler) handleSimilar(c *gin.Context) {
	var req similarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	results, err := h.search.FindSimilar(req.Question, req.TopK, req.Threshold)
	if err != nil {
		if errors.Is(err, domerrors.ErrIndexNotBuilt) {
			h.metrics.RecordHTTPError("index_not_built", c.FullPath())
			c.JSON(http.StatusConflict, gin.H{"error": "question index not built, import questions first"})
			return
		}
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

type duplicatesRequest struct {
	Question search.Question `json:"question" binding:"required"`
	TopK     int             `json:"top_k"`
}

func (h *apiHandler) handleDuplicates(c *gin.Context) {
	var req duplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	results, err := h.search.FindDuplicates(req.Question, req.TopK)
	if err != nil {
		if errors.Is(err, domerrors.ErrIndexNotBuilt) {
			h.metrics.RecordHTTPError("index_not_built", c.FullPath())
			c.JSON(http.StatusConflict, gin.H{"error": "question index not built, import questions first"})
			return
		}
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

type importRequest struct {
	Questions []storage.Question `json:"questions" binding:"required"`
}

// handleImportQuestions stores a batch of questions and rebuilds the search
// index over the updated corpus.
func (h *apiHandler) handleImportQuestions(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if len(req.Questions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "questions must not be empty"})
		return
	}

	if err := h.repo.UpsertAll(c.Request.Context(), req.Questions); err != nil {
		var vErr *domerrors.ValidationError
		if errors.As(err, &vErr) {
			h.badRequest(c, err)
			return
		}
		h.serverError(c, err)
		return
	}

	wrap := domerrors.NewWrapper("search", "import_questions")
	stored, err := h.repo.GetAll(c.Request.Context())
	if err != nil {
		h.serverError(c, wrap.Wrap(err, "failed to reload question bank"))
		return
	}
	if err := h.search.BuildIndex(toSearchQuestions(stored)); err != nil {
		h.serverError(c, wrap.Wrapf(err, "failed to rebuild index over %d questions", len(stored)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": len(req.Questions), "indexed": len(stored)})
}

func (h *apiHandler) handleStatistics(c *gin.Context) {
	engineStats := h.engine.Stats().Snapshot()
	searchStats := h.search.Statistics()

	c.JSON(http.StatusOK, gin.H{
		"engine": gin.H{
			"total_calls":          engineStats.TotalCalls,
			"method_usage":         engineStats.MethodUsage,
			"confidence_histogram": engineStats.ConfidenceHistogram,
			"semantic_enabled":     h.engine.SemanticEnabled(),
		},
		"search": searchStats,
	})
}

func (h *apiHandler) handleReady(c *gin.Context) {
	if !h.engine.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "matching engine not warmed up",
		})
		return
	}

	count, err := h.repo.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "ready",
		"version":          buildinfo.Version,
		"taxonomy_points":  h.engine.Taxonomy().Len(),
		"semantic_enabled": h.engine.SemanticEnabled(),
		"question_bank":    count,
		"index_built":      h.search.Built(),
	})
}

func (h *apiHandler) badRequest(c *gin.Context, err error) {
	h.metrics.RecordHTTPError("bad_request", c.FullPath())
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *apiHandler) serverError(c *gin.Context, err error) {
	h.metrics.RecordHTTPError("internal", c.FullPath())
	h.log.WithError(err).WithField("path", c.FullPath()).Error("Request handler failed")
	// Internal detail stays in the log; clients get the user-facing message.
	c.JSON(http.StatusInternalServerError, gin.H{"error": domerrors.GetUserMessage(err)})
}
