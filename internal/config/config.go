// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// matching thresholds, ensemble weights, cache settings, and the server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// API rate limiting (per client IP, 0 disables)
	RateLimitPerMinute float64

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Data Configuration
	DataDir      string // Data directory for the SQLite question bank and embedding snapshots
	TaxonomyPath string // Path to the YAML knowledge taxonomy file

	// Embedding Backend (optional - semantic matching degrades to disabled without it)
	OpenAIAPIKey   string
	EmbeddingModel string // OpenAI embedding model name
	EmbeddingDims  int    // Requested embedding dimensions

	// Matching Configuration (embedded)
	Match MatchConfig

	// Similarity Search Configuration (embedded)
	Search SearchConfig
}

// MatchConfig holds knowledge-point matching and classification tuning.
// The ensemble weights are hand-tuned defaults, deliberately configuration
// rather than literals so deployments can recalibrate without a rebuild.
type MatchConfig struct {
	RuleWeight     float64 // Ensemble weight of the rule matcher (default: 0.4)
	LexicalWeight  float64 // Ensemble weight of the TF-IDF matcher (default: 0.2)
	SemanticWeight float64 // Ensemble weight of the embedding matcher (default: 0.4)

	AgreementBonus float64 // Confidence bonus per extra corroborating method (default: 0.1)

	LexicalFloor  float64 // Minimum TF-IDF cosine similarity to keep (default: 0.1)
	SemanticFloor float64 // Minimum embedding cosine similarity to keep (default: 0.3)

	MaxFeatures int     // TF-IDF vocabulary cap (default: 3000)
	MinDocFreq  int     // Drop terms appearing in fewer documents (default: 1)
	MaxDocFreq  float64 // Drop terms appearing in more than this document ratio (default: 0.9)

	DefaultTopK int // Result count when the caller passes top_k <= 0 (default: 5)
}

// SearchConfig holds similarity-search tuning.
type SearchConfig struct {
	TextWeight       float64 // Composite weight of text similarity (default: 0.6)
	TypeWeight       float64 // Composite weight of question-type similarity (default: 0.2)
	DifficultyWeight float64 // Composite weight of difficulty similarity (default: 0.1)
	SubjectWeight    float64 // Composite weight of subject similarity (default: 0.1)

	DuplicateThreshold float64 // Composite score treated as a duplicate question (default: 0.85)

	CacheTTL      time.Duration // Search result cache TTL (default: 1 hour)
	CacheCapacity int           // Search result cache entry cap (default: 256)

	SVDThreshold  int // Corpus size above which vectors are SVD-reduced (default: 1000)
	SVDComponents int // Target dimensionality after reduction (default: 300)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		// Server Configuration
		Port:            getEnv("PORT", "10000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		RateLimitPerMinute: getFloatEnv("RATE_LIMIT_PER_MINUTE", 300),

		// Metrics Authentication
		MetricsUsername: getEnv("METRICS_USERNAME", "prometheus"),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		// Data Configuration
		DataDir:      getEnv("DATA_DIR", getDefaultDataDir()),
		TaxonomyPath: getEnv("TAXONOMY_PATH", "taxonomy.yaml"),

		// Embedding Backend
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDims:  getIntEnv("EMBEDDING_DIMS", 768),

		Match: MatchConfig{
			RuleWeight:     getFloatEnv("MATCH_RULE_WEIGHT", 0.4),
			LexicalWeight:  getFloatEnv("MATCH_LEXICAL_WEIGHT", 0.2),
			SemanticWeight: getFloatEnv("MATCH_SEMANTIC_WEIGHT", 0.4),
			AgreementBonus: getFloatEnv("MATCH_AGREEMENT_BONUS", 0.1),
			LexicalFloor:   getFloatEnv("MATCH_LEXICAL_FLOOR", 0.1),
			SemanticFloor:  getFloatEnv("MATCH_SEMANTIC_FLOOR", 0.3),
			MaxFeatures:    getIntEnv("MATCH_MAX_FEATURES", 3000),
			MinDocFreq:     getIntEnv("MATCH_MIN_DOC_FREQ", 1),
			MaxDocFreq:     getFloatEnv("MATCH_MAX_DOC_FREQ", 0.9),
			DefaultTopK:    getIntEnv("MATCH_DEFAULT_TOP_K", 5),
		},

		Search: SearchConfig{
			TextWeight:         getFloatEnv("SEARCH_TEXT_WEIGHT", 0.6),
			TypeWeight:         getFloatEnv("SEARCH_TYPE_WEIGHT", 0.2),
			DifficultyWeight:   getFloatEnv("SEARCH_DIFFICULTY_WEIGHT", 0.1),
			SubjectWeight:      getFloatEnv("SEARCH_SUBJECT_WEIGHT", 0.1),
			DuplicateThreshold: getFloatEnv("SEARCH_DUPLICATE_THRESHOLD", 0.85),
			CacheTTL:           getDurationEnv("SEARCH_CACHE_TTL", time.Hour),
			CacheCapacity:      getIntEnv("SEARCH_CACHE_CAPACITY", 256),
			SVDThreshold:       getIntEnv("SEARCH_SVD_THRESHOLD", 1000),
			SVDComponents:      getIntEnv("SEARCH_SVD_COMPONENTS", 300),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if c.TaxonomyPath == "" {
		errs = append(errs, errors.New("TAXONOMY_PATH is required"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE cannot be negative, got %v", c.RateLimitPerMinute))
	}
	if err := c.Match.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("match config: %w", err))
	}
	if err := c.Search.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search config: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks matching configuration bounds
func (c *MatchConfig) Validate() error {
	var errs []error

	if c.RuleWeight < 0 || c.LexicalWeight < 0 || c.SemanticWeight < 0 {
		errs = append(errs, errors.New("ensemble weights cannot be negative"))
	}
	if c.RuleWeight+c.LexicalWeight+c.SemanticWeight <= 0 {
		errs = append(errs, errors.New("at least one ensemble weight must be positive"))
	}
	if c.LexicalFloor < 0 || c.LexicalFloor > 1 {
		errs = append(errs, fmt.Errorf("MATCH_LEXICAL_FLOOR must be in [0,1], got %v", c.LexicalFloor))
	}
	if c.SemanticFloor < 0 || c.SemanticFloor > 1 {
		errs = append(errs, fmt.Errorf("MATCH_SEMANTIC_FLOOR must be in [0,1], got %v", c.SemanticFloor))
	}
	if c.MaxFeatures <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_FEATURES must be positive, got %d", c.MaxFeatures))
	}
	if c.MaxDocFreq <= 0 || c.MaxDocFreq > 1 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_DOC_FREQ must be in (0,1], got %v", c.MaxDocFreq))
	}
	if c.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_DEFAULT_TOP_K must be positive, got %d", c.DefaultTopK))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks search configuration bounds
func (c *SearchConfig) Validate() error {
	var errs []error

	sum := c.TextWeight + c.TypeWeight + c.DifficultyWeight + c.SubjectWeight
	if sum <= 0 {
		errs = append(errs, errors.New("search weights must sum to a positive value"))
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		errs = append(errs, fmt.Errorf("SEARCH_DUPLICATE_THRESHOLD must be in (0,1], got %v", c.DuplicateThreshold))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_CACHE_TTL must be positive, got %v", c.CacheTTL))
	}
	if c.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_CACHE_CAPACITY must be positive, got %d", c.CacheCapacity))
	}
	if c.SVDComponents <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_SVD_COMPONENTS must be positive, got %d", c.SVDComponents))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite question bank file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "questions.db")
}

// EmbeddingSnapshotPath returns the path of the zstd-compressed embedding snapshot
func (c *Config) EmbeddingSnapshotPath() string {
	return filepath.Join(c.DataDir, "embeddings.json.zst")
}

// SemanticEnabled reports whether an embedding backend is configured.
// Computed once at load; every semantic call site branches on this flag.
func (c *Config) SemanticEnabled() bool {
	return c.OpenAIAPIKey != ""
}
