// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/sessionrec/internal/domain/rules"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Neo4j connection. An empty URI runs the service on the in-memory store.
	Neo4jURI            string `koanf:"neo4j_uri"`
	Neo4jUser           string `koanf:"neo4j_user"`
	Neo4jPassword       string `koanf:"neo4j_password"`
	Neo4jDatabase       string `koanf:"neo4j_database"`
	Neo4jMaxPoolSize    int    `koanf:"neo4j_max_pool_size" validate:"gte=1"`
	Neo4jTimeoutSeconds int    `koanf:"neo4j_timeout_seconds" validate:"gte=1"`

	// Hosted model endpoint. An empty key disables embeddings and LLM filtering.
	LLMBaseURL         string `koanf:"llm_base_url" validate:"omitempty,url"`
	LLMAPIKey          string `koanf:"llm_api_key"`
	LLMModel           string `koanf:"llm_model"`
	LLMEmbedModel      string `koanf:"llm_embed_model"`
	LLMTimeoutSeconds  int    `koanf:"llm_timeout_seconds" validate:"gte=1"`
	LLMBreakerFailures int    `koanf:"llm_breaker_failures" validate:"gte=1"`

	// DefaultMinScore applies when a request leaves min_score unset.
	DefaultMinScore float64 `koanf:"default_min_score" validate:"gte=0,lte=1"`
	// DefaultMaxRecommendations applies when a request leaves max unset.
	DefaultMaxRecommendations int `koanf:"default_max_recommendations" validate:"gte=1"`
	// MaxRecommendationsLimit caps the max a request may ask for.
	MaxRecommendationsLimit int `koanf:"max_recommendations_limit" validate:"gtefield=DefaultMaxRecommendations"`

	// SimilarVisitors is k when borrowing history from similar visitors.
	SimilarVisitors int `koanf:"similar_visitors" validate:"gte=1"`
	// SimilarPoolSize bounds the overlap candidate pool.
	SimilarPoolSize int     `koanf:"similar_pool_size" validate:"gte=1"`
	EmbeddingWeight float64 `koanf:"embedding_weight" validate:"gte=0,lte=1"`
	OverlapWeight   float64 `koanf:"overlap_weight" validate:"gte=0,lte=1"`

	// SimilarityMaxWorkers bounds the similarity fan-out.
	SimilarityMaxWorkers int `koanf:"similarity_max_workers" validate:"gte=1"`

	// Rules is the business-rule set. Only configurable from the YAML file.
	Rules rules.Config `koanf:"rules"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		Neo4jDatabase:             "neo4j",
		Neo4jMaxPoolSize:          50,
		Neo4jTimeoutSeconds:       30,
		LLMBaseURL:                "https://api.openai.com",
		LLMModel:                  "gpt-4o-mini",
		LLMEmbedModel:             "text-embedding-3-small",
		LLMTimeoutSeconds:         60,
		LLMBreakerFailures:        5,
		DefaultMinScore:           0.0,
		DefaultMaxRecommendations: 10,
		MaxRecommendationsLimit:   100,
		SimilarVisitors:           3,
		SimilarPoolSize:           20,
		EmbeddingWeight:           0.7,
		OverlapWeight:             0.3,
		SimilarityMaxWorkers:      8,
		Rules:                     rules.DefaultConfig(),
	}
}

// Neo4jTimeout returns the Neo4j connection timeout.
func (c *Config) Neo4jTimeout() time.Duration {
	return time.Duration(c.Neo4jTimeoutSeconds) * time.Second
}

// LLMTimeout returns the outbound model call timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks field constraints and the rule set.
func (c *Config) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("%w: rules: %v", ErrInvalidConfig, err)
	}
	return nil
}
