package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings. Values come from config.json when
// present, overridden by environment variables.
type Config struct {
	// model provider
	Provider       string  `json:"provider"` // "openai" or "mock"
	APIKey         string  `json:"api_key"`
	BaseURL        string  `json:"base_url"`
	ChatModel      string  `json:"chat_model"`
	EmbeddingModel string  `json:"embedding_model"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSec     int     `json:"timeout_sec"`
	MaxRetries     int     `json:"max_retries"`

	// chunking
	MaxCharsPerChunk int `json:"max_chars_per_chunk"`
	MaxChunks        int `json:"max_chunks"`

	// concurrency
	ConcurrencyLimit int `json:"concurrency_limit"` // across batch items
	ChunkConcurrency int `json:"chunk_concurrency"` // within one language

	// merge
	DedupSimilarityThreshold float64 `json:"dedup_similarity_threshold"`

	// result cache
	CacheBackend  string `json:"cache_backend"` // "memory" or "redis"
	CacheTTLSec   int    `json:"cache_ttl_sec"`
	CacheCapacity int    `json:"cache_capacity"`
	RedisAddr     string `json:"redis_addr"`

	// summary store
	StoreBackend     string `json:"store_backend"` // "memory", "pgvector", "milvus"
	PostgresURL      string `json:"postgres_url"`
	MilvusAddr       string `json:"milvus_addr"`
	MilvusCollection string `json:"milvus_collection"`

	// jobs and server
	JobRetentionSec int    `json:"job_retention_sec"`
	ListenAddr      string `json:"listen_addr"`
	LogLevel        string `json:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Provider:                 "openai",
		BaseURL:                  "",
		ChatModel:                "gpt-4o-mini",
		EmbeddingModel:           "text-embedding-3-small",
		Temperature:              0.2,
		MaxTokens:                1200,
		TimeoutSec:               30,
		MaxRetries:               3,
		MaxCharsPerChunk:         8000,
		MaxChunks:                0,
		ConcurrencyLimit:         1,
		ChunkConcurrency:         4,
		DedupSimilarityThreshold: 0.82,
		CacheBackend:             "memory",
		CacheTTLSec:              3600,
		CacheCapacity:            1024,
		RedisAddr:                "localhost:6379",
		StoreBackend:             "memory",
		MilvusCollection:         "summary_insights",
		JobRetentionSec:          86400,
		ListenAddr:               ":8080",
		LogLevel:                 "info",
	}
}

// Load reads config.json if present, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = "config.json"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Provider, "PROVIDER")
	setString(&cfg.APIKey, "API_KEY")
	setString(&cfg.BaseURL, "BASE_URL")
	setString(&cfg.ChatModel, "CHAT_MODEL")
	setString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	setFloat32(&cfg.Temperature, "TEMPERATURE")
	setInt(&cfg.MaxTokens, "MAX_TOKENS")
	setInt(&cfg.TimeoutSec, "TIMEOUT_SEC")
	setInt(&cfg.MaxRetries, "MAX_RETRIES")
	setInt(&cfg.MaxCharsPerChunk, "MAX_CHARS_PER_CHUNK")
	setInt(&cfg.MaxChunks, "MAX_CHUNKS")
	setInt(&cfg.ConcurrencyLimit, "CONCURRENCY_LIMIT")
	setInt(&cfg.ChunkConcurrency, "CHUNK_CONCURRENCY")
	setFloat64(&cfg.DedupSimilarityThreshold, "DEDUP_SIMILARITY_THRESHOLD")
	setString(&cfg.CacheBackend, "CACHE_BACKEND")
	setInt(&cfg.CacheTTLSec, "CACHE_TTL_SEC")
	setInt(&cfg.CacheCapacity, "CACHE_CAPACITY")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.StoreBackend, "STORE")
	setString(&cfg.PostgresURL, "POSTGRES_URL")
	setString(&cfg.MilvusAddr, "MILVUS_ADDR")
	setString(&cfg.MilvusCollection, "MILVUS_COLLECTION")
	setInt(&cfg.JobRetentionSec, "JOB_RETENTION_SEC")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
}

// Validate rejects settings that would make the engine misbehave. These are
// the only failures treated as fatal at the whole-request level.
func (c *Config) Validate() error {
	var problems []string

	if c.MaxCharsPerChunk <= 0 {
		problems = append(problems, fmt.Sprintf("max_chars_per_chunk must be positive, got %d", c.MaxCharsPerChunk))
	}
	if c.MaxChunks < 0 {
		problems = append(problems, "max_chunks must not be negative")
	}
	if c.ConcurrencyLimit < 1 {
		problems = append(problems, "concurrency_limit must be at least 1")
	}
	if c.ChunkConcurrency < 1 {
		problems = append(problems, "chunk_concurrency must be at least 1")
	}
	if c.MaxRetries < 1 {
		problems = append(problems, "max_retries must be at least 1")
	}
	if c.DedupSimilarityThreshold <= 0 || c.DedupSimilarityThreshold > 1 {
		problems = append(problems, "dedup_similarity_threshold must be in (0, 1]")
	}
	if c.Provider != "mock" && strings.TrimSpace(c.APIKey) == "" {
		problems = append(problems, "api_key is required unless provider is \"mock\"")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Timeout returns the per-model-call timeout.
func (c *Config) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// CacheTTL returns the result cache time-to-live.
func (c *Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSec) * time.Second }

// JobRetention returns how long completed jobs stay queryable.
func (c *Config) JobRetention() time.Duration { return time.Duration(c.JobRetentionSec) * time.Second }

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
