package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	Redis       RedisConfig      `json:"redis"`
	AI          AIConfig         `json:"ai"`
	RAG         RAGConfig        `json:"rag"`
	FileStore   FileStoreConfig  `json:"file_store"`
	CORSAllow   []string         `json:"cors_allow"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AIConfig struct {
	Provider       string          `json:"provider"`
	Data           interface{}     `json:"data"`
	Fallbacks      []AIProviderRef `json:"fallbacks"`
	EmbedModel     string          `json:"embed_model"`
	GenModel       string          `json:"gen_model"`
	TimeoutSeconds int             `json:"timeout_seconds"`
}

// AIProviderRef names an additional provider tried when the primary fails.
type AIProviderRef struct {
	Provider string      `json:"provider"`
	Data     interface{} `json:"data"`
}

type RAGConfig struct {
	ChunkSize           int     `json:"chunk_size"`
	ChunkOverlap        int     `json:"chunk_overlap"`
	EmbeddingDim        int     `json:"embedding_dim"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
	PageBatchSize       int     `json:"page_batch_size"`
	EmbedBatchSize      int     `json:"embed_batch_size"`
	StoreBatchSize      int     `json:"store_batch_size"`
	BuildLockTTLMinutes int     `json:"build_lock_ttl_minutes"`
	StuckBuildMinutes   int     `json:"stuck_build_minutes"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "text-embedding-004"
	}
	if cfg.AI.GenModel == "" {
		cfg.AI.GenModel = "gemini-2.5-flash"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	cfg.RAG = cfg.RAG.withDefaults()
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		cfg.FileStore.Data = map[string]interface{}{"dir": "./snapshots"}
	}
	return &cfg, nil
}

func (c RAGConfig) withDefaults() RAGConfig {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.EmbeddingDim == 0 {
		c.EmbeddingDim = 768
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.25
	}
	if c.PageBatchSize == 0 {
		c.PageBatchSize = 50
	}
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = 20
	}
	if c.StoreBatchSize == 0 {
		c.StoreBatchSize = 50
	}
	if c.BuildLockTTLMinutes == 0 {
		c.BuildLockTTLMinutes = 30
	}
	if c.StuckBuildMinutes == 0 {
		c.StuckBuildMinutes = 60
	}
	return c
}
