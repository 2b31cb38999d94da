package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "./configs/config.yaml"

	defaultOllamaURL      = "http://localhost:11434"
	defaultInferenceModel = "granite3-dense:8b"
	defaultEmbeddingModel = "all-minilm"
	defaultKnowledgeFile  = "data/emissions_india.txt"
	defaultPersistDir     = "data/chromem"
	defaultCollection     = "ecoroute"
	defaultLLMTimeout     = 60 * time.Second
	defaultServerAddr     = ":8080"
)

// Environment overrides, applied after the YAML file.
const (
	EnvOllamaURL   = "ECOROUTE_OLLAMA_URL"
	EnvLLMModel    = "ECOROUTE_LLM_MODEL"
	EnvDatabaseDSN = "ECOROUTE_DATABASE_DSN"
)

const (
	ModeVector = "vector"
	ModeNaive  = "naive"

	StoreChromem  = "chromem"
	StorePgvector = "pgvector"

	ChunkRecursive = "recursive"
	ChunkSliding   = "sliding"
	ChunkFixed     = "fixed"
)

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Emissions EmissionsConfig `yaml:"emissions"`
	RAG       RAGConfig       `yaml:"rag"`
	LLM       LLMConfig       `yaml:"llm"`
	EmbedLLM  LLMConfig       `yaml:"embed_llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
}

type KnowledgeConfig struct {
	Files []string `yaml:"files"`
	// Builtin falls back to the bundled handbook text when no file loads.
	Builtin bool `yaml:"builtin"`
}

type EmissionsConfig struct {
	Table string `yaml:"table" validate:"omitempty,oneof=india urban"`
	File  string `yaml:"file"`
}

type RAGConfig struct {
	Mode           string `yaml:"mode" validate:"oneof=vector naive"`
	Store          string `yaml:"store" validate:"oneof=chromem pgvector"`
	ChunkStrategy  string `yaml:"chunk_strategy" validate:"oneof=recursive sliding fixed"`
	ChunkSize      int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap   int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	TopK           int    `yaml:"top_k" validate:"gte=1"`
	NaiveChunkSize int    `yaml:"naive_chunk_size" validate:"gt=0"`
	NaiveDimension int    `yaml:"naive_dimension" validate:"gt=0"`
	PersistDir     string `yaml:"persist_dir"`
	Collection     string `yaml:"collection" validate:"required"`
	EncryptionKey  string `yaml:"encryption_key"`
}

type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	Model       string        `yaml:"model" validate:"required"`
	Temperature float64       `yaml:"temperature" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	CacheSize   int           `yaml:"cache_size" validate:"gte=0"`
}

type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	Driver    string `yaml:"driver" validate:"omitempty,oneof=pgdriver postgres"`
	Password  string `yaml:"password"`
	Debug     bool   `yaml:"debug"`
	TableName string `yaml:"table_name"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type SessionConfig struct {
	MaxHistory int `yaml:"max_history" validate:"gte=0"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Knowledge: KnowledgeConfig{
			Files:   []string{defaultKnowledgeFile},
			Builtin: true,
		},
		Emissions: EmissionsConfig{Table: "india"},
		RAG: RAGConfig{
			Mode:           ModeVector,
			Store:          StoreChromem,
			ChunkStrategy:  ChunkRecursive,
			ChunkSize:      500,
			ChunkOverlap:   50,
			TopK:           3,
			NaiveChunkSize: 500,
			NaiveDimension: 300,
			PersistDir:     defaultPersistDir,
			Collection:     defaultCollection,
		},
		LLM: LLMConfig{
			BaseURL: defaultOllamaURL,
			Model:   defaultInferenceModel,
			Timeout: defaultLLMTimeout,
		},
		EmbedLLM: LLMConfig{
			BaseURL:   defaultOllamaURL,
			Model:     defaultEmbeddingModel,
			Timeout:   defaultLLMTimeout,
			CacheSize: 256,
		},
		Database: DatabaseConfig{Driver: "pgdriver", TableName: "documents"},
		Server:   ServerConfig{Addr: defaultServerAddr},
		Session:  SessionConfig{MaxHistory: 50},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults. A missing
// file is not an error; the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints declared on the config structs.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RAG.Store == StorePgvector && cfg.Database.DSN == "" {
		return errors.New("invalid config: database.dsn is required for the pgvector store")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvOllamaURL); v != "" {
		cfg.LLM.BaseURL = v
		cfg.EmbedLLM.BaseURL = v
	}
	if v := os.Getenv(EnvLLMModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		cfg.Database.DSN = v
	}
}

// applyDefaults fills zero values a partial YAML file may have cleared.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.RAG.Mode == "" {
		cfg.RAG.Mode = def.RAG.Mode
	}
	if cfg.RAG.Store == "" {
		cfg.RAG.Store = def.RAG.Store
	}
	if cfg.RAG.ChunkStrategy == "" {
		cfg.RAG.ChunkStrategy = def.RAG.ChunkStrategy
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
		cfg.RAG.ChunkOverlap = def.RAG.ChunkOverlap
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.RAG.NaiveChunkSize == 0 {
		cfg.RAG.NaiveChunkSize = def.RAG.NaiveChunkSize
	}
	if cfg.RAG.NaiveDimension == 0 {
		cfg.RAG.NaiveDimension = def.RAG.NaiveDimension
	}
	if cfg.RAG.Collection == "" {
		cfg.RAG.Collection = def.RAG.Collection
	}
	for _, llm := range []*LLMConfig{&cfg.LLM, &cfg.EmbedLLM} {
		if llm.BaseURL == "" {
			llm.BaseURL = defaultOllamaURL
		}
		if llm.Timeout == 0 {
			llm.Timeout = defaultLLMTimeout
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = def.EmbedLLM.Model
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = def.Database.Driver
	}
	if cfg.Database.TableName == "" {
		cfg.Database.TableName = def.Database.TableName
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}
