package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port         string        `mapstructure:"port"`
	Storage      string        `mapstructure:"storage"` // "mongo" or "memory"
	StoreTimeout time.Duration `mapstructure:"store_timeout"`

	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"mongo_database"`

	Weaviate  WeaviateConfig  `mapstructure:"weaviate"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Search    SearchConfig    `mapstructure:"search"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
}

type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

type EmbeddingConfig struct {
	Provider      string        `mapstructure:"provider"` // "openai" or "gemini"
	BaseURL       string        `mapstructure:"base_url"`
	OpenAIAPIKey  string        `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKeys []string      `mapstructure:"gemini_api_keys"`
	Model         string        `mapstructure:"model"`
	Dimension     int           `mapstructure:"dimension"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxInputChars int           `mapstructure:"max_input_chars"`
}

type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type SearchConfig struct {
	DefaultLimit     int `mapstructure:"default_limit"`
	MaxLimit         int `mapstructure:"max_limit"`
	SnippetLength    int `mapstructure:"snippet_length"`
	FetchConcurrency int `mapstructure:"fetch_concurrency"`
}

type ChunkerConfig struct {
	MaxChunkSize int `mapstructure:"max_chunk_size"`
	OverlapSize  int `mapstructure:"overlap_size"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Secrets come from the environment, never the config file.
	v.BindEnv("MONGODB_URI")
	v.BindEnv("embedding.OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("weaviate.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// A single key via env supplements the config file's key list.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Embedding.GeminiAPIKeys = append(config.Embedding.GeminiAPIKeys, key)
	}

	return &config, nil
}

// setDefaults registers defaults for every tunable so a minimal config file
// still yields a working engine. Retry budget, backoff schedule, concurrency
// caps, and snippet sizing are deliberately configuration, not constants.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("storage", StorageMongo)
	v.SetDefault("store_timeout", 10*time.Second)
	v.SetDefault("mongo_database", "knowledge")

	v.SetDefault("embedding.provider", ProviderOpenAI)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.max_concurrent", 4)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.max_input_chars", 32768)

	v.SetDefault("retry.initial_interval", 200*time.Millisecond)
	v.SetDefault("retry.max_interval", 5*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("search.snippet_length", 240)
	v.SetDefault("search.fetch_concurrency", 8)

	v.SetDefault("chunker.max_chunk_size", 1024)
	v.SetDefault("chunker.overlap_size", 128)
}
