package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Model       ModelConfig
	Chunker     ChunkerConfig
	Index       IndexConfig
	Retrieval   RetrievalConfig
	Readability ReadabilityConfig
	Simplifier  SimplifierConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type ModelConfig struct {
	APIKey          string
	GenerationModel string
	EmbeddingModel  string
	Temperature     float32
	MaxTokens       int
	TimeoutSec      int
	MaxConcurrent   int
}

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type IndexConfig struct {
	PersistPath string
}

type RetrievalConfig struct {
	MinScore       float64
	DefaultResults int
}

type ReadabilityConfig struct {
	TargetGradeLevel float64
	MinReadingEase   float64
}

type SimplifierConfig struct {
	MaxRetries  int
	EntityCheck bool
}

type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/patient-comm")

	viper.SetEnvPrefix("PATIENT_COMM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("model.generationModel", "gpt-4o-mini")
	viper.SetDefault("model.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("model.temperature", 0.3)
	viper.SetDefault("model.maxTokens", 1024)
	viper.SetDefault("model.timeoutSec", 60)
	viper.SetDefault("model.maxConcurrent", 2)

	viper.SetDefault("chunker.chunkSize", 300)
	viper.SetDefault("chunker.chunkOverlap", 50)

	viper.SetDefault("index.persistPath", "./data/index.db")

	viper.SetDefault("retrieval.minScore", 0.2)
	viper.SetDefault("retrieval.defaultResults", 3)

	viper.SetDefault("readability.targetGradeLevel", 8.0)
	viper.SetDefault("readability.minReadingEase", 60.0)

	viper.SetDefault("simplifier.maxRetries", 2)
	viper.SetDefault("simplifier.entityCheck", true)

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttlSec", 86400)

	viper.SetDefault("ratelimit.requestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
