package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-level settings sourced from the environment. A .env
// file in the working directory is honored but optional.
type Config struct {
	// Server
	Port string

	// Storage
	DatabasePath string

	// Feeds
	FeedMaxPerFeed int

	// Embeddings
	CohereAPIKey   string
	OpenAIAPIKey   string
	EmbeddingModel string

	// Redis bloom filter fast path (optional)
	RedisAddr     string
	RedisPassword string

	// Kafka event publishing (optional)
	KafkaBrokers string
	KafkaTopic   string

	// S3 batch archive (optional)
	S3Bucket string
	S3Region string
}

// Load reads configuration from the environment, applying defaults for
// everything except the embedding credentials.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DatabasePath:   getEnv("DATABASE_PATH", "newscast.db"),
		FeedMaxPerFeed: GetEnvInt("FEED_MAX_ARTICLES", 30),
		CohereAPIKey:   os.Getenv("COHERE_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "embed-v4.0"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "newscast.pipeline"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
	}

	if cfg.CohereAPIKey == "" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("no embedding provider configured: set COHERE_API_KEY or OPENAI_API_KEY")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt reads an integer environment variable with a fallback.
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
