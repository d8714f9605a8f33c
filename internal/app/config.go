package app

import (
	"strings"

	"github.com/notelens/notelens-backend/internal/matching"
	"github.com/notelens/notelens-backend/internal/platform/envutil"
	"github.com/notelens/notelens-backend/internal/validation"
)

type Config struct {
	LogMode string

	RedisAddr     string
	CacheCapacity int

	QdrantURL        string
	QdrantCollection string
	QdrantVectorDim  int

	MatchTopK      int
	MatchThreshold float64

	BatchConcurrency int
	RulesPath        string
	Domain           string
}

func LoadConfig() Config {
	return Config{
		LogMode: envutil.Str("LOG_MODE", "development"),

		RedisAddr:     strings.TrimSpace(envutil.Str("REDIS_ADDR", "")),
		CacheCapacity: envutil.Int("CACHE_CAPACITY", 1000),

		QdrantURL:        strings.TrimSpace(envutil.Str("QDRANT_URL", "")),
		QdrantCollection: envutil.Str("QDRANT_COLLECTION", "notelens-references"),
		QdrantVectorDim:  envutil.Int("QDRANT_VECTOR_DIM", 1536),

		MatchTopK:      envutil.Int("MATCH_TOP_K", matching.DefaultTopK),
		MatchThreshold: envutil.Float("MATCH_THRESHOLD", matching.DefaultThreshold),

		BatchConcurrency: envutil.Int("BATCH_CONCURRENCY", validation.DefaultBatchConcurrency),
		RulesPath:        strings.TrimSpace(envutil.Str("RULES_PATH", "")),
		Domain:           strings.TrimSpace(envutil.Str("VALIDATION_DOMAIN", "")),
	}
}

func (c Config) MatchOptions() matching.Options {
	return matching.Options{TopK: c.MatchTopK, Threshold: c.MatchThreshold}
}
