package app

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/platform/qdrant"
)

var newQdrantVectorStore = qdrant.NewVectorStore

type VectorBootstrapErrorCode string

const (
	VectorBootstrapErrorConfig        VectorBootstrapErrorCode = "config_failed"
	VectorBootstrapErrorConnectFailed VectorBootstrapErrorCode = "connect_failed"
	VectorBootstrapErrorInitFailed    VectorBootstrapErrorCode = "init_failed"
)

type VectorBootstrapError struct {
	Code  VectorBootstrapErrorCode
	Cause error
}

func (e *VectorBootstrapError) Error() string {
	if e == nil {
		return "vector store bootstrap failed"
	}
	return fmt.Sprintf("vector store bootstrap failed (code=%s): %v", e.Code, e.Cause)
}

func (e *VectorBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveCacheStore prefers redis and degrades to nil (in-process only) when
// the backend is absent or unreachable; a missing cache tier must never stop
// the engine from starting.
func resolveCacheStore(log *logger.Logger, cfg Config) cache.Store {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; cache running in-process only")
		return nil
	}
	store, err := cache.NewRedisStore(log, cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable; cache running in-process only", "addr", cfg.RedisAddr, "error", err)
		return nil
	}
	log.Info("redis cache backend ready", "addr", cfg.RedisAddr)
	return store
}

// resolveVectorStore returns (nil, nil) when vector search is deliberately
// disabled (no QDRANT_URL); the matcher's ladder then starts at the semantic
// provider. A configured-but-broken store is a hard error so misconfiguration
// fails loudly instead of silently degrading every request.
func resolveVectorStore(log *logger.Logger, cfg Config) (qdrant.VectorStore, error) {
	if cfg.QdrantURL == "" {
		log.Warn("QDRANT_URL not set; vector search disabled")
		return nil, nil
	}

	vs, err := newQdrantVectorStore(log, qdrant.Config{
		URL:        cfg.QdrantURL,
		Collection: strings.TrimSpace(cfg.QdrantCollection),
		VectorDim:  cfg.QdrantVectorDim,
	})
	if err != nil {
		return nil, classifyVectorBootstrapError(err)
	}
	return vs, nil
}

func classifyVectorBootstrapError(err error) error {
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConfig, Cause: err}
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConnectFailed, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConnectFailed, Cause: err}
	}
	if strings.Contains(strings.ToLower(err.Error()), "ready check failed") {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConnectFailed, Cause: err}
	}
	return &VectorBootstrapError{Code: VectorBootstrapErrorInitFailed, Cause: err}
}
