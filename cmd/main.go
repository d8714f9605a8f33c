package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/notelens/notelens-backend/internal/app"
	"github.com/notelens/notelens-backend/internal/platform/envutil"
	"github.com/notelens/notelens-backend/internal/platform/logger"
)

func main() {
	_ = godotenv.Load()

	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	a, err := app.New(log)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	refs, err := a.References.List(ctx, a.Config.Domain)
	if err != nil {
		log.Error("failed to load reference corpus", "error", err)
		os.Exit(1)
	}
	log.Info("reference corpus loaded", "count", len(refs), "domain", a.Config.Domain)

	if envutil.Bool("REINDEX_REFERENCES", false) {
		indexed := a.Indexer.IndexReferences(ctx, refs)
		log.Info("reference indexing complete", "indexed", indexed, "total", len(refs))
	}

	if err := a.Lexical.Prepare(refs); err != nil {
		log.Warn("lexical index preparation failed; lexical fallback disabled", "error", err)
	}
	if err := a.Keywords.EnsureLoaded(ctx, refs); err != nil {
		log.Warn("keyword index load failed; keyword suggestions unavailable", "error", err)
	}

	topics, err := a.Topics.List(ctx, a.Config.Domain)
	if err != nil {
		log.Error("failed to load topics", "error", err)
		os.Exit(1)
	}
	topicIDs := make([]uuid.UUID, 0, len(topics))
	for _, topic := range topics {
		topicIDs = append(topicIDs, topic.ID)
	}
	log.Info("starting validation run", "topics", len(topicIDs), "concurrency", a.Config.BatchConcurrency)

	outcomes := a.Engine.ValidateBatch(ctx, topicIDs, refs, a.Config.MatchOptions())

	var failed, degraded, cached int
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			log.Warn("topic validation failed", "topic_id", outcome.TopicID, "error", outcome.Err)
			continue
		}
		if outcome.Result.Degraded {
			degraded++
		}
		if outcome.Result.FromCache {
			cached++
		}
		log.Info("topic validated",
			"topic_id", outcome.TopicID,
			"score", outcome.Result.Score,
			"gaps", len(outcome.Result.Gaps),
			"proposals", len(outcome.Result.Proposals),
			"served_by", outcome.Result.ServedBy,
			"degraded", outcome.Result.Degraded,
		)
	}
	log.Info("validation run complete",
		"topics", len(outcomes),
		"failed", failed,
		"degraded", degraded,
		"from_cache", cached,
	)
}
