package app

import (
	"fmt"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/db"
	"github.com/notelens/notelens-backend/internal/ingestion"
	"github.com/notelens/notelens-backend/internal/keyword"
	"github.com/notelens/notelens-backend/internal/matching"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/platform/openai"
	"github.com/notelens/notelens-backend/internal/platform/qdrant"
	"github.com/notelens/notelens-backend/internal/proposal"
	"github.com/notelens/notelens-backend/internal/repos"
	"github.com/notelens/notelens-backend/internal/search"
	"github.com/notelens/notelens-backend/internal/validation"
)

// App owns every long-lived component. Construction order mirrors the data
// flow: storage, cache, clients, retrieval providers, then the engine.
type App struct {
	Config Config
	Log    *logger.Logger

	Postgres   *db.PostgresService
	Topics     repos.TopicRepo
	References repos.ReferenceRepo
	Results    repos.ValidationResultRepo
	Proposals  repos.ProposalRepo

	Cache       *cache.Manager
	OpenAI      openai.Client
	VectorStore qdrant.VectorStore
	Lexical     *search.Lexical
	Keywords    *keyword.Index
	Matcher     *matching.Matcher
	Indexer     *ingestion.Indexer
	Engine      *validation.Engine
}

func New(log *logger.Logger) (*App, error) {
	cfg := LoadConfig()
	a := &App{Config: cfg, Log: log}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Warn("postgres init failed", "error", err)
	} else {
		if err := pg.AutoMigrateAll(); err != nil {
			log.Warn("postgres auto migration failed", "error", err)
		}
		a.Postgres = pg
		gdb := pg.DB()
		a.Topics = repos.NewTopicRepo(gdb, log)
		a.References = repos.NewReferenceRepo(gdb, log)
		a.Results = repos.NewValidationResultRepo(gdb, log)
		a.Proposals = repos.NewProposalRepo(gdb, log)
	}

	a.Cache = cache.NewManager(log, resolveCacheStore(log, cfg), cfg.CacheCapacity)

	a.OpenAI, err = openai.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("openai client init failed: %w", err)
	}

	a.VectorStore, err = resolveVectorStore(log, cfg)
	if err != nil {
		return nil, err
	}

	a.Lexical = search.NewLexical(log)
	a.Keywords = keyword.NewIndex(log, a.Cache, a.OpenAI, keyword.NewTermExtractor())

	var vectorSearcher search.VectorSearcher
	var vectorIndex ingestion.VectorIndex
	if a.VectorStore != nil {
		vectorSearcher = a.VectorStore
		vectorIndex = a.VectorStore
	}
	a.Matcher = matching.NewMatcher(log, a.Cache, a.OpenAI, vectorSearcher, a.Lexical)
	a.Indexer = ingestion.NewIndexer(log, a.Cache, a.OpenAI, vectorIndex, a.References)

	rules := validation.DefaultRules()
	if cfg.RulesPath != "" {
		rules, err = validation.LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load validation rules from %s: %w", cfg.RulesPath, err)
		}
	}

	generator := proposal.NewGenerator(log, a.Cache, a.OpenAI, a.Keywords)

	if a.Topics == nil {
		return nil, fmt.Errorf("topic store unavailable: postgres is required for validation runs")
	}
	a.Engine = validation.NewEngine(log, a.Cache, a.Matcher, generator, a.Topics, rules).
		WithStores(a.Results, a.Proposals).
		WithConcurrency(cfg.BatchConcurrency)

	return a, nil
}
