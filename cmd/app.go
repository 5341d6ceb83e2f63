package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/ai"
	"github.com/spigell/helper-matcher/internal/ai/claude"
	"github.com/spigell/helper-matcher/internal/ai/gemini"
	"github.com/spigell/helper-matcher/internal/decisions"
	"github.com/spigell/helper-matcher/internal/matching"
	"github.com/spigell/helper-matcher/internal/pipeline"
	"github.com/spigell/helper-matcher/internal/rules"
	"github.com/spigell/helper-matcher/internal/scoring"
	"github.com/spigell/helper-matcher/internal/secrets"
	"github.com/spigell/helper-matcher/internal/store"
	"github.com/spigell/helper-matcher/internal/store/memory"
	"github.com/spigell/helper-matcher/internal/store/postgres"
	"github.com/spigell/helper-matcher/internal/store/rediscache"
)

// backend is implemented by every durable store.
type backend interface {
	store.JobStore
	store.HelperStore
	store.FeatureStore
	store.DecisionStore
	store.RetrainingStore
}

// application holds the wired components. It is the only place that knows
// the concrete stores.
type application struct {
	config *Config
	logger *zap.Logger

	backend  backend
	features store.FeatureStore

	scorer   *scoring.Scorer
	pipeline *pipeline.Pipeline
	matcher  *matching.Orchestrator
	tracker  *decisions.Tracker

	closers []func()
}

func newApplication(ctx context.Context, config *Config, logger *zap.Logger) (*application, error) {
	a := &application{config: config, logger: logger}

	be, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = be
	a.features = be

	var publisher decisions.Publisher
	if config.Redis.Enabled {
		rdb, err := rediscache.NewClient(ctx, config.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		a.features = rediscache.NewFeatureCache(be, rdb, config.Redis.FeatureTTL, logger)
		publisher = rediscache.NewPublisher(rdb, config.Redis.EventsChannel)
		logger.Debug("redis enabled", zap.Duration("feature_ttl", config.Redis.FeatureTTL))
	}

	enricher, err := newEnricher(ctx, config.AI, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building enricher: %w", err)
	}

	a.scorer = scoring.New(config.Scoring)

	pipelineDeps := pipeline.Deps{Features: a.features, Logger: logger}
	if enricher != nil {
		pipelineDeps.Enricher = enricher
	}
	a.pipeline = pipeline.New(pipelineDeps, config.Features)

	matchingCfg := config.Matching
	matchingCfg.VerifySourceHash = config.Features.VerifySourceHash

	a.matcher = matching.New(matching.Deps{
		Jobs:     be,
		Helpers:  be,
		Features: a.features,
		Scorer:   a.scorer,
		Rules:    rules.NewGenerator(be, config.Scoring, config.Rules, logger),
		Logger:   logger,
	}, matchingCfg)

	a.tracker = decisions.New(decisions.Deps{
		Decisions:  be,
		Retraining: be,
		Publisher:  publisher,
		Logger:     logger,
	}, config.Retraining.Config)

	return a, nil
}

func (a *application) openBackend(ctx context.Context) (backend, error) {
	cfg := a.config.Storage

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		if cfg.SeedFile == "" {
			a.logger.Warn("memory storage without a seed file starts empty")
			return memory.New(), nil
		}
		s, err := memory.Load(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("memory storage seeded", zap.String("seed_file", cfg.SeedFile))
		return s, nil

	case "postgres":
		url, err := secrets.Load(secrets.Source{
			Name:  "database url",
			Value: cfg.DatabaseURL,
			File:  cfg.DatabaseURLFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set storage.database-url, storage.database-url-file or HELPER_MATCHER_STORAGE_DATABASE_URL)", err)
		}

		pool, err := postgres.NewPool(ctx, url)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)

		s := postgres.New(pool, a.logger)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		if cfg.SeedFile != "" {
			seed, err := memory.ReadSeed(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := s.Import(ctx, seed.Jobs, seed.Helpers, seed.Decisions); err != nil {
				return nil, err
			}
			a.logger.Info("seed imported",
				zap.String("seed_file", cfg.SeedFile),
				zap.Int("jobs", len(seed.Jobs)),
				zap.Int("helpers", len(seed.Helpers)),
				zap.Int("decisions", len(seed.Decisions)),
			)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func newEnricher(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*ai.SkillEnricher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini configuration is required when ai is enabled")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or HELPER_MATCHER_AI_GEMINI_API_KEY)", err)
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Config, logger)
		if err != nil {
			return nil, err
		}
		return ai.NewSkillEnricher(generator, "gemini", cfg.Gemini.EnricherConfig, logger), nil

	case "claude":
		if cfg.Claude == nil {
			return nil, fmt.Errorf("claude configuration is required when ai is enabled")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "anthropic api key",
			Value: cfg.Claude.APIKey,
			File:  cfg.Claude.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.claude.api-key-file or HELPER_MATCHER_AI_CLAUDE_API_KEY)", err)
		}
		generator, err := claude.NewGenerator(apiKey, cfg.Claude.Config)
		if err != nil {
			return nil, err
		}
		return ai.NewSkillEnricher(generator, "claude", cfg.Claude.EnricherConfig, logger), nil

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
