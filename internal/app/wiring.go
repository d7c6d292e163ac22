// Package app assembles the services shared by the hwpd daemon and the
// hwpctl CLI from common.Config.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/redis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/repository"
)

// Documents checks for the converter and wraps the chosen extractor in the
// TTL result cache.
func Documents(cfg *common.Config, logger *slog.Logger) (*document.Handler, error) {
	ex, err := document.NewExtractor(document.Config{
		Converter:     cfg.Document.Converter,
		WorkDir:       cfg.Document.WorkDir,
		ForceFallback: cfg.Document.ForceFallback(),
		RequireNative: cfg.Document.RequireNative,
	}, logger)
	if err != nil {
		return nil, common.WrapError(err, "select extractor")
	}
	return document.NewHandler(ex, logger, document.WithTTL(cfg.Cache.TTL)), nil
}

// Analysis holds the analysis service and whatever must be closed with it.
type Analysis struct {
	Service analysis.Service
	Cached  *analysis.Cached
	redis   *redis.Client
}

func (a *Analysis) Close() error {
	if a == nil || a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

// ErrNoProvider means no API key is configured for the LLM provider.
var ErrNoProvider = errors.New("no LLM API key configured")

// NewAnalysis builds the chat model, the optional embedder and the result
// cache. A Redis address adds a shared second-level cache; if Redis cannot be
// reached the process-local cache is used alone.
func NewAnalysis(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Analysis, error) {
	if cfg.LLM.APIKey == "" {
		return nil, ErrNoProvider
	}
	chat, err := analysis.NewChatModel(ctx, analysis.ChatModelConfigFrom(cfg.LLM))
	if err != nil {
		return nil, common.WrapError(err, "create chat model")
	}
	var opts []analysis.Option
	var embeddings, webSearch bool
	emb, err := analysis.NewEmbedder(ctx, analysis.EmbedderConfig{
		APIKey: cfg.LLM.EmbeddingKey,
		Model:  cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		logger.Warn("embedder unavailable, keyword retrieval only", "error", err)
	} else if emb != nil {
		opts = append(opts, analysis.WithEmbedder(emb))
		embeddings = true
	}
	search, err := analysis.NewSearchModel(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("web search unavailable, freshness checks use the chat model", "error", err)
	} else if search != nil {
		opts = append(opts, analysis.WithSearcher(search))
		webSearch = true
	}

	analyzer := analysis.NewAnalyzer(chat, analysis.Config{
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger, opts...)

	out := &Analysis{}
	var cacheOpts []analysis.CachedOption
	if cfg.Cache.RedisAddr != "" {
		rc, err := redis.NewClient(redis.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, using local cache only", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			out.redis = rc
			cacheOpts = append(cacheOpts, analysis.WithStore(rc))
		}
	}
	out.Cached = analysis.NewCached(analyzer, cfg.Cache.TTL, logger, cacheOpts...)
	out.Service = out.Cached
	logger.Info("analysis ready",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"embeddings", embeddings,
		"web_search", webSearch,
		"shared_cache", out.redis != nil,
	)
	return out, nil
}

// History opens the history database and applies the schema.
func History(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.DB, repository.HistoryRepository, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:          cfg.History.Driver,
		DSN:             cfg.History.DSN,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		return nil, nil, common.WrapError(err, "open history")
	}
	return db, repository.NewHistoryRepository(db, logger), nil
}
