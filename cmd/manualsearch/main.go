package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/config"
	"github.com/plantops/manualsearch/internal/db"
	dbRedis "github.com/plantops/manualsearch/internal/db/redis"
	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/index/lexical"
	"github.com/plantops/manualsearch/internal/index/semantic"
	"github.com/plantops/manualsearch/internal/ingest"
	logpkg "github.com/plantops/manualsearch/internal/logger"
	"github.com/plantops/manualsearch/internal/metrics"
	"github.com/plantops/manualsearch/internal/repository/embcache"
	"github.com/plantops/manualsearch/internal/snapshot"
	"github.com/plantops/manualsearch/internal/store"
	chiTransport "github.com/plantops/manualsearch/internal/transport/chi"
	openaiTransport "github.com/plantops/manualsearch/internal/transport/openai"
	gateuc "github.com/plantops/manualsearch/internal/usecase/gate"
	healthuc "github.com/plantops/manualsearch/internal/usecase/health"
	intentuc "github.com/plantops/manualsearch/internal/usecase/intent"
	searchuc "github.com/plantops/manualsearch/internal/usecase/search"
	"github.com/plantops/manualsearch/internal/version"
)

const cacheReadinessTimeout = 10 * time.Second

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting manualsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("data_path", cfg.Manual.DataPath),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Ingest the parsed manual. Bad source content is fatal at startup.
	corpus, err := ingest.ParseFile(cfg.Manual.DataPath)
	if err != nil {
		logger.Fatal("Failed to parse manual data", zap.Error(err))
	}
	contentStore, err := store.New(corpus.Retrievable())
	if err != nil {
		logger.Fatal("Failed to build content store", zap.Error(err))
	}
	logger.Info("Manual ingested",
		zap.Int("figures", len(corpus.Figures)),
		zap.Int("tables", len(corpus.Tables)),
		zap.Int("text_blocks", len(corpus.TextBlocks)),
	)

	ctx := context.Background()

	// Optional cross-process embedding cache
	var cacheStore db.Store
	if cfg.Cache.Enabled {
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cacheStore.Close()

		if err := cacheStore.WaitForReady(ctx, cacheReadinessTimeout); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedder, embChecker := buildEmbedder(cfg, cacheStore, logger)

	var analyzer domain.Analyzer
	if cfg.LLM.APIKey != "" {
		analyzer = openaiTransport.NewAnalyzer(&openaiTransport.AnalyzerConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
		logger.Info("Language analyzer enabled", zap.String("model", cfg.LLM.Model))
	} else {
		logger.Warn("No LLM API key configured, query analysis runs rule-based only")
	}

	// Build or load the index snapshot before accepting traffic.
	holder := &snapshot.Holder{}
	if err := holder.BuildOnce(func() (*snapshot.Indexes, error) {
		return buildIndexes(ctx, cfg, contentStore, embedder, logger)
	}); err != nil {
		logger.Fatal("Failed to build indexes", zap.Error(err))
	}

	llmTimeout := time.Duration(cfg.LLM.TimeoutSec) * time.Second
	intentSvc := intentuc.New(analyzer, llmTimeout, logger)

	var arbiter domain.Analyzer
	if cfg.LLM.Arbiter && analyzer != nil {
		arbiter = analyzer
	}
	gate := gateuc.New(gateuc.Policy{
		MinConfidence:    cfg.Selection.MinConfidence,
		SeparationMargin: cfg.Selection.SeparationMargin,
		MaxCandidates:    cfg.Selection.MaxCandidates,
	}, arbiter, llmTimeout, logger)

	searchSvc := searchuc.New(contentStore, holder, intentSvc, gate, searchuc.Options{
		TopK:          cfg.Search.TopK,
		MaxResults:    cfg.Search.MaxResults,
		RankConstant:  cfg.Search.RankConstant,
		MinConfidence: cfg.Selection.MinConfidence,
		EmbedTimeout:  time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
	}, logger)

	var cachePinger healthuc.CachePinger
	if cacheStore != nil {
		cachePinger = cacheStore
	}
	healthSvc := healthuc.New(holder, embChecker, cachePinger)

	server := chiTransport.NewServer(searchSvc, chiTransport.CorpusStats{
		Tables:     len(corpus.Tables),
		Figures:    len(corpus.Figures),
		TextBlocks: len(corpus.TextBlocks),
	}, holder, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: OpenAI provider wrapped by the
// optional Redis cache. Returns nil when no API key is configured, which
// pins the service to lexical-only retrieval.
func buildEmbedder(cfg config.Config, cacheStore db.Store, logger *zap.Logger) (domain.Embedder, healthuc.EmbeddingChecker) {
	if cfg.Embedding.APIKey == "" {
		logger.Warn("No embedding API key configured, running lexical-only")
		return nil, nil
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	var embedder domain.Embedder = base
	if cacheStore != nil {
		embedder = embcache.New(base, cacheStore, metrics.EmbeddingCacheTotal, logger)
	}
	return embedder, base
}

// buildIndexes loads the index snapshot when it matches the current corpus
// and embedding model, and rebuilds it otherwise. An unavailable embedding
// provider degrades the build to lexical-only instead of failing startup.
func buildIndexes(
	ctx context.Context,
	cfg config.Config,
	contentStore *store.Store,
	embedder domain.Embedder,
	logger *zap.Logger,
) (*snapshot.Indexes, error) {
	records := contentStore.All()

	if embedder != nil {
		snap, err := snapshot.Load(cfg.Manual.SnapshotPath, contentStore.Fingerprint(), cfg.Embedding.Model, len(records))
		if err == nil {
			logger.Info("Loaded index snapshot",
				zap.String("path", cfg.Manual.SnapshotPath),
				zap.Int("vectors", len(snap.Vectors)),
			)
			return &snapshot.Indexes{
				Semantic: semantic.FromVectors(snap.Vectors, embedder, cfg.Search.MinSimilarity),
				Lexical:  lexical.FromStats(snap.Lexical),
			}, nil
		}
		if !snapshot.IsRebuildReason(err) {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		logger.Info("Rebuilding indexes", zap.Error(err))
	}

	lexIdx := lexical.New(lexicalDocs(records))

	if embedder == nil {
		return &snapshot.Indexes{Lexical: lexIdx}, nil
	}

	semIdx, err := semantic.Build(ctx, records, embedder,
		cfg.Embedding.BuildWorkers, cfg.Search.MinSimilarity, logger)
	if err != nil {
		// Degrade to keyword-only retrieval rather than refuse to start.
		metrics.SearchDegradedTotal.WithLabelValues("embedding_unavailable").Inc()
		logger.Warn("Semantic index build failed, running lexical-only", zap.Error(err))
		return &snapshot.Indexes{Lexical: lexIdx}, nil
	}

	snap := &snapshot.Snapshot{
		Fingerprint: contentStore.Fingerprint(),
		Model:       cfg.Embedding.Model,
		Dimensions:  cfg.Embedding.Dimensions,
		Vectors:     semIdx.Vectors(),
		Lexical:     lexIdx.Stats(),
	}
	if err := snapshot.Save(cfg.Manual.SnapshotPath, snap); err != nil {
		logger.Warn("Failed to save index snapshot", zap.Error(err))
	} else {
		logger.Info("Saved index snapshot", zap.String("path", cfg.Manual.SnapshotPath))
	}

	return &snapshot.Indexes{Semantic: semIdx, Lexical: lexIdx}, nil
}

// lexicalDocs returns the text indexed by BM25 for each record: title plus
// body, in store ordinal order.
func lexicalDocs(records []domain.ContentRecord) []string {
	docs := make([]string, len(records))
	for i := range records {
		docs[i] = records[i].Title + " " + records[i].Body
	}
	return docs
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWith(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
