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

	"github.com/mnemo-dev/mnemo/internal/analyzer"
	"github.com/mnemo-dev/mnemo/internal/cache"
	"github.com/mnemo-dev/mnemo/internal/config"
	dbRedis "github.com/mnemo-dev/mnemo/internal/db/redis"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
	logpkg "github.com/mnemo-dev/mnemo/internal/logger"
	"github.com/mnemo-dev/mnemo/internal/metrics"
	"github.com/mnemo-dev/mnemo/internal/repository/memoryapi"
	"github.com/mnemo-dev/mnemo/internal/rerank"
	"github.com/mnemo-dev/mnemo/internal/retrieval"
	"github.com/mnemo-dev/mnemo/internal/synthesis"
	chiTransport "github.com/mnemo-dev/mnemo/internal/transport/chi"
	openaiClient "github.com/mnemo-dev/mnemo/internal/transport/openai"
	searchuc "github.com/mnemo-dev/mnemo/internal/usecase/search"
	"github.com/mnemo-dev/mnemo/internal/version"
)

func main() {
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

	logger.Info("Starting mnemo retrieval API",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
	)

	// Cache store is optional: no addrs means the pipeline runs uncached.
	var store *dbRedis.Store
	if len(cfg.Cache.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store")
	} else {
		logger.Warn("Result cache disabled: no cache.addrs configured")
	}

	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	llmCfg := openaiClient.Config{APIKey: cfg.LLM.APIKey, BaseURL: cfg.LLM.BaseURL}

	// Analyzer chain: LLM first when enabled, keyword heuristics always.
	var llmAnalyzer analyzer.LLMAnalyzer
	if cfg.Analyzer.UseLLM {
		llmAnalyzer = openaiClient.NewAnalyzer(llmCfg, cfg.Analyzer.Model)
	}
	hybridAnalyzer, err := analyzer.NewHybrid(llmAnalyzer, cfg.Analyzer.CacheSize, metrics.AnalyzerTotal, logger)
	if err != nil {
		logger.Fatal("Failed to create analyzer", zap.Error(err))
	}

	// Strategy backends behind the memory platform API.
	backends := memoryapi.New(memoryapi.Config{
		BaseURL: cfg.Backends.BaseURL,
		APIKey:  cfg.Backends.APIKey,
		Timeout: time.Duration(cfg.Backends.TimeoutMS) * time.Millisecond,
	})
	embedder := openaiClient.NewEmbedder(llmCfg, cfg.LLM.EmbeddingModel, cfg.LLM.Dimensions)

	executors := []retrieval.Executor{
		retrieval.NewVectorExecutor(embedder, backends),
		retrieval.NewSparseExecutor(backends),
		retrieval.NewGraphExecutor(backends),
		retrieval.NewFulltextExecutor(backends),
	}
	runner := retrieval.NewRunner(
		executors,
		time.Duration(cfg.Search.StrategyTimeoutMS)*time.Millisecond,
		metrics.StrategyDuration,
		metrics.StrategyFailuresTotal,
		logger,
	)

	// Result cache. Pass a literal nil when the store is absent so the
	// interface field stays nil (a typed nil pointer would not).
	var cacheStore cache.Store
	if store != nil {
		cacheStore = store
	}
	resultCache := cache.New(
		cacheStore,
		time.Duration(cfg.Cache.TTLSec)*time.Second,
		time.Duration(cfg.Cache.WindowSec)*time.Second,
		cfg.Cache.KeyPrefix,
		metrics.CacheTotal,
		logger,
	)

	var blender searchuc.Reranker
	if cfg.Rerank.Enabled {
		scorer := openaiClient.NewReranker(llmCfg, cfg.Rerank.Model)
		blender = rerank.NewBlender(scorer, cfg.Rerank.TopN, cfg.Rerank.Blend, metrics.RerankTotal, logger)
	}

	registry := weights.NewRegistry()
	synth := synthesis.New(cfg.Search.ContextBudget)

	searchSvc := searchuc.New(
		hybridAnalyzer,
		registry,
		runner,
		resultCache,
		blender,
		synth,
		searchuc.Timeouts{
			Overall:  time.Duration(cfg.Search.OverallTimeoutMS) * time.Millisecond,
			Analyzer: time.Duration(cfg.Analyzer.TimeoutMS) * time.Millisecond,
			Rerank:   time.Duration(cfg.Rerank.TimeoutMS) * time.Millisecond,
		},
		metrics.SearchRequestsTotal,
		logger,
	)

	// Same typed-nil care for the health pinger.
	var pinger chiTransport.Pinger
	if store != nil {
		pinger = store
	}
	server := chiTransport.NewServer(searchSvc, registry, pinger, logger)

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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithRequest(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

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
