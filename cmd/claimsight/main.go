// cmd/claimsight/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"claimsight/internal/api"
	"claimsight/internal/common/config"
	"claimsight/internal/common/database"
	"claimsight/internal/common/logger"
	"claimsight/internal/common/observability"
	"claimsight/internal/decision"
	"claimsight/internal/index"
	"claimsight/internal/llm"
	"claimsight/internal/queryparser"
	"claimsight/internal/registry"
	"claimsight/internal/service"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting claimsight...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log = logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	var tracing *observability.Tracing
	if cfg.Observability.TracingEnabled {
		tracing, err = observability.NewTracing(cfg.App.Name, cfg.Observability.JaegerEndpoint)
		if err != nil {
			zapLog.Fatal("tracing init failed", zap.Error(err))
		}
		defer tracing.Shutdown()
	}

	ctx := context.Background()

	embedder := llm.NewEmbeddingClient(cfg.Providers.Embedding)
	generator := llm.NewChatClient(cfg.Providers.Generation)

	// The vector backend is probed once; if it is unreachable the service
	// keeps running in degraded mode.
	vectorIndex, backendAvailable := buildIndex(ctx, cfg, embedder, log)
	defer vectorIndex.Close()

	var documentRegistry service.DocumentRegistry
	if cfg.Database.Postgres.Enabled {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("postgres init failed", zap.Error(err))
		}
		defer pg.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pg.Ping(pingCtx)
		cancel()
		if err != nil {
			zapLog.Fatal("postgres ping failed", zap.Error(err))
		}

		reg := registry.New(pg.DB, log)
		if err := reg.Migrate(ctx); err != nil {
			zapLog.Fatal("registry migration failed", zap.Error(err))
		}
		documentRegistry = reg
	} else {
		log.Warn("postgres disabled, document listing served from the index", nil)
	}

	evaluator, err := decision.NewEvaluator(generator, log)
	if err != nil {
		zapLog.Fatal("evaluator init failed", zap.Error(err))
	}

	documents := service.NewDocumentService(service.DocumentServiceOptions{
		Index:        vectorIndex,
		Registry:     documentRegistry,
		ChunkSize:    cfg.Processing.ChunkSize,
		ChunkOverlap: cfg.Processing.ChunkOverlap,
		Metrics:      obs,
		Tracing:      tracing,
		Logger:       log,
	})
	queries := service.NewQueryService(service.QueryServiceOptions{
		Parser:    queryparser.New(generator, log),
		Index:     vectorIndex,
		Evaluator: evaluator,
		TopK:      cfg.Processing.TopKResults,
		Metrics:   obs,
		Tracing:   tracing,
		Logger:    log,
	})

	server := api.NewServer(api.ServerOptions{
		Documents:        documents,
		Queries:          queries,
		MaxUploadBytes:   cfg.API.MaxFileSize,
		BackendAvailable: backendAvailable,
		Logger:           log,
	})

	mux := http.NewServeMux()
	mux.Handle("/", server.Routes())
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.API.Host + ":" + strconv.Itoa(cfg.API.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", map[string]interface{}{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("shutdown complete", nil)
}

// buildIndex constructs the configured vector backend, falling back to the
// degraded variant when the backend cannot be reached.
func buildIndex(ctx context.Context, cfg *config.Config, embedder llm.Embedder, log logger.Logger) (index.Index, bool) {
	switch cfg.Vector.Backend {
	case "elasticsearch":
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = es.Ping()
		}
		if err != nil {
			log.Error("elasticsearch unavailable", map[string]interface{}{"error": err.Error()})
			return index.NewUnavailable(log), false
		}

		idx, err := index.NewElasticsearchIndex(es.Client, embedder, index.ElasticsearchOptions{
			IndexName:           cfg.Vector.IndexName,
			Dimension:           cfg.Vector.Dimension,
			SimilarityThreshold: cfg.Processing.SimilarityThreshold,
		}, log)
		if err != nil {
			log.Error("elasticsearch index init failed", map[string]interface{}{"error": err.Error()})
			return index.NewUnavailable(log), false
		}
		return idx, true

	default:
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = rdb.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			log.Error("redis unavailable", map[string]interface{}{"error": err.Error()})
			return index.NewUnavailable(log), false
		}

		idx, err := index.NewRedisIndex(rdb.GetClient(), embedder, index.RedisOptions{
			IndexName:           cfg.Vector.IndexName,
			KeyPrefix:           cfg.Vector.KeyPrefix,
			Dimension:           cfg.Vector.Dimension,
			EFConstruction:      cfg.Vector.EFConstruction,
			M:                   cfg.Vector.M,
			SimilarityThreshold: cfg.Processing.SimilarityThreshold,
		}, log)
		if err != nil {
			log.Error("redis index init failed", map[string]interface{}{"error": err.Error()})
			return index.NewUnavailable(log), false
		}
		return idx, true
	}
}
