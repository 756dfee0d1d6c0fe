// Package app wires the HTTP API and the pipeline workers from their
// dependencies.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"vecdb/features/document"
	"vecdb/features/library"
	featsearch "vecdb/features/search"
	"vecdb/features/stats"
	"vecdb/features/status"
	"vecdb/features/vconfig"
	"vecdb/internal/adapter/gemini"
	wstore "vecdb/internal/adapter/weaviate"
	"vecdb/internal/config"
	"vecdb/internal/events"
	"vecdb/internal/metrics"
	"vecdb/internal/middleware"
	"vecdb/internal/pipeline"
	"vecdb/internal/search"
	"vecdb/internal/uow"
	"vecdb/internal/vector"
)

type App struct {
	Handler   http.Handler
	Consumers *pipeline.ConsumerGroup

	cfg *config.Config
}

func New(ctx context.Context, cfg *config.Config, db *sql.DB, wClient *weaviate.Client, producer events.Producer, logger *slog.Logger) (*App, error) {
	starter := uow.NewPostgresStarter(db, logger)
	pub := events.NewNSQPublisher(producer, logger)

	readStore := pipeline.NewPostgresReadStore(db)
	statusStore := pipeline.NewPostgresStatusStore(db)
	index := wstore.NewIndex(wClient)

	baseEmbedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, "")
	if err != nil {
		return nil, err
	}
	embedder := gemini.NewResilientEmbedder(baseEmbedder, cfg.EmbedRequestsPerMinute, cfg.EmbedMaxRetries)

	// Feature: Library
	libraryHandler := library.NewHandler(library.NewService(starter, pub, library.NewPostgresReader(db)))

	// Feature: Document
	documentHandler := document.NewHandler(document.NewService(starter, pub, document.NewPostgresReader(db)), cfg.MaxUploadSizeMB)

	// Feature: Vectorization configs
	vconfigHandler := vconfig.NewHandler(vconfig.NewService(starter, pub, vconfig.NewPostgresReader(db)))

	// Feature: Vectorization status
	statusHandler := status.NewHandler(statusStore)

	// Feature: Stats
	statsHandler := stats.NewHandler(stats.NewPostgresCounter(db))

	// Feature: Search
	queryLogger, err := search.NewFileQueryLogger("data/logs/query.log")
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = search.NewQueryLogger(os.Stdout)
	}
	searchService := search.NewService(starter, embedder, index, search.NewPostgresChunkReader(db), queryLogger)
	searchHandler := featsearch.NewHandler(searchService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /libraries", middleware.CorrelationID(enableCORS(libraryHandler.Create)))
	mux.Handle("GET /libraries", middleware.CorrelationID(enableCORS(libraryHandler.List)))
	mux.Handle("GET /libraries/{id}", middleware.CorrelationID(enableCORS(libraryHandler.Get)))
	mux.Handle("PUT /libraries/{id}", middleware.CorrelationID(enableCORS(libraryHandler.Rename)))
	mux.Handle("DELETE /libraries/{id}", middleware.CorrelationID(enableCORS(libraryHandler.Delete)))
	mux.Handle("POST /libraries/{id}/archive", middleware.CorrelationID(enableCORS(libraryHandler.Archive)))
	mux.Handle("POST /libraries/{id}/configs/{configID}", middleware.CorrelationID(enableCORS(libraryHandler.AttachConfig)))
	mux.Handle("DELETE /libraries/{id}/configs/{configID}", middleware.CorrelationID(enableCORS(libraryHandler.DetachConfig)))

	mux.Handle("POST /libraries/{id}/documents", middleware.CorrelationID(enableCORS(documentHandler.Create)))
	mux.Handle("GET /libraries/{id}/documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /libraries/{id}/documents/{docID}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("PUT /libraries/{id}/documents/{docID}", middleware.CorrelationID(enableCORS(documentHandler.Rename)))
	mux.Handle("DELETE /libraries/{id}/documents/{docID}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))
	mux.Handle("POST /libraries/{id}/documents/{docID}/content", middleware.CorrelationID(enableCORS(documentHandler.Upload)))

	mux.Handle("POST /configs", middleware.CorrelationID(enableCORS(vconfigHandler.Create)))
	mux.Handle("GET /configs", middleware.CorrelationID(enableCORS(vconfigHandler.List)))
	mux.Handle("GET /configs/{id}", middleware.CorrelationID(enableCORS(vconfigHandler.Get)))
	mux.Handle("POST /configs/{id}/versions", middleware.CorrelationID(enableCORS(vconfigHandler.NewVersion)))

	mux.Handle("GET /documents/{docID}/vectorization", middleware.CorrelationID(enableCORS(statusHandler.ListByDocument)))
	mux.Handle("GET /documents/{docID}/vectorization/{configID}", middleware.CorrelationID(enableCORS(statusHandler.Get)))

	mux.Handle("POST /libraries/{id}/search", middleware.CorrelationID(enableCORS(searchHandler.Search)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Workers: which consumers actually connect is decided by the
	// Enable* flags in StartConsumers, so one binary can run as API,
	// worker, or both.
	consumers := pipeline.NewConsumerGroup(logger)
	app := &App{Handler: mux, Consumers: consumers, cfg: cfg}

	if err := app.startConsumers(cfg, starter, pub, readStore, statusStore, index, wClient, embedder, logger); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) startConsumers(
	cfg *config.Config,
	starter uow.Starter,
	pub events.Publisher,
	readStore *pipeline.PostgresReadStore,
	statusStore pipeline.StatusStore,
	index pipeline.VectorIndex,
	wClient *weaviate.Client,
	embedder pipeline.Embedder,
	logger *slog.Logger,
) error {
	if cfg.EnableParseWorker {
		parse := pipeline.NewParseConsumer(starter, pub, pipeline.NewBytesParser(), readStore, logger)
		if err := a.Consumers.Subscribe(cfg, config.TopicDocumentEvents, "parse", parse); err != nil {
			return err
		}
	}

	if cfg.EnableOrchestrator {
		orch := pipeline.NewOrchestrator(starter, readStore, statusStore, pub, logger)
		if err := a.Consumers.Subscribe(cfg, config.TopicDocumentEvents, "orchestrate", orch); err != nil {
			return err
		}
		if err := a.Consumers.Subscribe(cfg, config.TopicLibraryConfigEvents, "orchestrate", orch); err != nil {
			return err
		}
		schema := vector.NewSchemaConsumer(starter, vector.NewWeaviateClientAdapter(wClient), logger)
		if err := a.Consumers.Subscribe(cfg, config.TopicVectorizationEvents, "schema", schema); err != nil {
			return err
		}
	}

	if cfg.EnableVectorizeWorker {
		vectorize := pipeline.NewVectorizeConsumer(starter, pub, readStore, readStore, embedder, statusStore, logger)
		if err := a.Consumers.Subscribe(cfg, config.TopicVectorizationEvents, "vectorize", vectorize); err != nil {
			return err
		}
		indexer := pipeline.NewIndexConsumer(index, logger)
		if err := a.Consumers.Subscribe(cfg, config.TopicVectorizationEvents, "index", indexer); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
