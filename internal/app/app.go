// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Digesta/internal/api/handlers"
	"github.com/markdave123-py/Digesta/internal/config"
	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/core/cache"
	db "github.com/markdave123-py/Digesta/internal/core/database"
	"github.com/markdave123-py/Digesta/internal/core/ingestion_engine"
	"github.com/markdave123-py/Digesta/internal/core/llm"
	objectclient "github.com/markdave123-py/Digesta/internal/core/object-client"
	"github.com/markdave123-py/Digesta/internal/services"
)

const (
	archiveQueueSize = 64
	shutdownTimeout  = 15 * time.Second
)

type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Store      core.SummaryStore
	Summarizer *llm.SummarizationClient
	Extractor  *ingestion_engine.Orchestrator
	Archiver   *ingestion_engine.DocumentArchiver
	Server     *Server

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	store, err := OpenStore(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)
	logger.Info("summary store initialized and ready", "driver", cfg.StoreDriver)

	var (
		archiver ingestion_engine.Archiver
		archive  core.ObjectClient
	)
	if cfg.ArchiveEnabled() {
		objClient, err := objectclient.NewS3Client(appCtx, cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		archive = objClient
		a.Archiver = ingestion_engine.NewDocumentArchiver(objClient, archiveQueueSize, logger)
		archiver = a.Archiver
		logger.Info("object storage archive enabled", "bucket", cfg.BucketName)
	}

	extractor, err := NewExtractor(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Extractor = extractor

	summarizer, closers, err := NewSummarizer(appCtx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Summarizer = summarizer
	a.closers = append(a.closers, closers...)

	var summaryCache core.SummaryCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(appCtx).Err(); err != nil {
			logger.Warn("redis not reachable, summary cache reads will miss", "addr", cfg.RedisAddr, "error", err)
		}
		summaryCache = cache.NewRedisSummaryCache(rdb, cfg.CacheTTL)
		a.closers = append(a.closers, rdb.Close)
	}

	docSvc := services.NewDocumentService(extractor, archiver, logger)
	summarySvc := services.NewSummaryService(summarizer, store, summaryCache, archive, logger)

	a.Server = NewServer(cfg, logger, Handlers{
		Documents: handlers.NewDocumentHandler(docSvc, cfg.MaxUploadBytes, logger),
		Summaries: handlers.NewSummaryHandler(summarySvc, logger),
		History:   handlers.NewHistoryHandler(summarySvc),
		Health:    handlers.NewHealthHandler(summarizer),
	})
	return a, nil
}

// OpenStore opens the summary store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.SQLStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return db.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	case config.StoreSQLite:
		return db.NewSQLiteStore(ctx, cfg.SQLitePath, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// NewExtractor builds the PDF and image cascades.
func NewExtractor(cfg *config.Config, logger *slog.Logger) (*ingestion_engine.Orchestrator, error) {
	parsers, err := ingestion_engine.ParsersByName(cfg.PdfParsers)
	if err != nil {
		return nil, fmt.Errorf("pdf parsers: %w", err)
	}
	engine := ingestion_engine.NewTesseractEngine(cfg.TesseractPath, cfg.TessdataDir, cfg.OcrTimeout, logger)

	pdf := []core.Extractor{
		ingestion_engine.NewStructuredPdfExtractor(logger, parsers...),
		ingestion_engine.NewRawStreamPdfExtractor(logger),
	}
	image := []core.Extractor{
		ingestion_engine.NewOcrExtractor(engine, ingestion_engine.DefaultOcrPreprocessor(), logger),
	}
	return ingestion_engine.NewOrchestrator(logger, pdf, image), nil
}

// NewSummarizer builds the failover client over every provider with a key.
// Gemini models run first, then OpenAI, then Anthropic. The returned closers
// release provider clients.
func NewSummarizer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*llm.SummarizationClient, []func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		candidates []llm.ModelCandidate
		closers    []func() error
	)
	add := func(backend core.ModelBackend, names []string) {
		for _, name := range names {
			candidates = append(candidates, llm.ModelCandidate{Name: name, Priority: len(candidates), Backend: backend})
		}
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiBackend(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't initialize gemini: %w", err)
		}
		closers = append(closers, gemini.Close)
		add(gemini, cfg.GeminiModels)
	}
	if cfg.OpenAIAPIKey != "" {
		add(llm.NewOpenAIBackend(cfg.OpenAIAPIKey), cfg.OpenAIModels)
	}
	if cfg.AnthropicAPIKey != "" {
		add(llm.NewAnthropicBackend(cfg.AnthropicAPIKey), cfg.AnthropicModels)
	}
	if len(candidates) == 0 {
		logger.Warn("no AI models configured, every summary will be a basic extraction")
	}

	opts := llm.DefaultOptions()
	opts.Logger = logger
	return llm.NewSummarizationClient(candidates, opts), closers, nil
}

// Run serves HTTP and drains the archive queue until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Server.Start()
	})
	if a.Archiver != nil {
		g.Go(func() error {
			return a.Archiver.Run(gctx, a.cfg.ArchiveWorkers)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
