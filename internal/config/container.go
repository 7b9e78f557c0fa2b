package config

import (
	"fmt"
	"io"
	"time"

	"pdf-tools-bot/internal/dispatch"
	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/internal/events"
	"pdf-tools-bot/internal/infra/supabase"
	"pdf-tools-bot/internal/processor"
	"pdf-tools-bot/internal/repository"
	"pdf-tools-bot/internal/scratch"
	"pdf-tools-bot/internal/service"
	"pdf-tools-bot/internal/session"
	"pdf-tools-bot/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Container holds all application dependencies
type Container struct {
	Config *AppConfig
	Logger *logger.AppLogger

	Store       *session.Store
	Scratch     *scratch.Manager
	Sweeper     *scratch.Sweeper
	Ghostscript *processor.Ghostscript
	Operations  *service.Operations
	Uploads     *service.Uploads
	Dispatcher  *dispatch.Dispatcher

	PubSub    *gochannel.GoChannel
	Consumer  *events.Consumer
	Analytics domain.AnalyticsRepository

	closers []io.Closer
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *AppConfig) (*Container, error) {
	appLogger := logger.NewLogger(logger.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFilePath,
		Production: cfg.IsProduction(),
	})

	c := &Container{Config: cfg, Logger: appLogger}

	scratchManager, err := scratch.NewManager(cfg.TempDir, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare temp dir: %w", err)
	}
	store := session.NewStore(session.Limits{
		MaxDocuments: cfg.MaxMergeFiles,
		MaxImages:    cfg.MaxImageFiles,
	})
	// Swept inboxes take their files with them; drop the stale references.
	scratchManager.OnInboxSwept = func(conv domain.ConversationID) {
		store.Clear(conv)
	}
	c.Store = store
	c.Scratch = scratchManager
	c.Sweeper = scratch.NewSweeper(scratchManager, cfg.CleanupInterval, cfg.CleanupMaxAge, appLogger)

	pdf := processor.NewPDFCPU(appLogger)
	fitz := processor.NewFitzRasterizer(appLogger)
	c.Ghostscript = processor.NewGhostscript(cfg.GhostscriptPath, pdf, appLogger)

	gate := service.NewGate()
	c.Operations = service.NewOperations(
		store,
		scratchManager,
		gate,
		service.NewPool(cfg.WorkerConcurrency),
		service.Capabilities{
			Combiner:     pdf,
			Extractor:    pdf,
			Recompressor: c.Ghostscript,
			Rasterizer:   fitz,
			Packer:       processor.NewImagePacker(pdf, appLogger),
			Counter:      fitz,
			Archiver:     processor.ZipArchiver{},
		},
		service.OperationsConfig{
			RasterDPI:        cfg.RasterDPI,
			ArchiveThreshold: cfg.ArchiveThreshold,
			OperationTimeout: cfg.OperationTimeout,
		},
		appLogger,
	)
	c.Uploads = service.NewUploads(store, scratchManager, gate, cfg.MaxFileSize, appLogger)

	analytics, err := c.newAnalyticsRepository()
	if err != nil {
		return nil, err
	}
	c.Analytics = analytics

	c.PubSub = events.NewPubSub(cfg.LogLevel == "debug")
	c.closers = append(c.closers, c.PubSub)
	c.Consumer = events.NewConsumer(c.PubSub, analytics, appLogger)

	c.Dispatcher = dispatch.NewDispatcher(
		c.Operations,
		service.NewRateLimiter(cfg.EffectiveRateLimit(), time.Minute),
		events.NewPublisher(c.PubSub),
		analytics,
		dispatch.Config{
			About: dispatch.About{
				Name:        BotName,
				Version:     BotVersion,
				Description: BotDescription,
			},
			Limits: dispatch.Limits{
				MaxFileSize:   cfg.MaxFileSize,
				MaxMergeFiles: cfg.MaxMergeFiles,
				MaxImageFiles: cfg.MaxImageFiles,
			},
			AdminIDs: cfg.AdminIDs,
		},
		appLogger,
	)

	return c, nil
}

// newAnalyticsRepository picks Postgres, then Supabase, then memory.
func (c *Container) newAnalyticsRepository() (domain.AnalyticsRepository, error) {
	cfg := c.Config
	switch {
	case cfg.DatabaseURL != "":
		repo, err := repository.OpenPostgres(cfg.DatabaseURL, c.Logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, repo)
		c.Logger.Info("Analytics backend selected", "backend", "postgres")
		return repo, nil

	case cfg.SupabaseURL != "":
		client := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, c.Logger)
		if err := client.Initialize(); err != nil {
			return nil, err
		}
		c.Logger.Info("Analytics backend selected", "backend", "supabase")
		return repository.NewSupabaseAnalyticsRepository(client.DB(), c.Logger), nil
	}

	c.Logger.Info("Analytics backend selected", "backend", "memory")
	return repository.NewMemoryAnalyticsRepository(), nil
}

// Close releases the bus and the database connection, then flushes the log.
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = c.Logger.Sync()
	return firstErr
}
