package config

import (
	"context"
	"testing"
	"time"

	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/internal/repository"
)

func testConfig(t *testing.T) *AppConfig {
	return &AppConfig{
		HTTPAddr:           ":0",
		TempDir:            t.TempDir(),
		MaxFileSize:        1 << 20,
		MaxMergeFiles:      3,
		MaxImageFiles:      4,
		RasterDPI:          72,
		ArchiveThreshold:   10,
		OperationTimeout:   time.Minute,
		CleanupInterval:    time.Hour,
		CleanupMaxAge:      time.Hour,
		RateLimitPerMinute: 10,
		EnableRateLimiting: true,
		WorkerConcurrency:  2,
		GhostscriptPath:    "gs-not-installed",
		LogLevel:           "error",
		Environment:        "test",
	}
}

func TestNewContainer_MemoryAnalytics(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	container, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer container.Close()

	if _, ok := container.Analytics.(*repository.MemoryAnalyticsRepository); !ok {
		t.Fatalf("expected memory analytics, got %T", container.Analytics)
	}
	for _, cmd := range domain.AllCommands() {
		if !container.Dispatcher.Handles(cmd) {
			t.Fatalf("dispatcher has no handler for /%s", cmd)
		}
	}
	if container.Store.Limit(domain.KindDocument) != 3 || container.Store.Limit(domain.KindImage) != 4 {
		t.Fatalf("store limits not wired from config")
	}
}

func TestNewContainer_SweptInboxClearsPending(t *testing.T) {
	container, err := NewContainer(testConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer container.Close()

	conv := domain.ConversationID("7")
	if _, err := container.Store.Add(conv, domain.PendingFile{Path: "/gone.pdf", Kind: domain.KindDocument}); err != nil {
		t.Fatalf("add: %v", err)
	}
	container.Scratch.OnInboxSwept(conv)

	if n := len(container.Store.Files(conv)); n != 0 {
		t.Fatalf("expected pending files cleared, got %d", n)
	}
}

func TestNewContainer_PublishesToAnalytics(t *testing.T) {
	container, err := NewContainer(testConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer container.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := container.Consumer.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	go container.Consumer.Consume(ctx, messages)

	req := domain.OperationRequest{ConversationID: "1", UserID: 5}
	deliver := func(context.Context, *domain.OperationResult) error { return nil }
	if err := container.Dispatcher.HandleText(ctx, "/help", req, deliver); err != nil {
		t.Fatalf("help: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := container.Analytics.Statistics(ctx)
		if err != nil {
			t.Fatalf("statistics: %v", err)
		}
		if stats.TotalUsers == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("event was not recorded")
}
