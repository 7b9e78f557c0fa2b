package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-tools-bot/internal/config"
	"pdf-tools-bot/internal/handler"
	"pdf-tools-bot/internal/transport/telegram"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Wiring
	container, err := config.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	systemCheck(ctx, container)

	if err := run(ctx, container); err != nil {
		container.Logger.Error("Bot stopped with error", err)
		container.Close()
		os.Exit(1)
	}
	container.Logger.Info("Bot exited")
}

func run(ctx context.Context, container *config.Container) error {
	cfg := container.Config
	g, ctx := errgroup.WithContext(ctx)

	// Subscribe before any command can publish.
	messages, err := container.Consumer.Subscribe(ctx)
	if err != nil {
		return err
	}
	g.Go(func() error {
		return container.Consumer.Consume(ctx, messages)
	})

	g.Go(func() error {
		return container.Sweeper.Run(ctx)
	})

	if cfg.BotToken != "" {
		bot, err := telegram.New(cfg.BotToken, container.Dispatcher, container.Uploads, container.Logger)
		if err != nil {
			return err
		}
		if err := bot.RegisterCommands(); err != nil {
			container.Logger.Warn("Command menu not registered", "error", err.Error())
		}
		g.Go(func() error {
			return bot.Run(ctx)
		})
	}

	if cfg.HTTPAddr != "" {
		conversationHandler := handler.NewConversationHandler(container.Uploads, container.Dispatcher, container.Logger)
		authMiddleware := handler.NewAuthMiddleware(cfg.GatewayToken, container.Logger)
		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler.NewRouter(conversationHandler, authMiddleware.Middleware, cfg.CORSAllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			container.Logger.Info("Server listening", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			container.Logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
