package main

import (
	"context"
	"time"

	"pdf-tools-bot/internal/config"

	"github.com/fatih/color"
)

// systemCheck prints which optional tools were found. Missing tools only
// degrade features, so nothing here stops the bot.
func systemCheck(ctx context.Context, container *config.Container) {
	color.Cyan("🔍 %s %s system check", config.BotName, config.BotVersion)

	gs := container.Ghostscript
	if !gs.Available() {
		color.Yellow("⚠️  Ghostscript not found (%s): /compress falls back to pdfcpu optimization", container.Config.GhostscriptPath)
		container.Logger.Warn("Ghostscript not found, compression quality presets are disabled", "path", container.Config.GhostscriptPath)
	} else {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		version, err := gs.Version(vctx)
		cancel()
		if err != nil {
			color.Yellow("⚠️  Ghostscript found but did not report a version: %v", err)
		} else {
			color.Green("✅ Ghostscript %s", version)
		}
	}

	color.Green("✅ Temp dir %s", container.Scratch.Root())

	cfg := container.Config
	if cfg.BotToken != "" {
		color.Green("✅ Telegram transport enabled")
	}
	if cfg.HTTPAddr != "" {
		color.Green("✅ HTTP gateway on %s", cfg.HTTPAddr)
		if cfg.GatewayToken == "" {
			color.Yellow("⚠️  GATEWAY_TOKEN is empty, the gateway accepts unauthenticated requests")
		}
	}
}
