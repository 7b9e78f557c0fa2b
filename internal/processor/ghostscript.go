package processor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"pdf-tools-bot/internal/domain"
)

var presets = map[domain.Quality]string{
	domain.QualityLow:     "/screen",
	domain.QualityDefault: "/ebook",
	domain.QualityHigh:    "/printer",
}

// Ghostscript recompresses documents with the gs pdfwrite device and falls
// back to pdfcpu optimization when gs is missing or fails.
type Ghostscript struct {
	binary   string
	fallback *PDFCPU
	logger   domain.Logger
}

var _ domain.Recompressor = (*Ghostscript)(nil)

// NewGhostscript creates the recompressor. binary may be a name on PATH.
func NewGhostscript(binary string, fallback *PDFCPU, logger domain.Logger) *Ghostscript {
	if binary == "" {
		binary = "gs"
	}
	return &Ghostscript{binary: binary, fallback: fallback, logger: logger}
}

// Available reports whether the gs binary can be found.
func (g *Ghostscript) Available() bool {
	_, err := exec.LookPath(g.binary)
	return err == nil
}

// Version returns the gs version string.
func (g *Ghostscript) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, g.binary, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Recompress writes a smaller rendition of input to output.
func (g *Ghostscript) Recompress(ctx context.Context, input, output string, quality domain.Quality) (domain.CompressionReport, error) {
	in, err := os.Stat(input)
	if err != nil {
		return domain.CompressionReport{}, err
	}
	report := domain.CompressionReport{OriginalSize: in.Size(), Engine: "ghostscript"}

	if err := g.run(ctx, input, output, quality); err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		g.logger.Warn("Ghostscript failed, falling back to pdfcpu", "error", err.Error())
		_ = os.Remove(output)
		if err := g.fallback.Optimize(ctx, input, output); err != nil {
			return report, err
		}
		report.Engine = "pdfcpu"
	}

	out, err := os.Stat(output)
	if err != nil {
		return report, fmt.Errorf("stat compressed output: %w", err)
	}
	report.NewSize = out.Size()
	g.logger.Debug("Recompression finished",
		"engine", report.Engine,
		"quality", quality,
		"original_size", report.OriginalSize,
		"new_size", report.NewSize,
	)
	return report, nil
}

func (g *Ghostscript) run(ctx context.Context, input, output string, quality domain.Quality) error {
	preset, ok := presets[quality]
	if !ok {
		preset = presets[domain.QualityDefault]
	}

	cmd := exec.CommandContext(ctx, g.binary,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS="+preset,
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile="+output,
		input,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("gs: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
