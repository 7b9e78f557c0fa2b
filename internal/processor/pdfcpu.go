package processor

import (
	"context"
	"fmt"
	"strconv"

	"pdf-tools-bot/internal/domain"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFCPU implements the structural document capabilities on pdfcpu.
type PDFCPU struct {
	logger domain.Logger
}

var (
	_ domain.DocumentCombiner = (*PDFCPU)(nil)
	_ domain.PageExtractor    = (*PDFCPU)(nil)
	_ domain.PageCounter      = (*PDFCPU)(nil)
)

// NewPDFCPU creates the adapter. pdfcpu's on-disk config directory is
// disabled so the bot never writes outside its scratch root.
func NewPDFCPU(logger domain.Logger) *PDFCPU {
	api.DisableConfigDir()
	return &PDFCPU{logger: logger}
}

func (p *PDFCPU) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Combine merges inputs into output in the given order.
func (p *PDFCPU) Combine(ctx context.Context, inputs []string, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := api.MergeCreateFile(inputs, output, false, p.conf()); err != nil {
		return classifyPDFError(fmt.Errorf("merge: %w", err))
	}
	p.logger.Debug("pdfcpu merge finished", "inputs", len(inputs))
	return nil
}

// Extract writes the selected pages, in the given order, to output.
func (p *PDFCPU) Extract(ctx context.Context, input string, pages []int, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	selected := make([]string, len(pages))
	for i, n := range pages {
		selected[i] = strconv.Itoa(n)
	}
	if err := api.CollectFile(input, output, selected, p.conf()); err != nil {
		return classifyPDFError(fmt.Errorf("collect pages: %w", err))
	}
	return nil
}

// PageCount returns the number of pages of input.
func (p *PDFCPU) PageCount(ctx context.Context, input string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := api.PageCountFile(input)
	if err != nil {
		return 0, classifyPDFError(fmt.Errorf("count pages: %w", err))
	}
	return n, nil
}

// Optimize rewrites input without unused objects. It is the fallback when
// Ghostscript is not available.
func (p *PDFCPU) Optimize(ctx context.Context, input, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := api.OptimizeFile(input, output, p.conf()); err != nil {
		return classifyPDFError(fmt.Errorf("optimize: %w", err))
	}
	return nil
}

// ImportImages creates output with one page per image, each page sized to
// its image.
func (p *PDFCPU) ImportImages(ctx context.Context, images []string, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full
	if err := api.ImportImagesFile(images, output, imp, p.conf()); err != nil {
		return fmt.Errorf("import images: %w", err)
	}
	return nil
}
