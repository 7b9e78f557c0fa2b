package processor

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"pdf-tools-bot/internal/domain"

	"github.com/gen2brain/go-fitz"
)

const jpegQuality = 85

// FitzRasterizer renders pages with MuPDF through go-fitz.
type FitzRasterizer struct {
	logger domain.Logger
}

var (
	_ domain.Rasterizer  = (*FitzRasterizer)(nil)
	_ domain.PageCounter = (*FitzRasterizer)(nil)
)

// NewFitzRasterizer creates the rasterizer.
func NewFitzRasterizer(logger domain.Logger) *FitzRasterizer {
	return &FitzRasterizer{logger: logger}
}

// PageCount opens the document with MuPDF, which tolerates damaged files
// better than a strict parser.
func (r *FitzRasterizer) PageCount(ctx context.Context, input string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	doc, err := fitz.New(input)
	if err != nil {
		return 0, classifyPDFError(err)
	}
	defer doc.Close()
	n := doc.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("%w: document has no pages", domain.ErrCorruptDocument)
	}
	return n, nil
}

// Rasterize renders every page at dpi into outDir.
func (r *FitzRasterizer) Rasterize(ctx context.Context, input, outDir string, dpi float64, format domain.ImageFormat) ([]string, error) {
	doc, err := fitz.New(input)
	if err != nil {
		return nil, classifyPDFError(err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", domain.ErrCorruptDocument)
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, err
	}

	width := len(strconv.Itoa(total))
	if width < 3 {
		width = 3
	}

	paths := make([]string, 0, total)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.logger.Debug("Rasterizing page", "page", i+1, "total", total)

		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("page_%0*d.%s", width, i+1, format))
		if err := writeImage(path, img, format); err != nil {
			return nil, fmt.Errorf("write page %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeImage(path string, img image.Image, format domain.ImageFormat) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if format == domain.FormatJPEG {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(f, img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
