package processor

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"pdf-tools-bot/internal/domain"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImagePacker turns uploaded images into a document, one page per image.
type ImagePacker struct {
	pdf    *PDFCPU
	logger domain.Logger
}

var _ domain.ImagePacker = (*ImagePacker)(nil)

// NewImagePacker creates the packer.
func NewImagePacker(pdf *PDFCPU, logger domain.Logger) *ImagePacker {
	return &ImagePacker{pdf: pdf, logger: logger}
}

// Pack normalizes every image and imports them in order. Normalized copies
// are written next to output.
func (p *ImagePacker) Pack(ctx context.Context, images []string, output string) error {
	work := filepath.Join(filepath.Dir(output), "normalized")
	if err := os.MkdirAll(work, 0o700); err != nil {
		return err
	}

	prepared := make([]string, 0, len(images))
	for i, path := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := normalizeImage(path, work, i)
		if err != nil {
			return err
		}
		prepared = append(prepared, out)
	}

	p.logger.Debug("Packing images", "count", len(prepared))
	return p.pdf.ImportImages(ctx, prepared, output)
}

// normalizeImage returns a path pdfcpu can import. Opaque JPEG and PNG files
// are used as they are; everything else is decoded, flattened onto white and
// written as PNG.
func normalizeImage(path, workDir string, index int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrUnreadableImage)
	}

	if format == "jpeg" || (format == "png" && isOpaque(img)) {
		return path, nil
	}

	out := filepath.Join(workDir, fmt.Sprintf("%03d.png", index+1))
	dst, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if err := png.Encode(dst, flatten(img)); err != nil {
		dst.Close()
		return "", err
	}
	return out, dst.Close()
}

// flatten composites img onto a white background.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
