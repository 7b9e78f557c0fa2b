package processor

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"pdf-tools-bot/internal/domain"

	"github.com/klauspost/compress/zip"
)

// ZipArchiver bundles files into a zip archive.
type ZipArchiver struct{}

var _ domain.Archiver = ZipArchiver{}

// Archive writes files, flat and in order, to output.
func (ZipArchiver) Archive(ctx context.Context, files []string, output string) error {
	out, err := os.OpenFile(output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			out.Close()
			return err
		}
		if err := addToZip(zw, path); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addToZip(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
