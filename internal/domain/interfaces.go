package domain

import "context"

// DocumentCombiner concatenates documents in the given order.
type DocumentCombiner interface {
	Combine(ctx context.Context, inputs []string, output string) error
}

// PageExtractor writes a new document holding the given 1-based pages of the
// input, in order, duplicates allowed.
type PageExtractor interface {
	Extract(ctx context.Context, input string, pages []int, output string) error
}

// Recompressor rewrites a document with a smaller footprint.
type Recompressor interface {
	Recompress(ctx context.Context, input, output string, quality Quality) (CompressionReport, error)
}

// Rasterizer renders every page of a document into outDir and returns the
// image paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, input, outDir string, dpi float64, format ImageFormat) ([]string, error)
}

// ImagePacker builds a document with one page per image, in order.
type ImagePacker interface {
	Pack(ctx context.Context, images []string, output string) error
}

// PageCounter reports the number of pages of a document.
type PageCounter interface {
	PageCount(ctx context.Context, input string) (int, error)
}

// Archiver bundles files into a single archive.
type Archiver interface {
	Archive(ctx context.Context, files []string, output string) error
}

// AnalyticsRepository persists operation events and answers the stats command.
type AnalyticsRepository interface {
	Track(ctx context.Context, event OperationEvent) error
	Statistics(ctx context.Context) (*Statistics, error)
}

// EventPublisher emits operation events.
type EventPublisher interface {
	Publish(ctx context.Context, event OperationEvent) error
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}
