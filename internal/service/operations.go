package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/internal/scratch"
	"pdf-tools-bot/internal/session"
	apperrors "pdf-tools-bot/pkg/errors"

	"github.com/dustin/go-humanize"
)

// Capabilities bundles the processing engines the handlers call into.
type Capabilities struct {
	Combiner     domain.DocumentCombiner
	Extractor    domain.PageExtractor
	Recompressor domain.Recompressor
	Rasterizer   domain.Rasterizer
	Packer       domain.ImagePacker
	Counter      domain.PageCounter
	Archiver     domain.Archiver
}

// OperationsConfig holds the tunables of the document handlers.
type OperationsConfig struct {
	RasterDPI        float64
	ArchiveThreshold int
	OperationTimeout time.Duration
}

// Operations implements the document commands.
type Operations struct {
	store   *session.Store
	scratch *scratch.Manager
	gate    *Gate
	pool    *Pool
	caps    Capabilities
	cfg     OperationsConfig
	logger  domain.Logger
}

// NewOperations creates the handler set.
func NewOperations(
	store *session.Store,
	scratchManager *scratch.Manager,
	gate *Gate,
	pool *Pool,
	caps Capabilities,
	cfg OperationsConfig,
	logger domain.Logger,
) *Operations {
	return &Operations{
		store:   store,
		scratch: scratchManager,
		gate:    gate,
		pool:    pool,
		caps:    caps,
		cfg:     cfg,
		logger:  logger,
	}
}

type job struct {
	name string
	kind domain.FileKind
	// validate runs before any scratch space is allocated.
	validate func(ctx context.Context, files []domain.PendingFile) error
	process  func(ctx context.Context, dir string, inputs []string) (*domain.OperationResult, error)
}

// Merge combines every pending document, in upload order.
func (o *Operations) Merge(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return o.run(ctx, req, deliver, job{
		name: "merge",
		kind: domain.KindDocument,
		validate: func(_ context.Context, files []domain.PendingFile) error {
			limit := o.store.Limit(domain.KindDocument)
			switch {
			case len(files) < 2:
				return apperrors.NewValidationError(
					fmt.Sprintf("Merge needs at least 2 documents, you have %d", len(files)),
					"Send more PDF files, then /merge.",
				)
			case len(files) > limit:
				return apperrors.NewCapacityError(
					fmt.Sprintf("Merge accepts at most %d documents, you have %d", limit, len(files)),
					"Send /cancel and upload fewer files.",
				)
			}
			return nil
		},
		process: func(ctx context.Context, dir string, inputs []string) (*domain.OperationResult, error) {
			out := filepath.Join(dir, "merged.pdf")
			if err := o.caps.Combiner.Combine(ctx, inputs, out); err != nil {
				return nil, err
			}

			summary := fmt.Sprintf("✅ Merged %d documents", len(inputs))
			if pages, err := o.caps.Counter.PageCount(ctx, out); err == nil {
				summary += fmt.Sprintf(" into %d pages", pages)
			}
			return &domain.OperationResult{
				Summary: summary,
				Files: []domain.ResultFile{{
					Path:    out,
					Name:    "merged.pdf",
					Kind:    domain.ResultDocument,
					Caption: "Merged PDF (" + humanSize(out) + ")",
				}},
			}, nil
		},
	})
}

// Split extracts the pages named in the request arguments.
func (o *Operations) Split(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	var pages []int
	spec := strings.TrimSpace(req.Args)

	return o.run(ctx, req, deliver, job{
		name: "split",
		kind: domain.KindDocument,
		validate: func(ctx context.Context, files []domain.PendingFile) error {
			if err := exactlyOne(files, domain.CommandSplit); err != nil {
				return err
			}
			total, err := o.pageCount(ctx, files[0].Path)
			if err != nil {
				return err
			}
			if spec == "" {
				return apperrors.NewValidationError("Tell me which pages to extract", pageSpecHint(total))
			}
			pages, err = ParsePageSpec(spec, total)
			return err
		},
		process: func(ctx context.Context, dir string, inputs []string) (*domain.OperationResult, error) {
			out := filepath.Join(dir, "split.pdf")
			if err := o.caps.Extractor.Extract(ctx, inputs[0], pages, out); err != nil {
				return nil, err
			}
			return &domain.OperationResult{
				Summary: fmt.Sprintf("✅ Extracted %d pages", len(pages)),
				Files: []domain.ResultFile{{
					Path:    out,
					Name:    "split.pdf",
					Kind:    domain.ResultDocument,
					Caption: fmt.Sprintf("Pages %s (%s)", spec, humanSize(out)),
				}},
			}, nil
		},
	})
}

// Compress recompresses the pending document with the requested preset.
func (o *Operations) Compress(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	var (
		quality  domain.Quality
		original string
	)

	return o.run(ctx, req, deliver, job{
		name: "compress",
		kind: domain.KindDocument,
		validate: func(_ context.Context, files []domain.PendingFile) error {
			q, err := ParseQuality(req.Args)
			if err != nil {
				return err
			}
			if err := exactlyOne(files, domain.CommandCompress); err != nil {
				return err
			}
			quality = q
			original = files[0].OriginalName
			return nil
		},
		process: func(ctx context.Context, dir string, inputs []string) (*domain.OperationResult, error) {
			out := filepath.Join(dir, "compressed.pdf")
			report, err := o.caps.Recompressor.Recompress(ctx, inputs[0], out, quality)
			if err != nil {
				return nil, err
			}

			name := "compressed_" + scratch.SanitizeName(original)
			sizes := fmt.Sprintf("%s → %s", humanize.Bytes(uint64(report.OriginalSize)), humanize.Bytes(uint64(report.NewSize)))
			if report.NewSize < report.OriginalSize {
				return &domain.OperationResult{
					Summary: fmt.Sprintf("✅ Compressed (%s): %s, %.1f%% smaller", quality, sizes, report.SavedPercent()),
					Files: []domain.ResultFile{{
						Path:    out,
						Name:    name,
						Kind:    domain.ResultDocument,
						Caption: sizes,
					}},
				}, nil
			}

			o.logger.Debug("Compression did not shrink the document", "engine", report.Engine, "saved_percent", report.SavedPercent())
			return &domain.OperationResult{
				Summary: fmt.Sprintf("ℹ️ This document is already well optimized (%s, %.1f%%). Sending back the original.", sizes, report.SavedPercent()),
				Files: []domain.ResultFile{{
					Path:    inputs[0],
					Name:    scratch.SanitizeName(original),
					Kind:    domain.ResultDocument,
					Caption: humanize.Bytes(uint64(report.OriginalSize)),
				}},
			}, nil
		},
	})
}

// ToImage rasterizes the pending document; the argument picks png or jpg.
func (o *Operations) ToImage(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return o.rasterize(ctx, req, deliver, req.Args)
}

// ToPNG rasterizes the pending document to PNG.
func (o *Operations) ToPNG(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return o.rasterize(ctx, req, deliver, string(domain.FormatPNG))
}

// ToJPG rasterizes the pending document to JPEG.
func (o *Operations) ToJPG(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return o.rasterize(ctx, req, deliver, string(domain.FormatJPEG))
}

func (o *Operations) rasterize(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery, formatArg string) error {
	var format domain.ImageFormat

	return o.run(ctx, req, deliver, job{
		name: "toimage",
		kind: domain.KindDocument,
		validate: func(_ context.Context, files []domain.PendingFile) error {
			f, err := ParseImageFormat(formatArg)
			if err != nil {
				return err
			}
			if err := exactlyOne(files, req.Command); err != nil {
				return err
			}
			format = f
			return nil
		},
		process: func(ctx context.Context, dir string, inputs []string) (*domain.OperationResult, error) {
			images, err := o.caps.Rasterizer.Rasterize(ctx, inputs[0], filepath.Join(dir, "pages"), o.cfg.RasterDPI, format)
			if err != nil {
				return nil, err
			}
			label := strings.ToUpper(string(format))
			summary := fmt.Sprintf("✅ Converted %d pages to %s", len(images), label)

			if len(images) > o.cfg.ArchiveThreshold {
				archive := filepath.Join(dir, "pdf_images.zip")
				if err := o.caps.Archiver.Archive(ctx, images, archive); err != nil {
					return nil, err
				}
				return &domain.OperationResult{
					Summary: summary,
					Files: []domain.ResultFile{{
						Path:    archive,
						Name:    "pdf_images.zip",
						Kind:    domain.ResultArchive,
						Caption: fmt.Sprintf("%d %s pages (%s)", len(images), label, humanSize(archive)),
					}},
				}, nil
			}

			result := &domain.OperationResult{Summary: summary}
			for i, img := range images {
				result.Files = append(result.Files, domain.ResultFile{
					Path:    img,
					Name:    filepath.Base(img),
					Kind:    domain.ResultImage,
					Caption: fmt.Sprintf("Page %d of %d", i+1, len(images)),
				})
			}
			return result, nil
		},
	})
}

// ToPDF packs every pending image into one document, one page per image.
func (o *Operations) ToPDF(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return o.run(ctx, req, deliver, job{
		name: "topdf",
		kind: domain.KindImage,
		validate: func(_ context.Context, files []domain.PendingFile) error {
			limit := o.store.Limit(domain.KindImage)
			switch {
			case len(files) == 0:
				return apperrors.NewValidationError("No images uploaded", "Send JPG or PNG images, then /topdf.")
			case len(files) > limit:
				return apperrors.NewCapacityError(
					fmt.Sprintf("At most %d images fit in one PDF, you have %d", limit, len(files)),
					"Send /cancel and upload fewer images.",
				)
			}
			return nil
		},
		process: func(ctx context.Context, dir string, inputs []string) (*domain.OperationResult, error) {
			out := filepath.Join(dir, "images.pdf")
			if err := o.caps.Packer.Pack(ctx, inputs, out); err != nil {
				return nil, err
			}
			return &domain.OperationResult{
				Summary: fmt.Sprintf("✅ Created a PDF with %d pages", len(inputs)),
				Files: []domain.ResultFile{{
					Path:    out,
					Name:    "images.pdf",
					Kind:    domain.ResultDocument,
					Caption: fmt.Sprintf("%d images (%s)", len(inputs), humanSize(out)),
				}},
			}, nil
		},
	})
}

// Cancel drops the conversation's pending files and suppresses the result of
// a running operation. It never waits for the running operation.
func (o *Operations) Cancel(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	conv := req.ConversationID
	running := o.gate.Cancel(conv)
	paths := o.store.Clear(conv)
	o.scratch.Discard(paths...)
	if err := o.scratch.ReleaseInbox(conv); err != nil {
		o.logger.Error("Failed to release inbox on cancel", err, "conversation_id", conv)
	}

	o.logger.Info("Conversation cancelled", "conversation_id", conv, "running", running, "discarded", len(paths))

	var summary string
	switch {
	case running:
		summary = "🛑 Cancelled. The running operation will stop without sending a result."
	case len(paths) > 0:
		summary = fmt.Sprintf("🗑 Cancelled. Removed %d pending files.", len(paths))
	default:
		summary = "Nothing to cancel."
	}
	return deliver(ctx, &domain.OperationResult{Summary: summary})
}

func (o *Operations) run(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery, j job) error {
	conv := req.ConversationID

	flight, err := o.gate.Acquire(ctx, conv, FlightOperation)
	signalAdmission(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrBusy) {
			return apperrors.NewBusyError("Another operation is still running", "Wait for it to finish or send /cancel.")
		}
		return apperrors.NewCapabilityError("Operation aborted", err)
	}
	defer o.gate.Release(flight)
	if flight.Cancelled() {
		return apperrors.NewCancelledError(domain.ErrCancelled)
	}

	o.transition(flight, j.name, domain.StateValidating)
	files := o.store.FilesOfKind(conv, j.kind)
	if err := j.validate(ctx, files); err != nil {
		o.transition(flight, j.name, domain.StateFailed)
		classified := o.classify(req, j.name, err)
		if apperrors.IsType(classified, apperrors.ErrorTypeUnprocessable) {
			o.clearPending(conv)
		}
		o.transition(flight, j.name, domain.StateCleaned)
		return classified
	}

	dir, err := o.scratch.Allocate(conv)
	if err != nil {
		o.transition(flight, j.name, domain.StateFailed)
		o.transition(flight, j.name, domain.StateCleaned)
		return o.classify(req, j.name, apperrors.NewResourceError("Could not prepare a workspace", err))
	}
	defer func() {
		if err := o.scratch.Release(dir); err != nil {
			o.logger.Error("Failed to release scratch dir", err, "dir", dir)
		}
		o.transition(flight, j.name, domain.StateCleaned)
	}()

	o.transition(flight, j.name, domain.StateProcessing)
	result, err := o.process(ctx, j, files, dir)
	o.clearPending(conv)

	if err != nil {
		o.transition(flight, j.name, domain.StateFailed)
		if flight.Cancelled() {
			return apperrors.NewCancelledError(err)
		}
		return o.classify(req, j.name, err)
	}
	o.transition(flight, j.name, domain.StateSucceeded)

	if flight.Cancelled() {
		o.logger.Info("Result suppressed after cancel", "conversation_id", conv, "operation", j.name)
		return apperrors.NewCancelledError(domain.ErrCancelled)
	}
	if err := deliver(ctx, result); err != nil {
		return fmt.Errorf("deliver %s result: %w", j.name, err)
	}
	o.logger.Info("Operation completed", "conversation_id", conv, "operation", j.name, "files", len(result.Files))
	return nil
}

func (o *Operations) process(ctx context.Context, j job, files []domain.PendingFile, dir string) (*domain.OperationResult, error) {
	inputs := make([]string, 0, len(files))
	for _, f := range files {
		p, err := o.scratch.Materialize(f, dir)
		if err != nil {
			return nil, apperrors.NewResourceError("Could not prepare your files", err)
		}
		inputs = append(inputs, p)
	}

	var result *domain.OperationResult
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		if o.cfg.OperationTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.cfg.OperationTimeout)
			defer cancel()
		}
		r, err := j.process(ctx, dir, inputs)
		result = r
		return err
	})
	return result, err
}

func (o *Operations) pageCount(ctx context.Context, path string) (int, error) {
	var total int
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		n, err := o.caps.Counter.PageCount(ctx, path)
		total = n
		return err
	})
	return total, err
}

func (o *Operations) clearPending(conv domain.ConversationID) {
	o.scratch.Discard(o.store.Clear(conv)...)
	if err := o.scratch.ReleaseInbox(conv); err != nil {
		o.logger.Error("Failed to release inbox", err, "conversation_id", conv)
	}
}

func (o *Operations) transition(f *Flight, op string, s domain.OperationState) {
	f.setState(s)
	o.logger.Debug("Operation state", "conversation_id", f.conv, "operation", op, "state", s.String())
}

// classify maps any failure onto the user-facing error taxonomy and logs it
// at the level its type deserves.
func (o *Operations) classify(req domain.OperationRequest, op string, err error) error {
	fields := []interface{}{"conversation_id", req.ConversationID, "operation", op}

	if appErr, ok := apperrors.As(err); ok {
		switch appErr.Type {
		case apperrors.ErrorTypeCapability, apperrors.ErrorTypeResource, apperrors.ErrorTypeInternal:
			o.logger.Error("Operation failed", err, fields...)
		case apperrors.ErrorTypeUnprocessable:
			o.logger.Info("Input rejected", append(fields, "reason", appErr.Message)...)
		default:
			o.logger.Debug("Operation rejected", append(fields, "reason", appErr.Message)...)
		}
		return appErr
	}

	var mapped *apperrors.AppError
	switch {
	case errors.Is(err, domain.ErrEncryptedDocument):
		mapped = apperrors.NewUnprocessableError("This document is password-protected", "Remove the password and send it again.", err)
	case errors.Is(err, domain.ErrCorruptDocument):
		mapped = apperrors.NewUnprocessableError("This document could not be read", "It may be damaged. Try exporting it again.", err)
	case errors.Is(err, domain.ErrUnreadableImage):
		mapped = apperrors.NewUnprocessableError("One of the images could not be read", "Send it again as a JPG or PNG.", err)
	case errors.Is(err, context.DeadlineExceeded):
		mapped = apperrors.NewCapabilityError("The operation took too long", err)
	default:
		mapped = apperrors.NewCapabilityError("Processing failed", err)
	}
	return o.classify(req, op, mapped)
}

func exactlyOne(files []domain.PendingFile, cmd domain.Command) error {
	switch len(files) {
	case 1:
		return nil
	case 0:
		return apperrors.NewValidationError("No document uploaded", fmt.Sprintf("Send a PDF file first, then /%s.", cmd))
	}
	return apperrors.NewValidationError(
		fmt.Sprintf("/%s works on exactly one document, you have %d", cmd, len(files)),
		"Send /cancel and upload a single PDF.",
	)
}

func humanSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown size"
	}
	return humanize.Bytes(uint64(info.Size()))
}
