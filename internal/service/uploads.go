package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/internal/scratch"
	"pdf-tools-bot/internal/session"
	apperrors "pdf-tools-bot/pkg/errors"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// Upload describes an inbound file before its content is fetched.
type Upload struct {
	ConversationID domain.ConversationID
	FileName       string
	// Size is the size announced by the transport; 0 when unknown.
	Size int64
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Uploads stages inbound files and records them as pending.
type Uploads struct {
	store       *session.Store
	scratch     *scratch.Manager
	gate        *Gate
	maxFileSize int64
	logger      domain.Logger
}

// NewUploads creates the upload handler.
func NewUploads(store *session.Store, scratchManager *scratch.Manager, gate *Gate, maxFileSize int64, logger domain.Logger) *Uploads {
	return &Uploads{
		store:       store,
		scratch:     scratchManager,
		gate:        gate,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Accept validates, stages and records one upload. Uploads of one
// conversation are serialized so an album of images keeps its order.
func (u *Uploads) Accept(ctx context.Context, up Upload) (*domain.UploadReceipt, error) {
	conv := up.ConversationID

	kind, ok := domain.KindForName(up.FileName)
	if !ok {
		ext := strings.ToLower(filepath.Ext(up.FileName))
		if ext == "" {
			ext = "without extension"
		}
		return nil, apperrors.NewUnsupportedError(
			fmt.Sprintf("Unsupported file type (%s)", ext),
			"Supported formats: "+domain.SupportedFormats(),
		)
	}
	if up.Size > u.maxFileSize {
		return nil, u.tooLarge(up.Size)
	}

	flight, err := u.gate.Acquire(ctx, conv, FlightUpload)
	if err != nil {
		return nil, apperrors.NewResourceError("Upload aborted", err)
	}
	defer u.gate.Release(flight)
	if flight.Cancelled() {
		return nil, apperrors.NewCancelledError(domain.ErrCancelled)
	}

	if n, limit := u.store.Count(conv, kind), u.store.Limit(kind); limit > 0 && n >= limit {
		return nil, apperrors.NewCapacityError(
			fmt.Sprintf("You can upload at most %d %s at a time", limit, kind.Label()),
			fmt.Sprintf("You already have %d. Run a command or /cancel to start over.", n),
		)
	}

	rc, err := up.Open(ctx)
	if err != nil {
		return nil, apperrors.NewResourceError("Could not download your file", err)
	}
	defer rc.Close()

	path, size, err := u.scratch.Stage(conv, up.FileName, rc, u.maxFileSize)
	if err != nil {
		switch {
		case flight.Cancelled():
			return nil, apperrors.NewCancelledError(err)
		case errors.Is(err, domain.ErrFileTooLarge):
			return nil, u.tooLarge(size)
		}
		u.logger.Error("Failed to stage upload", err, "conversation_id", conv, "file_name", up.FileName)
		return nil, apperrors.NewResourceError("Could not save your file", err)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil || !matchesKind(mime, kind) {
		u.scratch.Discard(path)
		detected := "unknown"
		if mime != nil {
			detected = mime.String()
		}
		u.logger.Info("Upload content mismatch", "conversation_id", conv, "file_name", up.FileName, "detected", detected)
		noun := "PDF"
		if kind == domain.KindImage {
			noun = "image"
		}
		return nil, apperrors.NewUnprocessableError(
			fmt.Sprintf("%s does not look like a valid %s", scratch.SanitizeName(up.FileName), noun),
			"Send the original file again.",
			domain.ErrCorruptDocument,
		)
	}

	if flight.Cancelled() {
		u.scratch.Discard(path)
		return nil, apperrors.NewCancelledError(domain.ErrCancelled)
	}

	file := domain.PendingFile{
		Path:         path,
		OriginalName: up.FileName,
		Kind:         kind,
		Size:         size,
		MIMEType:     mime.String(),
		UploadedAt:   time.Now().UTC(),
	}
	count, err := u.store.Add(conv, file)
	if err != nil {
		u.scratch.Discard(path)
		return nil, err
	}

	u.logger.Info("Upload accepted", "conversation_id", conv, "kind", kind, "size", size, "pending", count)
	return &domain.UploadReceipt{File: file, Pending: count}, nil
}

// Pending returns the conversation's pending files.
func (u *Uploads) Pending(conv domain.ConversationID) []domain.PendingFile {
	return u.store.Files(conv)
}

func (u *Uploads) tooLarge(size int64) error {
	return apperrors.NewValidationError(
		fmt.Sprintf("File is too large (%s)", humanize.Bytes(uint64(size))),
		fmt.Sprintf("The limit is %s per file.", humanize.Bytes(uint64(u.maxFileSize))),
	)
}

func matchesKind(mime *mimetype.MIME, kind domain.FileKind) bool {
	if mime == nil {
		return false
	}
	if kind == domain.KindDocument {
		return mime.Is("application/pdf")
	}
	return strings.HasPrefix(mime.String(), "image/")
}
