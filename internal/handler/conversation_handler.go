package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"pdf-tools-bot/internal/dispatch"
	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/internal/service"
	apperrors "pdf-tools-bot/pkg/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
)

// Commands handles command text.
type Commands interface {
	HandleText(ctx context.Context, text string, req domain.OperationRequest, deliver domain.Delivery) error
}

// Uploader accepts inbound files.
type Uploader interface {
	Accept(ctx context.Context, up service.Upload) (*domain.UploadReceipt, error)
}

// ConversationHandler exposes uploads and commands of one conversation over
// HTTP.
type ConversationHandler struct {
	uploads  Uploader
	commands Commands
	logger   domain.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(uploads Uploader, commands Commands, logger domain.Logger) *ConversationHandler {
	return &ConversationHandler{
		uploads:  uploads,
		commands: commands,
		logger:   logger,
	}
}

type uploadResponse struct {
	*domain.UploadReceipt
	Message string `json:"message"`
}

type commandRequest struct {
	Text     string `json:"text"`
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// UploadFile streams the multipart field "file" into the conversation.
func (h *ConversationHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	conv := domain.ConversationID(mux.Vars(r)["id"])

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Multipart form required")
		return
	}

	var part *multipart.Part
	for {
		p, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		if p.FormName() == "file" {
			part = p
			break
		}
		p.Close()
	}
	if part == nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer part.Close()

	receipt, err := h.uploads.Accept(r.Context(), service.Upload{
		ConversationID: conv,
		FileName:       part.FileName(),
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(part), nil
		},
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		UploadReceipt: receipt,
		Message:       dispatch.ReceiptMessage(receipt),
	})
}

// RunCommand dispatches {"text": "/split 1-3"} and answers with a
// multipart/mixed body: a JSON summary part followed by one part per file.
func (h *ConversationHandler) RunCommand(w http.ResponseWriter, r *http.Request) {
	conv := domain.ConversationID(mux.Vars(r)["id"])

	var body commandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req := domain.OperationRequest{
		ConversationID: conv,
		UserID:         body.UserID,
		Username:       body.Username,
	}

	delivered := false
	deliver := func(ctx context.Context, result *domain.OperationResult) error {
		delivered = true
		return writeResult(w, result)
	}

	err := h.commands.HandleText(r.Context(), body.Text, req, deliver)
	if err == nil {
		return
	}
	if delivered {
		h.logger.Error("Failed to stream command result", err, "conversation_id", conv)
		return
	}
	writeAppError(w, err)
}

func writeResult(w http.ResponseWriter, result *domain.OperationResult) error {
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusOK)

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(part).Encode(result); err != nil {
		return err
	}

	for _, file := range result.Files {
		if err := writeFilePart(mw, file); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, file domain.ResultFile) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return apperrors.NewResourceError("Failed to read the result", err)
	}
	defer f.Close()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(file.Path); err == nil {
		contentType = mt.String()
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, escapeQuotes(file.Name)))
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
