package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// ConversationID identifies one chat. It is the unit of state isolation.
type ConversationID string

// Safe returns the id reduced to [A-Za-z0-9_-] so it can be embedded in a
// directory name.
func (c ConversationID) Safe() string {
	var b strings.Builder
	for _, r := range string(c) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "anon"
	}
	return b.String()
}

// FileKind tags an uploaded file.
type FileKind string

const (
	KindDocument FileKind = "document"
	KindImage    FileKind = "image"
)

// Label is the user-facing plural noun for the kind.
func (k FileKind) Label() string {
	if k == KindImage {
		return "images"
	}
	return "documents"
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// KindForName classifies an upload by its file extension.
func KindForName(name string) (FileKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		return KindDocument, true
	}
	if imageExtensions[ext] {
		return KindImage, true
	}
	return "", false
}

// SupportedFormats lists the accepted extensions for error hints.
func SupportedFormats() string {
	return ".pdf, .jpg, .jpeg, .png, .gif, .bmp, .tiff, .webp"
}

// PendingFile is an upload waiting for a command.
type PendingFile struct {
	Path         string    `json:"-"`
	OriginalName string    `json:"original_name"`
	Kind         FileKind  `json:"kind"`
	Size         int64     `json:"size"`
	MIMEType     string    `json:"mime_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// UploadReceipt is returned to the transport after a file was accepted.
type UploadReceipt struct {
	File    PendingFile `json:"file"`
	Pending int         `json:"pending"`
}
