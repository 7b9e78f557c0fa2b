package domain

import (
	"context"
	"time"
)

// OperationRequest is one parsed inbound command.
type OperationRequest struct {
	ConversationID ConversationID
	UserID         int64
	Username       string
	Command        Command
	Args           string
}

// ResultKind describes how a result file should be delivered.
type ResultKind string

const (
	ResultDocument ResultKind = "document"
	ResultImage    ResultKind = "image"
	ResultArchive  ResultKind = "archive"
)

// ResultFile is one output artifact. Path is only valid until the delivery
// callback returns.
type ResultFile struct {
	Path    string     `json:"-"`
	Name    string     `json:"name"`
	Kind    ResultKind `json:"kind"`
	Caption string     `json:"caption,omitempty"`
}

// OperationResult is what a handler hands to the transport.
type OperationResult struct {
	Summary string       `json:"summary"`
	Files   []ResultFile `json:"files,omitempty"`
}

// Delivery sends a result back through the transport the request came from.
// Files are removed once it returns.
type Delivery func(ctx context.Context, result *OperationResult) error

// OperationState tracks one flight through a handler.
type OperationState int32

const (
	StateIdle OperationState = iota
	StateValidating
	StateProcessing
	StateSucceeded
	StateFailed
	StateCleaned
)

func (s OperationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateProcessing:
		return "processing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCleaned:
		return "cleaned"
	}
	return "unknown"
}

// Quality selects a recompression preset.
type Quality string

const (
	QualityLow     Quality = "low"
	QualityDefault Quality = "default"
	QualityHigh    Quality = "high"
)

// ImageFormat is the raster output encoding.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpg"
)

// CompressionReport compares input and output sizes of a recompression.
type CompressionReport struct {
	OriginalSize int64
	NewSize      int64
	Engine       string
}

// SavedPercent is (original-new)/original*100; negative when the output grew.
func (r CompressionReport) SavedPercent() float64 {
	if r.OriginalSize <= 0 {
		return 0
	}
	return float64(r.OriginalSize-r.NewSize) / float64(r.OriginalSize) * 100
}

// Outcome is the analytics classification of a handled command.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

// OperationEvent is published after every dispatched command.
type OperationEvent struct {
	ID             string         `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	UserID         int64          `json:"user_id"`
	Username       string         `json:"username,omitempty"`
	Command        Command        `json:"command"`
	Outcome        Outcome        `json:"outcome"`
	ErrorType      string         `json:"error_type,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Statistics is the aggregate shown by the stats command.
type Statistics struct {
	TotalUsers      int64
	TotalOperations int64
	ByCommand       map[Command]int64
}
