package dispatch

import (
	"context"
	"fmt"
	"time"

	"pdf-tools-bot/internal/domain"
	apperrors "pdf-tools-bot/pkg/errors"

	"github.com/google/uuid"
)

// HandlerFunc runs one command and hands its result to deliver.
type HandlerFunc func(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error

// Operations is the set of document handlers the dispatcher routes to.
type Operations interface {
	Merge(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
	Split(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
	Compress(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
	ToImage(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
	ToPNG(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
	ToJPG(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
	ToPDF(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
	Cancel(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error
}

// Limiter decides whether a conversation may start another operation.
type Limiter interface {
	Allow(conv domain.ConversationID) bool
}

// Config carries the static parts of the dispatcher.
type Config struct {
	About    About
	Limits   Limits
	AdminIDs []int64
}

// Dispatcher routes parsed commands to their handlers and publishes one
// analytics event per handled command.
type Dispatcher struct {
	handlers  map[domain.Command]HandlerFunc
	limiter   Limiter
	publisher domain.EventPublisher
	analytics domain.AnalyticsRepository
	admins    map[int64]struct{}
	cfg       Config
	logger    domain.Logger
	now       func() time.Time
}

// NewDispatcher builds the dispatch table. limiter, publisher and analytics
// may be nil.
func NewDispatcher(
	ops Operations,
	limiter Limiter,
	publisher domain.EventPublisher,
	analytics domain.AnalyticsRepository,
	cfg Config,
	logger domain.Logger,
) *Dispatcher {
	d := &Dispatcher{
		limiter:   limiter,
		publisher: publisher,
		analytics: analytics,
		admins:    make(map[int64]struct{}, len(cfg.AdminIDs)),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, id := range cfg.AdminIDs {
		d.admins[id] = struct{}{}
	}

	d.handlers = map[domain.Command]HandlerFunc{
		domain.CommandStart:    d.start,
		domain.CommandHelp:     d.help,
		domain.CommandAbout:    d.about,
		domain.CommandStats:    d.stats,
		domain.CommandCancel:   ops.Cancel,
		domain.CommandMerge:    ops.Merge,
		domain.CommandSplit:    ops.Split,
		domain.CommandCompress: ops.Compress,
		domain.CommandToImage:  ops.ToImage,
		domain.CommandToPNG:    ops.ToPNG,
		domain.CommandToJPG:    ops.ToJPG,
		domain.CommandToPDF:    ops.ToPDF,
	}
	return d
}

// Handles reports whether cmd has an entry in the dispatch table.
func (d *Dispatcher) Handles(cmd domain.Command) bool {
	_, ok := d.handlers[cmd]
	return ok
}

// HandleText parses text and dispatches it. req carries the sender; its
// Command and Args are filled from text.
func (d *Dispatcher) HandleText(ctx context.Context, text string, req domain.OperationRequest, deliver domain.Delivery) error {
	cmd, args, ok := ParseCommand(text)
	if !ok {
		return apperrors.NewUnsupportedError("Send a file or a command", "Type /help to see what I can do.")
	}
	req.Command = cmd
	req.Args = args
	return d.Dispatch(ctx, req, deliver)
}

// Dispatch runs the handler for req.Command.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	started := d.now()
	err := d.dispatch(ctx, req, deliver)
	d.publish(ctx, req, err, started)
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	handler, ok := d.handlers[req.Command]
	if !ok {
		d.logger.Debug("Unknown command", "conversation_id", req.ConversationID, "command", req.Command)
		return apperrors.NewUnsupportedError(
			fmt.Sprintf("Unknown command /%s", req.Command),
			"Type /help to see the available commands.",
		)
	}

	if req.Command.IsOperation() && d.limiter != nil && !d.limiter.Allow(req.ConversationID) {
		d.logger.Debug("Rate limited", "conversation_id", req.ConversationID, "command", req.Command)
		return apperrors.NewRateLimitedError(
			"Too many operations",
			"Please wait a minute before starting another one.",
		)
	}

	d.logger.Debug("Dispatching command", "conversation_id", req.ConversationID, "command", req.Command)
	return handler(ctx, req, deliver)
}

func (d *Dispatcher) publish(ctx context.Context, req domain.OperationRequest, err error, started time.Time) {
	if d.publisher == nil {
		return
	}

	outcome, errType := Classify(err)
	event := domain.OperationEvent{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Username:       req.Username,
		Command:        req.Command,
		Outcome:        outcome,
		ErrorType:      errType,
		DurationMs:     d.now().Sub(started).Milliseconds(),
		OccurredAt:     started.UTC(),
	}
	if pubErr := d.publisher.Publish(ctx, event); pubErr != nil {
		d.logger.Warn("Failed to publish operation event", "command", req.Command, "error", pubErr.Error())
	}
}

// Classify maps a handler result onto an analytics outcome and the error
// type recorded with it.
func Classify(err error) (domain.Outcome, string) {
	if err == nil {
		return domain.OutcomeSucceeded, ""
	}

	appErr, ok := apperrors.As(err)
	if !ok {
		return domain.OutcomeFailed, string(apperrors.ErrorTypeInternal)
	}
	switch appErr.Type {
	case apperrors.ErrorTypeCancelled:
		return domain.OutcomeCancelled, string(appErr.Type)
	case apperrors.ErrorTypeCapability, apperrors.ErrorTypeResource, apperrors.ErrorTypeInternal:
		return domain.OutcomeFailed, string(appErr.Type)
	}
	return domain.OutcomeRejected, string(appErr.Type)
}

func (d *Dispatcher) start(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return deliver(ctx, &domain.OperationResult{Summary: startMessage(req.Username, d.cfg.About)})
}

func (d *Dispatcher) help(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return deliver(ctx, &domain.OperationResult{Summary: helpMessage(d.cfg.Limits)})
}

func (d *Dispatcher) about(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	return deliver(ctx, &domain.OperationResult{Summary: aboutMessage(d.cfg.About)})
}

func (d *Dispatcher) stats(ctx context.Context, req domain.OperationRequest, deliver domain.Delivery) error {
	if _, ok := d.admins[req.UserID]; !ok {
		return apperrors.NewUnauthorizedError("This command is only available to administrators")
	}
	if d.analytics == nil {
		return apperrors.NewCapabilityError("Statistics are not available", domain.ErrCapabilityMissing)
	}

	stats, err := d.analytics.Statistics(ctx)
	if err != nil {
		d.logger.Error("Failed to load statistics", err, "user_id", req.UserID)
		return apperrors.NewCapabilityError("Statistics are not available", err)
	}
	return deliver(ctx, &domain.OperationResult{Summary: statsMessage(stats)})
}
