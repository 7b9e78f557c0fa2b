package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"

	"pdf-tools-bot/internal/dispatch"
	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/internal/service"
	apperrors "pdf-tools-bot/pkg/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Commands handles command text.
type Commands interface {
	HandleText(ctx context.Context, text string, req domain.OperationRequest, deliver domain.Delivery) error
}

// Uploader accepts inbound files.
type Uploader interface {
	Accept(ctx context.Context, up service.Upload) (*domain.UploadReceipt, error)
}

// Bot long-polls Telegram and routes every message to the dispatcher or the
// upload handler.
type Bot struct {
	api        botAPI
	commands   Commands
	uploads    Uploader
	httpClient *http.Client
	logger     domain.Logger
	timeout    int

	mu    sync.Mutex
	lanes map[int64]*chatLane
	wg    sync.WaitGroup
}

// chatLane holds the messages of one chat that are waiting to be handled.
type chatLane struct {
	pending []*tgbotapi.Message
}

// New connects to the Bot API with token.
func New(token string, commands Commands, uploads Uploader, logger domain.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logger.Info("Connected to Telegram", "username", api.Self.UserName)
	return newBot(api, commands, uploads, logger), nil
}

func newBot(api botAPI, commands Commands, uploads Uploader, logger domain.Logger) *Bot {
	return &Bot{
		api:        api,
		commands:   commands,
		uploads:    uploads,
		httpClient: &http.Client{},
		logger:     logger,
		timeout:    60,
		lanes:      make(map[int64]*chatLane),
	}
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (b *Bot) RegisterCommands() error {
	var commands []tgbotapi.BotCommand
	for _, cmd := range domain.AllCommands() {
		if cmd == domain.CommandStats {
			continue
		}
		commands = append(commands, tgbotapi.BotCommand{
			Command:     string(cmd),
			Description: cmd.Description(),
		})
	}

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	b.logger.Info("Bot commands registered", "count", len(commands))
	return nil
}

// Run processes updates until ctx is cancelled, then waits for in-flight
// handlers to return. Messages of one chat are handled in arrival order;
// different chats proceed in parallel.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started")
	defer func() {
		b.api.StopReceivingUpdates()
		b.wg.Wait()
		b.logger.Info("Telegram bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.route(ctx, update.Message)
		}
	}
}

// route queues msg on its chat's lane. /cancel skips the queue so it can
// interrupt work the lane is waiting on.
func (b *Bot) route(ctx context.Context, msg *tgbotapi.Message) {
	if cmd, _, ok := dispatch.ParseCommand(msg.Text); ok && cmd == domain.CommandCancel {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.handleMessage(ctx, msg)
		}()
		return
	}

	chatID := msg.Chat.ID
	b.mu.Lock()
	defer b.mu.Unlock()
	if lane, ok := b.lanes[chatID]; ok {
		lane.pending = append(lane.pending, msg)
		return
	}
	lane := &chatLane{pending: []*tgbotapi.Message{msg}}
	b.lanes[chatID] = lane
	b.wg.Add(1)
	go b.drain(ctx, chatID, lane)
}

func (b *Bot) drain(ctx context.Context, chatID int64, lane *chatLane) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		if len(lane.pending) == 0 {
			delete(b.lanes, chatID)
			b.mu.Unlock()
			return
		}
		msg := lane.pending[0]
		lane.pending = lane.pending[1:]
		b.mu.Unlock()

		if ctx.Err() != nil {
			continue
		}
		if msg.Document != nil || len(msg.Photo) > 0 || msg.Text == "" {
			b.handleMessage(ctx, msg)
			continue
		}
		b.handleCommand(ctx, msg)
	}
}

// handleCommand runs a text message in the background. The lane is held
// until the operation gate has admitted or refused it, or the handler has
// returned.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	admitted := make(chan struct{})
	var once sync.Once
	signal := func() { once.Do(func() { close(admitted) }) }

	done := make(chan struct{})
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(done)
		b.handleMessage(service.WithAdmission(ctx, signal), msg)
	}()

	select {
	case <-admitted:
	case <-done:
	case <-ctx.Done():
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	req := domain.OperationRequest{ConversationID: conversationID(chatID)}
	if msg.From != nil {
		req.UserID = msg.From.ID
		req.Username = msg.From.UserName
		if req.Username == "" {
			req.Username = msg.From.FirstName
		}
	}

	var err error
	switch {
	case msg.Document != nil:
		err = b.handleUpload(ctx, chatID, msg.Document.FileID, msg.Document.FileName, int64(msg.Document.FileSize))
	case len(msg.Photo) > 0:
		// Telegram lists photo sizes ascending; the last one is the original.
		photo := msg.Photo[len(msg.Photo)-1]
		err = b.handleUpload(ctx, chatID, photo.FileID, "photo_"+photo.FileUniqueID+".jpg", int64(photo.FileSize))
	case msg.Text != "":
		err = b.commands.HandleText(ctx, msg.Text, req, b.deliverTo(chatID))
	default:
		return
	}

	if err != nil {
		b.reportError(chatID, err)
	}
}

func (b *Bot) handleUpload(ctx context.Context, chatID int64, fileID, name string, size int64) error {
	receipt, err := b.uploads.Accept(ctx, service.Upload{
		ConversationID: conversationID(chatID),
		FileName:       name,
		Size:           size,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return b.download(ctx, fileID)
		},
	})
	if err != nil {
		return err
	}
	return b.sendText(chatID, dispatch.ReceiptMessage(receipt))
}

func (b *Bot) download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (b *Bot) deliverTo(chatID int64) domain.Delivery {
	return func(ctx context.Context, result *domain.OperationResult) error {
		if result.Summary != "" {
			if err := b.sendText(chatID, result.Summary); err != nil {
				return err
			}
		}
		for _, file := range result.Files {
			if err := b.sendFile(chatID, file); err != nil {
				return err
			}
		}
		return nil
	}
}

func (b *Bot) sendFile(chatID int64, file domain.ResultFile) error {
	if file.Kind == domain.ResultImage {
		err := b.sendUpload(file, func(data tgbotapi.RequestFileData) tgbotapi.Chattable {
			photo := tgbotapi.NewPhoto(chatID, data)
			photo.Caption = file.Caption
			return photo
		})
		if err == nil {
			return nil
		}
		// Photos above Telegram's photo limit are still accepted as documents.
		b.logger.Warn("Photo upload rejected, sending as document", "chat_id", chatID, "error", err.Error())
	}

	err := b.sendUpload(file, func(data tgbotapi.RequestFileData) tgbotapi.Chattable {
		doc := tgbotapi.NewDocument(chatID, data)
		doc.Caption = file.Caption
		return doc
	})
	if err != nil {
		b.logger.Error("Failed to send file", err, "chat_id", chatID, "name", file.Name)
		return apperrors.NewResourceError("Failed to send the result", err)
	}
	return nil
}

// sendUpload streams file under its result name rather than its scratch name.
func (b *Bot) sendUpload(file domain.ResultFile, build func(tgbotapi.RequestFileData) tgbotapi.Chattable) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = b.api.Send(build(tgbotapi.FileReader{Name: file.Name, Reader: f}))
	return err
}

func (b *Bot) sendText(chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("Failed to send message", err, "chat_id", chatID)
		return err
	}
	return nil
}

// reportError tells the user what went wrong. Cancelled operations stay
// silent since /cancel already answered.
func (b *Bot) reportError(chatID int64, err error) {
	if apperrors.IsType(err, apperrors.ErrorTypeCancelled) {
		return
	}
	_ = b.sendText(chatID, apperrors.UserMessage(err))
}

func conversationID(chatID int64) domain.ConversationID {
	return domain.ConversationID(strconv.FormatInt(chatID, 10))
}
