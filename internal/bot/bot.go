// Package bot is the Telegram front end: it keeps per-user history, routes
// messages through the chat router and delivers replies in chunks.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/apperr"
	"github.com/xaenox/tea-bot/internal/chat"
	"github.com/xaenox/tea-bot/internal/history"
	"github.com/xaenox/tea-bot/internal/models"
	"github.com/xaenox/tea-bot/internal/storage"
	"github.com/xaenox/tea-bot/internal/textsplit"
)

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler produces a reply for a message; *chat.Router implements it.
type Handler interface {
	Handle(ctx context.Context, message string, mode chat.Mode, history []models.Turn) (string, error)
}

type Options struct {
	SystemPrompt string
	AdminIDs     []int64
}

type Bot struct {
	api          telegramAPI
	handler      Handler
	history      *history.Store[int64]
	storage      storage.Storage
	systemPrompt string
	admins       map[int64]struct{}
	logger       *zap.Logger
	wg           sync.WaitGroup
	// userLocks holds a *sync.Mutex per user id; work touching a user's
	// history runs under it.
	userLocks sync.Map
}

func New(token string, handler Handler, hist *history.Store[int64], store storage.Storage, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Authorized on Telegram", zap.String("account", api.Self.UserName))
	return newBot(api, handler, hist, store, opts, logger), nil
}

func newBot(api telegramAPI, handler Handler, hist *history.Store[int64], store storage.Storage, opts Options, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Bot{
		api:          api,
		handler:      handler,
		history:      hist,
		storage:      store,
		systemPrompt: opts.SystemPrompt,
		admins:       admins,
		logger:       logger,
	}
}

// Start polls for updates until ctx is cancelled, handling each message in
// its own goroutine. It waits for in-flight handlers before returning.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(m *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(ctx, m)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if strings.TrimSpace(message.Text) == "" {
		b.sendMessage(message.Chat.ID, "I can only read text messages. Please describe your task in words.")
		return
	}
	b.respond(ctx, message, message.Text, chat.ModeNormal)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "role":
		b.handleRole(message)
	case "clear":
		b.handleClear(ctx, message)
	case "admin":
		b.handleAdmin(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	b.logger.Info("User started the bot",
		zap.Int64("user_id", message.From.ID),
		zap.String("username", message.From.UserName))

	welcome := `Hi! I help estimate IT tasks. 👋

Send me a description of a task and I will estimate its complexity and effort.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/role - Show how the assistant is instructed
/clear - Forget our conversation

Just send a text description of a task and I will help estimate it.

Example:
"Build a REST API for user management with authentication"`

	if b.isAdmin(message.From.ID) {
		help += "\n\n/admin <question> - Ask about usage statistics"
	}
	b.sendMessage(message.Chat.ID, help)
}

const roleHeader = "*System prompt:*\n\n"

func (b *Bot) handleRole(message *tgbotapi.Message) {
	// escaping can double the length of a chunk
	chunks := textsplit.Split(b.systemPrompt, (textsplit.TelegramLimit-len([]rune(roleHeader)))/2)
	for i, chunk := range chunks {
		text := escapeMarkdown(chunk)
		if i == 0 {
			text = roleHeader + text
		}
		msg := tgbotapi.NewMessage(message.Chat.ID, text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Error("Failed to send role message",
				zap.Error(err),
				zap.Int64("chat_id", message.Chat.ID))
			return
		}
	}
}

func (b *Bot) handleClear(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	unlock := b.lockUser(userID)
	defer unlock()

	b.history.Clear(userID)

	n, err := b.storage.ClearHistory(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to clear stored history",
			zap.Error(err),
			zap.Int64("user_id", userID))
		b.sendErrorMessage(message.Chat.ID, "I forgot our conversation, but could not clear the saved copy. Please try again.")
		return
	}

	b.logger.Info("Cleared history",
		zap.Int64("user_id", userID),
		zap.Int("messages", n))
	b.sendMessage(message.Chat.ID, "Conversation history cleared. Let's start fresh!")
}

func (b *Bot) handleAdmin(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message.From.ID) {
		b.logger.Warn("Rejected admin command",
			zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, "This command is available to administrators only.")
		return
	}

	query := strings.TrimSpace(message.CommandArguments())
	if query == "" {
		query = "help"
	}
	b.respond(ctx, message, query, chat.ModeAdmin)
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

// lockUser serializes history work for one user and returns the unlock func.
func (b *Bot) lockUser(userID int64) func() {
	v, _ := b.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// loadHistory returns the user's in-memory history, restoring it from the log
// after a restart.
func (b *Bot) loadHistory(ctx context.Context, userID int64) []models.Turn {
	if turns := b.history.Get(userID); len(turns) > 0 {
		return turns
	}
	stored, err := b.storage.GetHistory(ctx, userID, b.history.MaxMessages())
	if err != nil {
		b.logger.Warn("Failed to load stored history",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return nil
	}
	if b.history.Restore(userID, stored) {
		b.logger.Debug("Restored history from log",
			zap.Int64("user_id", userID),
			zap.Int("turns", len(stored)))
	}
	return b.history.Get(userID)
}

func (b *Bot) respond(ctx context.Context, message *tgbotapi.Message, text string, mode chat.Mode) {
	userID := message.From.ID
	chatID := message.Chat.ID

	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("Failed to send typing action", zap.Error(err))
	}

	var turns []models.Turn
	if mode == chat.ModeNormal {
		unlock := b.lockUser(userID)
		defer unlock()
		turns = b.loadHistory(ctx, userID)
	}

	reply, err := b.handler.Handle(ctx, text, mode, turns)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		b.logger.Error("Failed to handle message",
			zap.Error(err),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.String("class", apperr.ClassOf(err).String()),
			zap.Int64("user_id", userID))
		b.sendErrorMessage(chatID, apperr.UserMessage(err))
		return
	}

	// admin answers are not part of the estimation conversation
	if mode == chat.ModeNormal {
		b.history.AppendExchange(userID, text, reply)
		if err := b.storage.SaveExchange(ctx, userID, message.From.UserName, text, reply); err != nil {
			b.logger.Error("Failed to save exchange",
				zap.Error(err),
				zap.Int64("user_id", userID))
		}
	}

	b.sendChunks(chatID, reply)
}

// escapeMarkdown escapes the characters MarkdownV2 treats as markup.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendChunks(chatID int64, text string) {
	for _, chunk := range textsplit.Split(text, textsplit.TelegramLimit) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			b.logger.Error("Failed to send message",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			return
		}
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
