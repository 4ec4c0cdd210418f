// Package bot implements the Telegram operator console and reply notifications.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reddit_responder/internal/config"
	"reddit_responder/internal/model"
	"reddit_responder/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Registry is the subset of registry.Registry the console edits.
type Registry interface {
	Categories() ([]model.Category, error)
	AddCategory(name string) error
	RemoveCategory(name string) error
	AddSubreddit(category, sub string) error
	RemoveSubreddit(category, sub string) error
	EnableCategory(name string) error
	DisableCategory(name string) error
	EffectiveSet() ([]string, error)
}

// Catalog is the subset of templates.Catalog the console edits.
type Catalog interface {
	List() ([]model.Template, error)
	Get(name string) (model.Template, error)
	Add(t model.Template) error
	SetKeywords(name string, keywords []string) error
	SetBody(name, body string) error
	Remove(name string) error
}

// StatusSource publishes the monitor status.
type StatusSource interface {
	Snapshot() model.Status
}

// Services are the collaborators the console reads and edits.
type Services struct {
	Registry Registry
	Catalog  Catalog
	History  storage.History
	Status   StatusSource
}

// Bot is the Telegram bot that handles operator commands and sends reply notifications.
type Bot struct {
	api telegramAPI
	svc Services
	cfg *config.Config
	log *slog.Logger
}

// New creates a Bot with the given Telegram token, services, and config.
func New(token string, svc Services, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api: api,
		svc: svc,
		cfg: cfg,
		log: log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		if update.CallbackQuery.From == nil || !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if update.Message.From == nil || !b.cfg.IsUserAllowed(update.Message.From.ID) {
		b.reply(update.Message.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, update.Message)
}

// NotifyReply reports a dispatched reply to the notification chat, if one is configured.
func (b *Bot) NotifyReply(_ context.Context, rec model.PostRecord) {
	if b.cfg.NotifyChatID == 0 {
		return
	}
	b.SendMessage(b.cfg.NotifyChatID, FormatNotification(rec))
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text))
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "status":
		b.handleStatus(chatID)
	case "stats":
		b.handleStats(ctx, chatID)
	case cmdHistory:
		b.handleHistory(ctx, chatID, args)
	case cmdClear:
		b.handleClear(chatID)
	case "test":
		b.handleTest(chatID, args)
	case "categories":
		b.handleCategories(chatID)
	case "addcat":
		b.handleAddCategory(chatID, args)
	case "rmcat":
		b.handleRemoveCategory(chatID, args)
	case "enable":
		b.handleSetEnabled(chatID, args, true)
	case "disable":
		b.handleSetEnabled(chatID, args, false)
	case "addsub":
		b.handleAddSubreddit(chatID, args)
	case "rmsub":
		b.handleRemoveSubreddit(chatID, args)
	case "templates":
		b.handleTemplates(chatID)
	case "template":
		b.handleTemplate(chatID, args)
	case "addtemplate":
		b.handleAddTemplate(chatID, args)
	case "keywords":
		b.handleKeywords(chatID, args)
	case "body":
		b.handleBody(chatID, args)
	case "rmtemplate":
		b.handleRemoveTemplate(chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
