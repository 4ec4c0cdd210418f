package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdHistory = "history"
	cmdClear   = "clear"

	cbClear = "clear:yes"
	cbNoop  = "noop:0"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	b.log.Info("callback",
		"data", cb.Data,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch cb.Data {
	case cbClear:
		b.clearHistory(ctx, chatID)
	case cmdHistory:
		b.handleHistory(ctx, chatID, "")
	}
}
