package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reddit_responder/internal/matcher"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to the subreddit responder console!

The responder watches the enabled subreddit categories and answers
new posts that match a reply template.

Quick start:
1. /categories — see what is monitored
2. /templates — see the reply templates
3. /test <text> — check which template a post would get

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Monitoring:
/status — monitor state and session counters
/stats — reply history totals
/history [n] [-s sub] [-t template] — recent replies (default 10)
/clear — delete the reply history
/test <text> — run the matcher against text

Subreddits:
/categories — list categories
/addcat <name> — add a category
/rmcat <name> — remove a category
/enable <name> — enable a category
/disable <name> — disable a category
/addsub <category> <subreddit> — add a subreddit
/rmsub <category> <subreddit> — remove a subreddit

Templates:
/templates — list templates
/template <name> — show a template
/addtemplate <name> | <kw1, kw2> | <body>
/keywords <name> | <kw1, kw2> — replace keywords
/body <name> | <body> — replace the reply body
/rmtemplate <name> — remove a template

Edits take effect when the next monitoring session starts.`)
}

func (b *Bot) handleStatus(chatID int64) {
	b.reply(chatID, FormatStatus(b.svc.Status.Snapshot(), time.Now()))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	st, err := b.svc.History.Stats(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	msg := tgbotapi.NewMessage(chatID, FormatStats(st))
	if st.Total > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Recent replies", cmdHistory),
			),
		)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send stats", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, args string) {
	q, err := ParseHistoryArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	recs, err := b.svc.History.Query(ctx, q)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatHistory(recs))
}

func (b *Bot) handleClear(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Delete the entire reply history? This cannot be undone.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, clear", cbClear),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbNoop),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send clear confirmation", "error", err)
	}
}

func (b *Bot) clearHistory(ctx context.Context, chatID int64) {
	if err := b.svc.History.Clear(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Error clearing history: %v", err))
		return
	}
	b.log.Info("history cleared from console", "chat_id", chatID)
	b.reply(chatID, "Reply history cleared.")
}

func (b *Bot) handleTest(chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /test <text>")
		return
	}
	ts, err := b.svc.Catalog.List()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	name, ok := matcher.Match(args, ts)
	b.reply(chatID, FormatMatch(args, ts, name, ok))
}
