package bot

import (
	"fmt"

	"reddit_responder/internal/model"
	"reddit_responder/internal/registry"
)

func (b *Bot) handleCategories(chatID int64) {
	cats, err := b.svc.Registry.Categories()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatCategories(cats))
}

func (b *Bot) handleAddCategory(chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /addcat <name>")
		return
	}
	if err := b.svc.Registry.AddCategory(args); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Category \"%s\" added and enabled.", args))
}

func (b *Bot) handleRemoveCategory(chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /rmcat <name>")
		return
	}
	if err := b.svc.Registry.RemoveCategory(args); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Category \"%s\" removed.", args))
}

func (b *Bot) handleSetEnabled(chatID int64, args string, enabled bool) {
	verb, fn := "disable", b.svc.Registry.DisableCategory
	if enabled {
		verb, fn = "enable", b.svc.Registry.EnableCategory
	}
	if args == "" {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <name>", verb))
		return
	}
	if err := fn(args); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	subs, err := b.svc.Registry.EffectiveSet()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Category \"%s\" %sd.", args, verb))
		return
	}
	b.reply(chatID, fmt.Sprintf("Category \"%s\" %sd. %d subreddits will be monitored.", args, verb, len(subs)))
}

func (b *Bot) handleAddSubreddit(chatID int64, args string) {
	category, sub, err := ParseSubredditArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /addsub <category> <subreddit>")
		return
	}
	sub = registry.NormalizeSubreddit(sub)
	if err := b.svc.Registry.AddSubreddit(category, sub); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Added r/%s to \"%s\".", sub, category))
}

func (b *Bot) handleRemoveSubreddit(chatID int64, args string) {
	category, sub, err := ParseSubredditArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmsub <category> <subreddit>")
		return
	}
	sub = registry.NormalizeSubreddit(sub)
	if err := b.svc.Registry.RemoveSubreddit(category, sub); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Removed r/%s from \"%s\".", sub, category))
}

func (b *Bot) handleTemplates(chatID int64) {
	ts, err := b.svc.Catalog.List()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatTemplateList(ts))
}

func (b *Bot) handleTemplate(chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /template <name>")
		return
	}
	t, err := b.svc.Catalog.Get(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatTemplate(t))
}

func (b *Bot) handleAddTemplate(chatID int64, args string) {
	parts, err := ParsePipeArgs(args, 3)
	if err != nil {
		b.reply(chatID, "Usage: /addtemplate <name> | <kw1, kw2> | <body>")
		return
	}
	t := model.Template{
		Name:     parts[0],
		Keywords: ParseKeywords(parts[1]),
		Body:     parts[2],
	}
	if err := b.svc.Catalog.Add(t); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Template \"%s\" added with %d keywords.", t.Name, len(t.Keywords)))
}

func (b *Bot) handleKeywords(chatID int64, args string) {
	parts, err := ParsePipeArgs(args, 2)
	if err != nil {
		b.reply(chatID, "Usage: /keywords <name> | <kw1, kw2>")
		return
	}
	kws := ParseKeywords(parts[1])
	if err := b.svc.Catalog.SetKeywords(parts[0], kws); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Template \"%s\" keywords updated.", parts[0]))
}

func (b *Bot) handleBody(chatID int64, args string) {
	parts, err := ParsePipeArgs(args, 2)
	if err != nil {
		b.reply(chatID, "Usage: /body <name> | <body>")
		return
	}
	if err := b.svc.Catalog.SetBody(parts[0], parts[1]); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Template \"%s\" body updated.", parts[0]))
}

func (b *Bot) handleRemoveTemplate(chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /rmtemplate <name>")
		return
	}
	if err := b.svc.Catalog.Remove(args); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Template \"%s\" removed.", args))
}
