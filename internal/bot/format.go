package bot

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"reddit_responder/internal/matcher"
	"reddit_responder/internal/model"
)

const (
	statusEnabled  = "on"
	statusDisabled = "off"

	timeFormat = "2006-01-02 15:04 UTC"

	// maxMessageLen stays under Telegram's 4096 character limit.
	maxMessageLen = 4000
)

// FormatNotification formats a dispatched reply as a Telegram notification message.
func FormatNotification(rec model.PostRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replied in r/%s with \"%s\"\n\n", rec.Subreddit, rec.TemplateUsed)
	b.WriteString(rec.Title)
	if rec.ReplyURL != "" {
		b.WriteString("\n\n")
		b.WriteString(rec.ReplyURL)
	}
	return b.String()
}

// FormatStatus formats the monitor status.
func FormatStatus(st model.Status, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", st.State)
	fmt.Fprintf(&b, "Last action: %s\n", st.LastAction)
	if st.SessionStart != nil {
		fmt.Fprintf(&b, "Session start: %s\n", st.SessionStart.UTC().Format(timeFormat))
		if st.Running() {
			fmt.Fprintf(&b, "Runtime: %s\n", now.Sub(*st.SessionStart).Truncate(time.Second))
		}
	}
	if len(st.Subreddits) > 0 {
		fmt.Fprintf(&b, "Monitoring %d subreddits\n", len(st.Subreddits))
	}
	c := st.Counters
	fmt.Fprintf(&b, "\nSeen %d, matched %d, replied %d\n", c.Seen, c.Matched, c.Replied)
	fmt.Fprintf(&b, "Skipped %d, failed %d, rate limited %d", c.Skipped, c.Failed, c.RateLimited)
	return b.String()
}

// FormatStats formats reply history totals.
func FormatStats(st model.Stats) string {
	if st.Total == 0 {
		return "No replies recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total replies: %d\n", st.Total)
	if st.First != nil && st.Last != nil {
		fmt.Fprintf(&b, "From %s to %s\n", st.First.UTC().Format(timeFormat), st.Last.UTC().Format(timeFormat))
	}
	b.WriteString("\nBy subreddit:\n")
	for _, k := range byCount(st.BySubreddit) {
		fmt.Fprintf(&b, "  r/%s: %d\n", k, st.BySubreddit[k])
	}
	b.WriteString("\nBy template:\n")
	for _, k := range byCount(st.ByTemplate) {
		fmt.Fprintf(&b, "  %s: %d\n", k, st.ByTemplate[k])
	}
	return b.String()
}

// FormatHistory formats history records, newest first.
func FormatHistory(recs []model.PostRecord) string {
	if len(recs) == 0 {
		return "No matching replies."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d replies:\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s r/%s [%s]\n%s\n", r.Timestamp.UTC().Format(timeFormat), r.Subreddit, r.TemplateUsed, r.Title)
		if r.ReplyURL != "" {
			fmt.Fprintf(&b, "%s\n", r.ReplyURL)
		}
	}
	return b.String()
}

// FormatCategories formats the subreddit registry.
func FormatCategories(cats []model.Category) string {
	if len(cats) == 0 {
		return "No categories yet. Use /addcat <name> to add one."
	}
	var b strings.Builder
	b.WriteString("Categories:\n")
	for _, c := range cats {
		status := statusEnabled
		if !c.Enabled {
			status = statusDisabled
		}
		fmt.Fprintf(&b, "\n%s [%s] (%d)\n", c.Name, status, len(c.Subreddits))
		if len(c.Subreddits) == 0 {
			b.WriteString("   no subreddits\n")
			continue
		}
		fmt.Fprintf(&b, "   r/%s\n", strings.Join(c.Subreddits, ", r/"))
	}
	return b.String()
}

// FormatTemplateList formats the catalog in order.
func FormatTemplateList(ts []model.Template) string {
	if len(ts) == 0 {
		return "No templates yet. Use /addtemplate to add one."
	}
	var b strings.Builder
	b.WriteString("Templates:\n")
	for i, t := range ts {
		fmt.Fprintf(&b, "\n%d. %s (%d keywords)\n", i+1, t.Name, len(t.Keywords))
		if t.Description != "" {
			fmt.Fprintf(&b, "   %s\n", t.Description)
		}
	}
	return b.String()
}

// FormatTemplate formats one template in full.
func FormatTemplate(t model.Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.Name)
	if t.Description != "" {
		fmt.Fprintf(&b, "%s\n", t.Description)
	}
	fmt.Fprintf(&b, "\nKeywords: %s\n", strings.Join(t.Keywords, ", "))
	fmt.Fprintf(&b, "\n%s", t.Body)
	return b.String()
}

// FormatMatch formats the result of running the matcher over text.
func FormatMatch(text string, ts []model.Template, name string, ok bool) string {
	if !ok {
		return "No template matches this text."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Selected template: %s\n", name)
	for _, t := range ts {
		hits := matcher.Hits(text, t)
		if len(hits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %d (%s)", t.Name, len(hits), strings.Join(hits, ", "))
	}
	return b.String()
}

func byCount(m map[string]int) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(m[b], m[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxMessageLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxMessageLen]) + "\n…"
}
