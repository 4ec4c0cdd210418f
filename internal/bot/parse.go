package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"reddit_responder/internal/registry"
	"reddit_responder/internal/storage"
	"reddit_responder/internal/templates"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

var errUsage = errors.New("invalid arguments")

// ParseHistoryArgs parses arguments for /history.
// Format: [n] [-s subreddit] [-t template name...]
func ParseHistoryArgs(args string) (storage.Query, error) {
	q := storage.Query{Limit: defaultHistoryLimit}
	parts := strings.Fields(args)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "-s":
			if i+1 >= len(parts) {
				return storage.Query{}, fmt.Errorf("-s needs a subreddit name")
			}
			i++
			q.Subreddit = registry.NormalizeSubreddit(parts[i])
		case "-t":
			j := i + 1
			for j < len(parts) && parts[j] != "-s" {
				j++
			}
			if j == i+1 {
				return storage.Query{}, fmt.Errorf("-t needs a template name")
			}
			q.Template = strings.Join(parts[i+1:j], " ")
			i = j - 1
		default:
			n, err := strconv.Atoi(parts[i])
			if err != nil || n < 1 || n > maxHistoryLimit {
				return storage.Query{}, fmt.Errorf("count must be between 1 and %d", maxHistoryLimit)
			}
			q.Limit = n
		}
	}
	return q, nil
}

// ParseSubredditArgs splits "<category> <subreddit>". The category name may
// contain spaces; the subreddit is the last word.
func ParseSubredditArgs(args string) (string, string, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return "", "", errUsage
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1], nil
}

// ParsePipeArgs splits args on "|" into exactly n trimmed parts. The first and
// last parts must be non-empty.
func ParsePipeArgs(args string, n int) ([]string, error) {
	parts := strings.SplitN(args, "|", n)
	if len(parts) != n {
		return nil, errUsage
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" || parts[n-1] == "" {
		return nil, errUsage
	}
	return parts, nil
}

// ParseKeywords splits a comma-separated keyword list.
func ParseKeywords(s string) []string {
	return templates.CleanKeywords(strings.Split(s, ","))
}
