// Package registry manages the categorized list of monitored subreddits.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"reddit_responder/internal/fsutil"
	"reddit_responder/internal/model"
)

// Errors reported by registry mutations. A failed mutation leaves the file untouched.
var (
	ErrUnknownCategory    = errors.New("category does not exist")
	ErrCategoryExists     = errors.New("category already exists")
	ErrDuplicateSubreddit = errors.New("subreddit already in category")
	ErrNotMember          = errors.New("subreddit not in category")
	ErrAlreadyEnabled     = errors.New("category already enabled")
	ErrAlreadyDisabled    = errors.New("category already disabled")
	ErrInvalidName        = errors.New("name must not be empty")
)

// DefaultCategories seeds a registry file that does not exist yet.
var DefaultCategories = []model.Category{
	{Name: "Activism", Enabled: true, Subreddits: []string{"activism", "socialjustice", "organizing"}},
	{Name: "Mutual Aid", Enabled: true, Subreddits: []string{"mutualaid", "Anarchism"}},
	{Name: "Privacy", Enabled: true, Subreddits: []string{"privacy", "PrivacyGuides"}},
}

// Registry is a write-through view of the registry file. Every call reloads
// the file so edits made by other processes are picked up.
type Registry struct {
	path     string
	defaults []model.Category
	log      *slog.Logger
	mu       sync.Mutex
}

// New creates a Registry backed by path, seeded with DefaultCategories.
func New(path string, log *slog.Logger) *Registry {
	return NewWithDefaults(path, DefaultCategories, log)
}

// NewWithDefaults creates a Registry that seeds a missing file with defaults.
func NewWithDefaults(path string, defaults []model.Category, log *slog.Logger) *Registry {
	return &Registry{
		path:     path,
		defaults: cloneCategories(defaults),
		log:      log,
	}
}

// Categories returns all categories in file order.
func (r *Registry) Categories() ([]model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		return nil, err
	}
	return cloneCategories(f.categories), nil
}

// Category returns a single category by name.
func (r *Registry) Category(name string) (model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		return model.Category{}, err
	}
	i := f.index(name)
	if i < 0 {
		return model.Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return cloneCategories(f.categories[i : i+1])[0], nil
}

// AllSubreddits returns every subreddit in every category, enabled or not,
// de-duplicated in first-seen order.
func (r *Registry) AllSubreddits() ([]string, error) {
	cats, err := r.Categories()
	if err != nil {
		return nil, err
	}
	return union(cats, false), nil
}

// EffectiveSet returns the de-duplicated union of subreddits in enabled categories.
func (r *Registry) EffectiveSet() ([]string, error) {
	cats, err := r.Categories()
	if err != nil {
		return nil, err
	}
	return union(cats, true), nil
}

// AddCategory creates an empty, enabled category.
func (r *Registry) AddCategory(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	return r.mutate(func(f *file) error {
		if f.index(name) >= 0 {
			return fmt.Errorf("%w: %q", ErrCategoryExists, name)
		}
		f.categories = append(f.categories, model.Category{Name: name, Enabled: true})
		return nil
	}, "added category", "category", name)
}

// RemoveCategory deletes a category and its membership list.
func (r *Registry) RemoveCategory(name string) error {
	return r.mutate(func(f *file) error {
		i := f.index(name)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, name)
		}
		f.categories = slices.Delete(f.categories, i, i+1)
		return nil
	}, "removed category", "category", name)
}

// AddSubreddit adds sub to category. Adding a subreddit already in the
// category is reported as ErrDuplicateSubreddit.
func (r *Registry) AddSubreddit(category, sub string) error {
	sub = NormalizeSubreddit(sub)
	if sub == "" {
		return ErrInvalidName
	}
	return r.mutate(func(f *file) error {
		i := f.index(category)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		if memberIndex(f.categories[i].Subreddits, sub) >= 0 {
			return fmt.Errorf("%w: %q in %q", ErrDuplicateSubreddit, sub, category)
		}
		f.categories[i].Subreddits = append(f.categories[i].Subreddits, sub)
		return nil
	}, "added subreddit", "category", category, "subreddit", sub)
}

// RemoveSubreddit removes sub from category.
func (r *Registry) RemoveSubreddit(category, sub string) error {
	sub = NormalizeSubreddit(sub)
	return r.mutate(func(f *file) error {
		i := f.index(category)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		j := memberIndex(f.categories[i].Subreddits, sub)
		if j < 0 {
			return fmt.Errorf("%w: %q in %q", ErrNotMember, sub, category)
		}
		f.categories[i].Subreddits = slices.Delete(f.categories[i].Subreddits, j, j+1)
		return nil
	}, "removed subreddit", "category", category, "subreddit", sub)
}

// EnableCategory includes a category's subreddits in the effective set.
func (r *Registry) EnableCategory(name string) error {
	return r.setEnabled(name, true)
}

// DisableCategory excludes a category's subreddits from the effective set.
func (r *Registry) DisableCategory(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	msg := "disabled category"
	if enabled {
		msg = "enabled category"
	}
	return r.mutate(func(f *file) error {
		i := f.index(name)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, name)
		}
		if f.categories[i].Enabled == enabled {
			if enabled {
				return fmt.Errorf("%w: %q", ErrAlreadyEnabled, name)
			}
			return fmt.Errorf("%w: %q", ErrAlreadyDisabled, name)
		}
		f.categories[i].Enabled = enabled
		return nil
	}, msg, "category", name)
}

// mutate runs fn against a fresh load and persists the result only if fn succeeds.
func (r *Registry) mutate(fn func(*file) error, msg string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		return err
	}
	if f.readErr != nil {
		return fmt.Errorf("registry file unreadable, not overwriting it: %w", f.readErr)
	}
	if err := fn(f); err != nil {
		r.log.Warn("registry change rejected", "error", err)
		return err
	}
	if err := r.save(f); err != nil {
		return err
	}
	r.log.Info(msg, args...)
	return nil
}

func (r *Registry) load() (*file, error) {
	data, err := fsutil.ReadFileIfExists(r.path)
	if err != nil {
		r.log.Error("registry file unreadable, starting from empty registry", "path", r.path, "error", err)
		return &file{readErr: err}, nil
	}
	if data == nil {
		f := &file{categories: cloneCategories(r.defaults)}
		if err := r.save(f); err != nil {
			return nil, fmt.Errorf("initialize registry: %w", err)
		}
		r.log.Info("created registry file", "path", r.path, "categories", len(f.categories))
		return f, nil
	}

	var f file
	if err := f.UnmarshalJSON(data); err != nil {
		r.log.Error("registry file corrupt, starting from empty registry", "path", r.path, "error", err)
		backup, berr := fsutil.Backup(r.path, data)
		if berr != nil {
			return nil, fmt.Errorf("registry file corrupt and not backed up: %w", berr)
		}
		r.log.Error("corrupt registry copied aside, the next change overwrites the original", "backup", backup)
		return &file{}, nil
	}
	return &f, nil
}

func (r *Registry) save(f *file) error {
	data, err := f.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := fsutil.WriteFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// NormalizeSubreddit trims whitespace and any leading "r/" or "/r/".
func NormalizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if len(name) >= 2 && strings.EqualFold(name[:2], "r/") {
		name = name[2:]
	}
	return strings.TrimSpace(name)
}

func memberIndex(subs []string, sub string) int {
	return slices.IndexFunc(subs, func(s string) bool { return strings.EqualFold(s, sub) })
}

func union(cats []model.Category, enabledOnly bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cats {
		if enabledOnly && !c.Enabled {
			continue
		}
		for _, s := range c.Subreddits {
			key := strings.ToLower(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func cloneCategories(in []model.Category) []model.Category {
	if in == nil {
		return nil
	}
	out := make([]model.Category, len(in))
	for i, c := range in {
		out[i] = model.Category{
			Name:       c.Name,
			Enabled:    c.Enabled,
			Subreddits: slices.Clone(c.Subreddits),
		}
	}
	return out
}
