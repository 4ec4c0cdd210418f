// Package templates manages the catalog of keyword-triggered reply templates.
package templates

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"reddit_responder/internal/fsutil"
	"reddit_responder/internal/model"
)

// Errors reported by catalog operations.
var (
	ErrTemplateExists  = errors.New("template already exists")
	ErrUnknownTemplate = errors.New("template does not exist")
	ErrInvalidName     = errors.New("template name must not be empty")
)

// Catalog is a write-through view of the catalog file. Template order in the
// file is the order the matcher breaks ties with.
type Catalog struct {
	path     string
	defaults []model.Template
	log      *slog.Logger
	mu       sync.Mutex
}

// New creates a Catalog backed by path, seeded with DefaultTemplates.
func New(path string, log *slog.Logger) *Catalog {
	return NewWithDefaults(path, DefaultTemplates, log)
}

// NewWithDefaults creates a Catalog that seeds a missing file with defaults.
func NewWithDefaults(path string, defaults []model.Template, log *slog.Logger) *Catalog {
	return &Catalog{
		path:     path,
		defaults: cloneTemplates(defaults),
		log:      log,
	}
}

// List returns all templates in catalog order.
func (c *Catalog) List() ([]model.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts, err := c.load()
	if err != nil {
		return nil, err
	}
	return cloneTemplates(ts), nil
}

// Get returns a single template by name.
func (c *Catalog) Get(name string) (model.Template, error) {
	ts, err := c.List()
	if err != nil {
		return model.Template{}, err
	}
	i := index(ts, name)
	if i < 0 {
		return model.Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return ts[i], nil
}

// AllKeywords returns every keyword of every template, de-duplicated
// case-insensitively in catalog order.
func (c *Catalog) AllKeywords() ([]string, error) {
	ts, err := c.List()
	if err != nil {
		return nil, err
	}
	var all []string
	for _, t := range ts {
		all = append(all, t.Keywords...)
	}
	return CleanKeywords(all), nil
}

// Add appends a new template to the end of the catalog.
func (c *Catalog) Add(t model.Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return ErrInvalidName
	}
	t.Keywords = CleanKeywords(t.Keywords)
	if t.Description == "" {
		t.Description = "Custom template: " + t.Name
	}
	return c.mutate(func(ts []model.Template) ([]model.Template, error) {
		if index(ts, t.Name) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrTemplateExists, t.Name)
		}
		return append(ts, t), nil
	}, "added template", "template", t.Name)
}

// Update replaces the keywords and body of an existing template.
func (c *Catalog) Update(name string, keywords []string, body string) error {
	keywords = CleanKeywords(keywords)
	return c.edit(name, func(t *model.Template) {
		t.Keywords = keywords
		t.Body = body
	}, "updated template")
}

// SetKeywords replaces only the keywords of an existing template.
func (c *Catalog) SetKeywords(name string, keywords []string) error {
	keywords = CleanKeywords(keywords)
	return c.edit(name, func(t *model.Template) { t.Keywords = keywords }, "updated template keywords")
}

// SetBody replaces only the body of an existing template.
func (c *Catalog) SetBody(name, body string) error {
	return c.edit(name, func(t *model.Template) { t.Body = body }, "updated template body")
}

// SetDescription replaces the description of an existing template.
func (c *Catalog) SetDescription(name, description string) error {
	return c.edit(name, func(t *model.Template) { t.Description = description }, "updated template description")
}

// Remove deletes a template.
func (c *Catalog) Remove(name string) error {
	return c.mutate(func(ts []model.Template) ([]model.Template, error) {
		i := index(ts, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
		}
		return slices.Delete(ts, i, i+1), nil
	}, "removed template", "template", name)
}

func (c *Catalog) edit(name string, fn func(*model.Template), msg string) error {
	return c.mutate(func(ts []model.Template) ([]model.Template, error) {
		i := index(ts, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
		}
		fn(&ts[i])
		return ts, nil
	}, msg, "template", name)
}

func (c *Catalog) mutate(fn func([]model.Template) ([]model.Template, error), msg string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts, err := c.load()
	if err != nil {
		return err
	}
	ts, err = fn(ts)
	if err != nil {
		c.log.Warn("catalog change rejected", "error", err)
		return err
	}
	if err := c.save(ts); err != nil {
		return err
	}
	c.log.Info(msg, args...)
	return nil
}

func (c *Catalog) load() ([]model.Template, error) {
	data, err := fsutil.ReadFileIfExists(c.path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if data == nil {
		ts := cloneTemplates(c.defaults)
		if err := c.save(ts); err != nil {
			return nil, fmt.Errorf("initialize catalog: %w", err)
		}
		c.log.Info("created template catalog", "path", c.path, "templates", len(ts))
		return ts, nil
	}

	ts, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", c.path, err)
	}
	return ts, nil
}

func (c *Catalog) save(ts []model.Template) error {
	data, err := encode(ts)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := fsutil.WriteFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

// CleanKeywords trims keywords and drops blanks and case-insensitive duplicates.
func CleanKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := []string{}
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

// entry is one template as stored in the YAML file, keyed by name.
type entry struct {
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Body        string   `yaml:"body"`
}

func decode(data []byte) ([]model.Template, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of template names, got line %d", root.Line)
	}

	ts := make([]model.Template, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		if index(ts, name) >= 0 {
			return nil, fmt.Errorf("%w: %q (line %d)", ErrTemplateExists, name, root.Content[i].Line)
		}
		var e entry
		if err := root.Content[i+1].Decode(&e); err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		ts = append(ts, model.Template{
			Name:        name,
			Description: e.Description,
			Keywords:    CleanKeywords(e.Keywords),
			Body:        e.Body,
		})
	}
	return ts, nil
}

func encode(ts []model.Template) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, t := range ts {
		var val yaml.Node
		keywords := t.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		if err := val.Encode(entry{Description: t.Description, Keywords: keywords, Body: t.Body}); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
		for i := 0; i+1 < len(val.Content); i += 2 {
			if val.Content[i].Value == "body" && strings.Contains(t.Body, "\n") {
				val.Content[i+1].Style = yaml.LiteralStyle
			}
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: t.Name}, &val)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return yaml.Marshal(doc)
}

func index(ts []model.Template, name string) int {
	return slices.IndexFunc(ts, func(t model.Template) bool { return t.Name == name })
}

func cloneTemplates(in []model.Template) []model.Template {
	if in == nil {
		return nil
	}
	out := make([]model.Template, len(in))
	for i, t := range in {
		out[i] = t
		out[i].Keywords = slices.Clone(t.Keywords)
	}
	return out
}
