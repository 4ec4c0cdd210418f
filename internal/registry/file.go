package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"reddit_responder/internal/model"
)

// file is the on-disk registry:
//
//	{"categories": {"name": ["sub", ...]}, "enabled_categories": ["name", ...]}
//
// Category order in the JSON object is kept.
type file struct {
	categories []model.Category
	// readErr is set when the file exists but could not be read. Reads see
	// an empty registry; mutations refuse to replace the file.
	readErr error
}

func (f *file) index(name string) int {
	return slices.IndexFunc(f.categories, func(c model.Category) bool { return c.Name == name })
}

type rawFile struct {
	Categories json.RawMessage `json:"categories"`
	Enabled    []string        `json:"enabled_categories"`
}

// MarshalJSON writes categories in order, followed by the enabled list.
func (f *file) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"categories":{`)
	enabled := []string{}
	for i, c := range f.categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		subs := c.Subreddits
		if subs == nil {
			subs = []string{}
		}
		val, err := json.Marshal(subs)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		if c.Enabled {
			enabled = append(enabled, c.Name)
		}
	}
	buf.WriteString(`},"enabled_categories":`)
	val, err := json.Marshal(enabled)
	if err != nil {
		return nil, err
	}
	buf.Write(val)
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// UnmarshalJSON reads the registry, keeping category order.
func (f *file) UnmarshalJSON(data []byte) error {
	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode registry: %w", err)
	}

	cats, err := decodeOrderedCategories(raw.Categories)
	if err != nil {
		return err
	}
	for i := range cats {
		cats[i].Enabled = slices.Contains(raw.Enabled, cats[i].Name)
	}
	f.categories = cats
	return nil
}

func decodeOrderedCategories(raw json.RawMessage) ([]model.Category, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode categories: expected object, got %v", tok)
	}

	var cats []model.Category
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode category name: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode category name: unexpected %v", tok)
		}
		if slices.ContainsFunc(cats, func(c model.Category) bool { return c.Name == name }) {
			return nil, fmt.Errorf("decode categories: %w: %q", ErrCategoryExists, name)
		}
		var subs []string
		if err := dec.Decode(&subs); err != nil {
			return nil, fmt.Errorf("decode category %q: %w", name, err)
		}
		cats = append(cats, model.Category{Name: name, Subreddits: subs})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return cats, nil
}
