package templates

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reddit_responder/internal/model"
)

func newTestCatalog(t *testing.T, defaults []model.Template) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithDefaults(path, defaults, log), path
}

func TestSeedsDefaults(t *testing.T) {
	c, path := newTestCatalog(t, DefaultTemplates)

	got, err := c.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(DefaultTemplates, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected catalog file to be written: %v", err)
	}

	// A second catalog over the same file reads back what was written.
	again := NewWithDefaults(path, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err = again.List()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(DefaultTemplates, got); diff != "" {
		t.Errorf("reloaded List() mismatch (-want +got):\n%s", diff)
	}
}

func TestKeepsFileOrder(t *testing.T) {
	c, path := newTestCatalog(t, nil)
	content := `Zeta:
  description: last alphabetically
  keywords: [z]
  body: zeta body
Alpha:
  description: first alphabetically
  keywords:
    - a
    - " A "
    - ""
  body: |
    line one
    line two
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := c.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []model.Template{
		{Name: "Zeta", Description: "last alphabetically", Keywords: []string{"z"}, Body: "zeta body"},
		{Name: "Alpha", Description: "first alphabetically", Keywords: []string{"a"}, Body: "line one\nline two\n"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalogEdits(t *testing.T) {
	c, _ := newTestCatalog(t, []model.Template{
		{Name: "A", Description: "a", Keywords: []string{"x"}, Body: "body a"},
	})

	if err := c.Add(model.Template{Name: "B", Keywords: []string{"y", "Y", " z "}, Body: "body b"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Update("A", []string{"p", "q"}, "new a"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.SetDescription("B", "bee"); err != nil {
		t.Fatalf("set description: %v", err)
	}

	got, err := c.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []model.Template{
		{Name: "A", Description: "a", Keywords: []string{"p", "q"}, Body: "new a"},
		{Name: "B", Description: "bee", Keywords: []string{"y", "z"}, Body: "body b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	kws, err := c.AllKeywords()
	if err != nil {
		t.Fatalf("all keywords: %v", err)
	}
	if diff := cmp.Diff([]string{"p", "q", "y", "z"}, kws); diff != "" {
		t.Errorf("AllKeywords() mismatch (-want +got):\n%s", diff)
	}

	if err := c.Remove("A"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := c.Get("A"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("Get after remove: got %v, want ErrUnknownTemplate", err)
	}
}

func TestAddDefaultsDescription(t *testing.T) {
	c, _ := newTestCatalog(t, nil)
	if err := c.Add(model.Template{Name: "Custom", Body: "hi"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := c.Get("Custom")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "Custom template: Custom" {
		t.Errorf("description = %q", got.Description)
	}
}

func TestCatalogErrors(t *testing.T) {
	tests := []struct {
		name    string
		op      func(c *Catalog) error
		wantErr error
	}{
		{name: "add duplicate", op: func(c *Catalog) error { return c.Add(model.Template{Name: "A"}) }, wantErr: ErrTemplateExists},
		{name: "add blank name", op: func(c *Catalog) error { return c.Add(model.Template{Name: "  "}) }, wantErr: ErrInvalidName},
		{name: "update unknown", op: func(c *Catalog) error { return c.Update("Nope", nil, "") }, wantErr: ErrUnknownTemplate},
		{name: "body unknown", op: func(c *Catalog) error { return c.SetBody("Nope", "x") }, wantErr: ErrUnknownTemplate},
		{name: "remove unknown", op: func(c *Catalog) error { return c.Remove("Nope") }, wantErr: ErrUnknownTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, path := newTestCatalog(t, []model.Template{{Name: "A", Keywords: []string{"x"}, Body: "b"}})
			if _, err := c.List(); err != nil {
				t.Fatalf("seed: %v", err)
			}
			before, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			if err := tt.op(c); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}

			after, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if diff := cmp.Diff(string(before), string(after)); diff != "" {
				t.Errorf("failed edit changed the file (-before +after):\n%s", diff)
			}
		})
	}
}

func TestCorruptCatalogIsAnError(t *testing.T) {
	c, path := newTestCatalog(t, DefaultTemplates)
	if err := os.WriteFile(path, []byte("- just\n- a list\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := c.List(); err == nil {
		t.Fatal("expected error for non-mapping catalog")
	}
}

func TestCleanKeywords(t *testing.T) {
	got := CleanKeywords([]string{" Mutual Aid ", "mutual aid", "", "protest"})
	if diff := cmp.Diff([]string{"Mutual Aid", "protest"}, got); diff != "" {
		t.Errorf("CleanKeywords() mismatch (-want +got):\n%s", diff)
	}
}
