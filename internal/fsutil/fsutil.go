// Package fsutil holds file helpers shared by the file-backed stores.
package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic replaces path with data so that concurrent readers see
// either the old or the new content, never a partial write.
func WriteFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFileIfExists returns the file content, or nil and no error if the file
// does not exist.
func ReadFileIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Backup copies data to path + ".corrupt" before a store overwrites content it
// could not decode. An existing backup with the same content is left alone.
func Backup(path string, data []byte) (string, error) {
	backup := path + ".corrupt"
	existing, err := ReadFileIfExists(backup)
	if err == nil && existing != nil && bytes.Equal(existing, data) {
		return backup, nil
	}
	if err := WriteFileAtomic(backup, data); err != nil {
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	return backup, nil
}
