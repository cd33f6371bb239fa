// Package file implements the JSON data-file storage adapter.
//
// The data file is shared with other mindwtr clients and may be
// replaced mid-write by external sync tools (Syncthing and friends),
// so reads are retried with a relaxed parser and writes go through a
// temp file, a rename, and a best-effort .bak copy of the previous
// contents.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/storage"
)

const (
	readAttempts = 5
	readBackoff  = 120 * time.Millisecond
)

// Adapter persists the document as pretty-printed JSON at a fixed
// path, with <path>.bak holding the previous good contents.
type Adapter struct {
	path string
}

var _ storage.Adapter = (*Adapter)(nil)

// New returns an adapter persisting to path. The parent directory is
// created on first save.
func New(path string) *Adapter {
	return &Adapter{path: path}
}

// Path returns the data file path.
func (a *Adapter) Path() string { return a.path }

// BackupPath returns the path of the rolling backup copy.
func (a *Adapter) BackupPath() string { return a.path + ".bak" }

// Load implements storage.Adapter. A missing file yields an empty
// document. An unreadable file falls back to the backup copy before
// reporting an error.
func (a *Adapter) Load(ctx context.Context) (*model.Document, error) {
	if _, err := os.Stat(a.path); os.IsNotExist(err) {
		return model.NewDocument(), nil
	}

	doc, err := readWithRetries(ctx, a.path, readAttempts)
	if err == nil {
		return doc, nil
	}
	if _, statErr := os.Stat(a.BackupPath()); statErr == nil {
		if doc, bakErr := readWithRetries(ctx, a.BackupPath(), 2); bakErr == nil {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("failed to read data file %s: %w", a.path, err)
}

// Save implements storage.Adapter using an atomic temp-file rename.
func (a *Adapter) Save(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := model.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	// Best-effort backup of the previous good contents.
	if _, err := os.Stat(a.path); err == nil {
		_ = copyFile(a.path, a.BackupPath())
	}

	tmp := a.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(a.path); err == nil {
			if err := os.Remove(a.path); err != nil {
				return fmt.Errorf("failed to replace data file: %w", err)
			}
		}
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// readWithRetries reads and parses the file, backing off between
// attempts so an external writer can finish replacing it.
func readWithRetries(ctx context.Context, path string, attempts int) (*model.Document, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err == nil {
			doc, parseErr := parseRelaxed(data)
			if parseErr == nil {
				return doc, nil
			}
			lastErr = parseErr
		} else {
			lastErr = err
		}

		if attempt+1 < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(readBackoff + time.Duration(attempt)*80*time.Millisecond):
			}
		}
	}
	return nil, lastErr
}

// parseRelaxed tolerates the artifacts of mid-write file replacement:
// a BOM, trailing NULs, and trailing junk after the first JSON value.
func parseRelaxed(data []byte) (*model.Document, error) {
	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.TrimRight(strings.TrimSpace(text), "\x00")
	if text == "" {
		return model.NewDocument(), nil
	}

	if doc, err := model.DecodeDocument([]byte(text)); err == nil {
		return doc, nil
	}

	// Lenient pass: decode the first JSON value starting at the first
	// opener and ignore any trailing bytes.
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		start = 0
	}
	var first json.RawMessage
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&first); err != nil {
		return nil, fmt.Errorf("no parseable JSON document: %w", err)
	}
	return model.DecodeDocument(first)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
