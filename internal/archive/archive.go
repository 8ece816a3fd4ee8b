// Package archive provides the optional raw-payload sink. The crawler
// archives raw API responses best-effort; a sink failure never aborts
// ingestion.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sink stores raw JSON blobs under hierarchical keys.
type Sink interface {
	Put(ctx context.Context, key string, v any) error
}

// DatePath formats the date segment used in archive keys,
// e.g. "github/org/repo/prs/2026/08/29/pr-42.json".
func DatePath(t time.Time) string {
	return t.UTC().Format("2006/01/02")
}

// Dir writes blobs to a local directory tree, one file per key.
type Dir struct {
	root string
}

// NewDir creates a directory-backed sink rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Put marshals v and writes it under key. The parent directories are
// created as needed.
func (d *Dir) Put(ctx context.Context, key string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive blob %s: %w", key, err)
	}
	path := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write archive blob %s: %w", key, err)
	}
	return nil
}

// Nop discards everything. Used when no archive bucket is configured.
type Nop struct{}

func (Nop) Put(ctx context.Context, key string, v any) error { return nil }
