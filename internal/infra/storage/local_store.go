// File: internal/infra/storage/local_store.go
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"ai-generation-queue/internal/domain/ports/adapter"
)

var _ adapter.ArtifactStore = (*LocalStore)(nil)

// LocalStore writes artifacts under a base directory and serves them back
// through a configured public base URL. Paths are kept relative and cleaned
// so a hostile job id cannot escape the directory.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Store(_ context.Context, data []byte, path string) (string, error) {
	rel := filepath.Clean("/" + path)[1:]
	if rel == "" || rel == "." {
		return "", fmt.Errorf("empty artifact path")
	}
	full := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create artifact subdir: %w", err)
	}

	// Write-then-rename keeps readers from ever seeing a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	escaped := make([]string, 0, 4)
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return s.baseURL + "/" + strings.Join(escaped, "/"), nil
}
