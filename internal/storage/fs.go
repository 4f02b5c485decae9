package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore implements BlobStore on the local filesystem. Writes go through a
// temp file plus rename so a crashed upload never leaves a torn artifact.
type FSStore struct {
	baseDir string
	baseURL string
}

func NewFSStore(baseDir, baseURL string) (*FSStore, error) {
	dir := strings.TrimSpace(baseDir)
	if dir == "" {
		return nil, fmt.Errorf("storage base directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
	}
	return &FSStore{baseDir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	key = strings.TrimLeft(filepath.ToSlash(key), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := writeBytes(path, data); err != nil {
		return "", err
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}
	return "file://" + path, nil
}

func writeBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".ytt-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
