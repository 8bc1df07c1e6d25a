package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemStore implements ObjectStore on the local filesystem
type FileSystemStore struct {
	rootDir string
}

// NewFileSystemStore creates a store rooted at rootDir, creating it if needed
func NewFileSystemStore(rootDir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStore{rootDir: rootDir}, nil
}

func (s *FileSystemStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.rootDir, clean), nil
}

// PutObject writes content to rootDir/key atomically via a temp file
func (s *FileSystemStore) PutObject(ctx context.Context, key string, content io.Reader, contentType string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move object into place: %w", err)
	}
	return nil
}

// HealthCheck verifies the root directory is still accessible
func (s *FileSystemStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("filesystem store unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("filesystem store root %s is not a directory", s.rootDir)
	}
	return nil
}
