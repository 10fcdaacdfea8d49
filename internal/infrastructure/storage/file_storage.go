// Package storage keeps wizard documents on the local filesystem or in MinIO.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/landrecords/internal/application/port"
	"go.uber.org/zap"
)

var errOutsideRoot = errors.New("path escapes storage root")

// LocalFileStorage stores documents as files below a root directory.
// Keys are slash separated and may not leave the root.
type LocalFileStorage struct {
	root   string
	logger *zap.Logger
}

func NewLocalFileStorage(baseDir string, logger *zap.Logger) port.FileStorage {
	return &LocalFileStorage{root: baseDir, logger: logger}
}

// resolve maps a key to an absolute path under the root
func (s *LocalFileStorage) resolve(key string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %w", err)
	}
	full, err := filepath.Abs(s.GetFullPath(key))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", key, err)
	}
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideRoot, key)
	}
	return full, nil
}

// Save writes through a sibling temp file so a reader never sees half a scan
func (s *LocalFileStorage) Save(ctx context.Context, key string, content []byte) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	_, writeErr := tmp.Write(content)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Error("Document write failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Error("Document rename failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("move %s into place: %w", key, err)
	}

	s.logger.Debug("Document written", zap.String("key", key), zap.Int("size", len(content)))
	return nil
}

// Read returns the stored bytes; a missing key wraps fs.ErrNotExist
func (s *LocalFileStorage) Read(ctx context.Context, key string) ([]byte, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return content, nil
}

func (s *LocalFileStorage) Exists(ctx context.Context, key string) bool {
	full, err := s.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// Delete is idempotent
func (s *LocalFileStorage) Delete(ctx context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Document delete failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalFileStorage) DeletePrefix(ctx context.Context, prefix string) error {
	full, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if root, _ := filepath.Abs(s.root); full == root {
		return fmt.Errorf("refusing to delete the storage root")
	}
	if err := os.RemoveAll(full); err != nil {
		s.logger.Error("Document tree delete failed", zap.String("prefix", prefix), zap.Error(err))
		return fmt.Errorf("delete %s: %w", prefix, err)
	}
	s.logger.Debug("Document tree deleted", zap.String("prefix", prefix))
	return nil
}

// GetFullPath joins key onto the root without validating it
func (s *LocalFileStorage) GetFullPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
