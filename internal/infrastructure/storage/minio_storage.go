package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig holds MinIO connection settings
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOFileStorage implements port.FileStorage on a MinIO bucket.
// Relative paths are used as object keys.
type MinIOFileStorage struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinIOFileStorage connects to MinIO and creates the bucket when missing
func NewMinIOFileStorage(ctx context.Context, cfg MinIOConfig, logger *zap.Logger) (*MinIOFileStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("Bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &MinIOFileStorage{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Save uploads content under key
func (s *MinIOFileStorage) Save(ctx context.Context, key string, content []byte) error {
	key = objectKey(key)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Debug("Object uploaded",
		zap.String("key", key),
		zap.Int("size", len(content)))
	return nil
}

// Read downloads the object under key. A missing object wraps fs.ErrNotExist.
func (s *MinIOFileStorage) Read(ctx context.Context, key string) ([]byte, error) {
	key = objectKey(key)
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Exists reports whether an object is stored under key
func (s *MinIOFileStorage) Exists(ctx context.Context, key string) bool {
	_, err := s.client.StatObject(ctx, s.bucket, objectKey(key), minio.StatObjectOptions{})
	if err != nil {
		if !isNoSuchKey(err) {
			s.logger.Warn("Failed to stat object",
				zap.String("key", key),
				zap.Error(err))
		}
		return false
	}
	return true
}

// Delete removes the object under key; a missing object is not an error
func (s *MinIOFileStorage) Delete(ctx context.Context, key string) error {
	key = objectKey(key)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		s.logger.Error("Failed to delete object",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DeletePrefix removes every object under prefix
func (s *MinIOFileStorage) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = strings.TrimSuffix(objectKey(prefix), "/") + "/"
	if prefix == "/" {
		return fmt.Errorf("refusing to delete the whole bucket")
	}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	removed := 0
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
			return fmt.Errorf("failed to delete %s: %w", obj.Key, err)
		}
		removed++
	}

	s.logger.Debug("Objects deleted",
		zap.String("prefix", prefix),
		zap.Int("count", removed))
	return nil
}

// GetFullPath returns the bucket-qualified object name
func (s *MinIOFileStorage) GetFullPath(relativePath string) string {
	return s.bucket + "/" + objectKey(relativePath)
}

// Ping checks that the bucket is reachable
func (s *MinIOFileStorage) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("minio unreachable: %w", err)
	}
	return nil
}

func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// Verify interface compliance
var _ port.FileStorage = (*MinIOFileStorage)(nil)
