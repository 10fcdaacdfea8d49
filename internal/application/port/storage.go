package port

import "context"

// FileStorage defines file storage operations on slash-separated relative paths
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	// DeletePrefix removes every object under prefix; a missing prefix is not an error
	DeletePrefix(ctx context.Context, prefix string) error
	GetFullPath(relativePath string) string
}
