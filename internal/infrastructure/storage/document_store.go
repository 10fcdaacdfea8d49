package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrConflict means a different document already occupies a permanent path
var ErrConflict = errors.New("a different document is already stored")

const (
	temporaryRoot = "temp"
	permanentRoot = "permanent"
)

// DocumentStore implements port.DocumentLifecycle on a FileStorage.
//
// Layout:
//
//	temp/{session_id}/{step}/{file_name}
//	permanent/{entity_type}/{entity_id}/{session_id}/{file_name}
type DocumentStore struct {
	files  port.FileStorage
	logger *zap.Logger
	now    func() time.Time
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(files port.FileStorage, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		files:  files,
		logger: logger,
		now:    time.Now,
	}
}

// StoreTemporary implements port.DocumentLifecycle
func (d *DocumentStore) StoreTemporary(ctx context.Context, file port.TemporaryFile, sessionID string, step entity.WizardStep, docType string) (*entity.DocumentRef, error) {
	const op = "store document"

	name := SanitizeFileName(file.FileName)
	if name == "" {
		return nil, apperr.Validation(op, "file name %q has no usable characters", file.FileName)
	}
	if !step.IsDocumentStep() {
		return nil, apperr.Validation(op, "%s is not a document step", step)
	}

	key := TemporaryPath(sessionID, step, name)
	if err := d.files.Save(ctx, key, file.Content); err != nil {
		return nil, fmt.Errorf("store temporary document: %w", err)
	}

	d.logger.Info("Temporary document stored",
		zap.String("session_id", sessionID),
		zap.String("step", string(step)),
		zap.String("file_name", name),
		zap.Int("size", len(file.Content)))

	ref := &entity.DocumentRef{
		FileName:     name,
		OriginalName: file.FileName,
		DocType:      strings.ToUpper(strings.TrimSpace(docType)),
		Step:         step,
		Path:         key,
		Size:         int64(len(file.Content)),
		UploadedAt:   d.now(),
	}
	if step == entity.StepOwnerDocs {
		ref.OwnerIndex = file.OwnerIndex
	}
	return ref, nil
}

// PromoteToPermanent implements port.DocumentLifecycle. The temporary copy
// is left in place for CleanupSession.
func (d *DocumentStore) PromoteToPermanent(ctx context.Context, sessionID string, step entity.WizardStep, fileName string, entityType entity.EntityType, entityID string) (string, error) {
	const op = "promote document"

	if entityID == "" || entity.IsPlaceholderID(entityID) {
		return "", apperr.Validation(op, "entity id %q is not a registered entity", entityID)
	}

	target := PermanentPath(entityType, entityID, sessionID, fileName)
	source := TemporaryPath(sessionID, step, fileName)

	content, err := d.files.Read(ctx, source)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read temporary document: %w", err)
		}
		// promoted on an earlier attempt and since cleaned up
		if d.files.Exists(ctx, target) {
			return target, nil
		}
		return "", apperr.NotFound(op, "temporary document", source)
	}

	if d.files.Exists(ctx, target) {
		existing, err := d.files.Read(ctx, target)
		if err != nil {
			return "", fmt.Errorf("read permanent document: %w", err)
		}
		if !bytes.Equal(existing, content) {
			return "", fmt.Errorf("%s: %w: %s", op, ErrConflict, target)
		}
		return target, nil
	}

	if err := d.files.Save(ctx, target, content); err != nil {
		return "", fmt.Errorf("write permanent document: %w", err)
	}

	d.logger.Info("Document promoted",
		zap.String("session_id", sessionID),
		zap.String("from", source),
		zap.String("to", target))
	return target, nil
}

// DeleteTemporary implements port.DocumentLifecycle
func (d *DocumentStore) DeleteTemporary(ctx context.Context, sessionID string, step entity.WizardStep, fileName string) error {
	if err := d.files.Delete(ctx, TemporaryPath(sessionID, step, fileName)); err != nil {
		return fmt.Errorf("delete temporary document: %w", err)
	}
	return nil
}

// CleanupSession implements port.DocumentLifecycle
func (d *DocumentStore) CleanupSession(ctx context.Context, sessionID string) error {
	segment := sanitizeSegment(sessionID)
	if segment == "" {
		return apperr.Validation("cleanup session", "session id %q is not usable as a path", sessionID)
	}
	if err := d.files.DeletePrefix(ctx, path.Join(temporaryRoot, segment)); err != nil {
		return fmt.Errorf("cleanup session documents: %w", err)
	}

	d.logger.Info("Session temporary area removed", zap.String("session_id", sessionID))
	return nil
}

// TemporaryPath is where a session's upload lives before approval
func TemporaryPath(sessionID string, step entity.WizardStep, fileName string) string {
	return path.Join(temporaryRoot, sanitizeSegment(sessionID), strings.ToLower(sanitizeSegment(string(step))), SanitizeFileName(fileName))
}

// PermanentPath is where a promoted document lives. Files are grouped by
// the session that uploaded them so registrations never share a name.
func PermanentPath(entityType entity.EntityType, entityID, sessionID, fileName string) string {
	return path.Join(permanentRoot, strings.ToLower(sanitizeSegment(string(entityType))), sanitizeSegment(entityID), sanitizeSegment(sessionID), SanitizeFileName(fileName))
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// sanitizeSegment keeps only alphanumerics, hyphens and underscores
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "..", "")
	return unsafeSegment.ReplaceAllString(s, "")
}

// SanitizeFileName strips directory components and unsafe characters,
// keeping the extension.
func SanitizeFileName(name string) string {
	return entity.SanitizeFileName(name)
}

// Verify interface compliance
var _ port.DocumentLifecycle = (*DocumentStore)(nil)
