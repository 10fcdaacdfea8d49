package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveReadDelete(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s := NewLocalFileStorage(base, zap.NewNop())

	require.NoError(t, s.Save(ctx, "a/b/doc.pdf", []byte("content")))
	assert.True(t, s.Exists(ctx, "a/b/doc.pdf"))
	assert.False(t, s.Exists(ctx, "a/b"), "directories are not files")

	got, err := s.Read(ctx, "a/b/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), got)

	entries, err := os.ReadDir(filepath.Join(base, "a", "b"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, s.Delete(ctx, "a/b/doc.pdf"))
	require.NoError(t, s.Delete(ctx, "a/b/doc.pdf"), "delete is idempotent")

	_, err = s.Read(ctx, "a/b/doc.pdf")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLocalFileStorage_RejectsEscapes(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	assert.Error(t, s.Save(ctx, "../outside.txt", []byte("x")))
	_, err := s.Read(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.False(t, s.Exists(ctx, "../outside.txt"))
	assert.Error(t, s.DeletePrefix(ctx, ""))
}

func TestLocalFileStorage_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	require.NoError(t, s.Save(ctx, "temp/s1/parcel_docs/a.pdf", []byte("a")))
	require.NoError(t, s.Save(ctx, "temp/s1/owner_docs/b.pdf", []byte("b")))
	require.NoError(t, s.Save(ctx, "temp/s2/parcel_docs/c.pdf", []byte("c")))

	require.NoError(t, s.DeletePrefix(ctx, "temp/s1"))
	assert.False(t, s.Exists(ctx, "temp/s1/parcel_docs/a.pdf"))
	assert.False(t, s.Exists(ctx, "temp/s1/owner_docs/b.pdf"))
	assert.True(t, s.Exists(ctx, "temp/s2/parcel_docs/c.pdf"))

	require.NoError(t, s.DeletePrefix(ctx, "temp/missing"))
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"deed.pdf":                "deed.pdf",
		"../../etc/passwd":        "passwd",
		`C:\scans\title deed.PDF`: "title_deed.PDF",
		"..hidden":                "hidden",
		"plan (v2).png":           "plan_v2.png",
		"":                        "",
		"/":                       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}
}

func TestDocumentPaths(t *testing.T) {
	assert.Equal(t, "temp/s-1/parcel_docs/deed.pdf", TemporaryPath("s-1", entity.StepParcelDocs, "deed.pdf"))
	assert.Equal(t, "permanent/land_parcel/UP-01/s-1/deed.pdf", PermanentPath(entity.EntityLandParcel, "UP-01", "s-1", "deed.pdf"))
	assert.Equal(t, "temp/s-1/owner_docs/passwd", TemporaryPath("../s-1", entity.StepOwnerDocs, "../passwd"))
}

func newTestStore(t *testing.T) (*DocumentStore, port.FileStorage) {
	t.Helper()
	files := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	return NewDocumentStore(files, zap.NewNop()), files
}

func TestDocumentStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, files := newTestStore(t)

	ref, err := store.StoreTemporary(ctx, port.TemporaryFile{FileName: "title deed.pdf", Content: []byte("deed")}, "s1", entity.StepParcelDocs, "title_deed")
	require.NoError(t, err)
	assert.Equal(t, "title_deed.pdf", ref.FileName)
	assert.Equal(t, "TITLE_DEED", ref.DocType)
	assert.Equal(t, "title deed.pdf", ref.OriginalName)
	assert.Equal(t, int64(4), ref.Size)
	assert.True(t, files.Exists(ctx, ref.Path))

	permanent, err := store.PromoteToPermanent(ctx, "s1", entity.StepParcelDocs, ref.FileName, entity.EntityLandParcel, "UP-9")
	require.NoError(t, err)
	assert.Equal(t, "permanent/land_parcel/UP-9/s1/title_deed.pdf", permanent)

	content, err := files.Read(ctx, permanent)
	require.NoError(t, err)
	assert.Equal(t, []byte("deed"), content)

	require.NoError(t, store.CleanupSession(ctx, "s1"))
	assert.False(t, files.Exists(ctx, ref.Path))

	// promoting again after cleanup returns the same path
	again, err := store.PromoteToPermanent(ctx, "s1", entity.StepParcelDocs, ref.FileName, entity.EntityLandParcel, "UP-9")
	require.NoError(t, err)
	assert.Equal(t, permanent, again)
}

func TestDocumentStore_SameNameFromTwoSessions(t *testing.T) {
	ctx := context.Background()
	store, files := newTestStore(t)

	_, err := store.StoreTemporary(ctx, port.TemporaryFile{FileName: "id.pdf", Content: []byte("2019 ID card")}, "session-a", entity.StepOwnerDocs, "NATIONAL_ID")
	require.NoError(t, err)
	_, err = store.StoreTemporary(ctx, port.TemporaryFile{FileName: "id.pdf", Content: []byte("2025 renewed ID card")}, "session-b", entity.StepOwnerDocs, "NATIONAL_ID")
	require.NoError(t, err)

	pathA, err := store.PromoteToPermanent(ctx, "session-a", entity.StepOwnerDocs, "id.pdf", entity.EntityOwner, "owner-1")
	require.NoError(t, err)
	pathB, err := store.PromoteToPermanent(ctx, "session-b", entity.StepOwnerDocs, "id.pdf", entity.EntityOwner, "owner-1")
	require.NoError(t, err)
	assert.NotEqual(t, pathA, pathB)

	require.NoError(t, store.CleanupSession(ctx, "session-a"))
	require.NoError(t, store.CleanupSession(ctx, "session-b"))

	a, err := files.Read(ctx, pathA)
	require.NoError(t, err)
	assert.Equal(t, "2019 ID card", string(a))
	b, err := files.Read(ctx, pathB)
	require.NoError(t, err)
	assert.Equal(t, "2025 renewed ID card", string(b))
}

func TestDocumentStore_PromoteRefusesDifferentContent(t *testing.T) {
	ctx := context.Background()
	store, files := newTestStore(t)

	_, err := store.StoreTemporary(ctx, port.TemporaryFile{FileName: "deed.pdf", Content: []byte("new deed")}, "s1", entity.StepParcelDocs, "DEED")
	require.NoError(t, err)
	target := PermanentPath(entity.EntityLandParcel, "UP-3", "s1", "deed.pdf")
	require.NoError(t, files.Save(ctx, target, []byte("old deed")))

	_, err = store.PromoteToPermanent(ctx, "s1", entity.StepParcelDocs, "deed.pdf", entity.EntityLandParcel, "UP-3")
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)

	content, err := files.Read(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "old deed", string(content))
	assert.True(t, files.Exists(ctx, TemporaryPath("s1", entity.StepParcelDocs, "deed.pdf")), "the upload is kept")

	require.NoError(t, files.Save(ctx, target, []byte("new deed")))
	got, err := store.PromoteToPermanent(ctx, "s1", entity.StepParcelDocs, "deed.pdf", entity.EntityLandParcel, "UP-3")
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestDocumentStore_Errors(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.StoreTemporary(ctx, port.TemporaryFile{FileName: "...", Content: []byte("x")}, "s1", entity.StepParcelDocs, "DEED")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = store.StoreTemporary(ctx, port.TemporaryFile{FileName: "a.pdf", Content: []byte("x")}, "s1", entity.StepParcel, "DEED")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = store.PromoteToPermanent(ctx, "s1", entity.StepParcelDocs, "missing.pdf", entity.EntityLandParcel, "UP-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)

	_, err = store.PromoteToPermanent(ctx, "s1", entity.StepParcelDocs, "a.pdf", entity.EntityOwner, "NEW-123")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	require.NoError(t, store.DeleteTemporary(ctx, "s1", entity.StepParcelDocs, "never-stored.pdf"))
	assert.True(t, errors.Is(store.CleanupSession(ctx, "../.."), apperr.ErrValidation))
}

func TestObjectKeyAndContentType(t *testing.T) {
	assert.Equal(t, "temp/s1/a.pdf", objectKey("/temp/s1/a.pdf"))
	assert.Equal(t, "a.pdf", objectKey("../a.pdf"))
	assert.Equal(t, "application/pdf", contentType("x/deed.PDF"))
	assert.Equal(t, "image/jpeg", contentType("scan.jpeg"))
	assert.Equal(t, "application/octet-stream", contentType("notes"))
}
