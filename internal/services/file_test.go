package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/classvault/apiserver/internal/storage"
	"github.com/classvault/apiserver/internal/store"
	"github.com/classvault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

type fileFixture struct {
	svc     *FileService
	repo    *fakeFileRepo
	objects *fakeObjectStorage
}

func newFileFixture() *fileFixture {
	repo := &fakeFileRepo{}
	objects := newFakeObjectStorage()
	svc := NewFileService(repo, storage.NewStorage(objects), testLogger())
	return &fileFixture{svc: svc, repo: repo, objects: objects}
}

var (
	requester = types.User{ID: "u1", AccountID: "acct-1"}
	keyworded = types.User{ID: "u2", AccountID: "acct-2", FileAccessKeyword: strptr("RED")}
)

func TestListRequiresRequester(t *testing.T) {
	fx := newFileFixture()

	_, err := fx.svc.List(context.Background(), types.User{}, types.FileQuery{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestListAppliesKeywordRestriction(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	fx.repo.files = []types.File{
		{ID: "f1", Name: "RED-report.pdf", Type: types.FileTypeDocument},
		{ID: "f2", Name: "blue-photo.png", Type: types.FileTypeImage},
	}

	all, err := fx.svc.List(ctx, requester, types.FileQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Nil(t, fx.repo.lastKeyword)

	narrowed, err := fx.svc.List(ctx, keyworded, types.FileQuery{})
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
	assert.Equal(t, "f1", narrowed[0].ID)
	require.NotNil(t, fx.repo.lastKeyword)
	assert.Equal(t, "RED", *fx.repo.lastKeyword)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()

	file, err := fx.svc.Upload(ctx, requester, "notes.pdf", []byte("content"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "u1", file.OwnerID)
	assert.Equal(t, "acct-1", file.AccountID)
	assert.Equal(t, "pdf", file.Extension)
	assert.Equal(t, types.FileTypeDocument, file.Type)
	assert.Equal(t, int64(7), file.Size)
	assert.NotEmpty(t, file.BucketFileID)

	assert.Contains(t, fx.objects.objects, file.BucketFileID)
}

func TestUploadClassifiesUnknownExtension(t *testing.T) {
	fx := newFileFixture()

	file, err := fx.svc.Upload(context.Background(), requester, "archive.zip", []byte("x"), "application/zip")
	require.NoError(t, err)
	assert.Equal(t, types.FileTypeOther, file.Type)
}

func TestUploadDuplicateName(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	fx.repo.files = []types.File{{ID: "f1", OwnerID: "u1", Name: "notes.pdf"}}

	_, err := fx.svc.Upload(ctx, requester, "notes.pdf", []byte("x"), "application/pdf")
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Empty(t, fx.objects.objects, "nothing is stored for a rejected upload")
}

func TestUploadRollsBackObjectOnRowFailure(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	fx.repo.createErr = errors.New("metadata store down")

	_, err := fx.svc.Upload(ctx, requester, "notes.pdf", []byte("x"), "application/pdf")
	require.Error(t, err)
	assert.Empty(t, fx.objects.objects, "orphaned object is removed")
	assert.Len(t, fx.objects.deleted, 1)
}

func TestDownloadStreamsUploadedObject(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()

	uploaded, err := fx.svc.Upload(ctx, requester, "notes.pdf", []byte("content"), "application/pdf")
	require.NoError(t, err)

	file, reader, err := fx.svc.Download(ctx, requester, "test-bucket", uploaded.BucketFileID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, uploaded.ID, file.ID)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestDownloadUnknownObject(t *testing.T) {
	fx := newFileFixture()

	_, _, err := fx.svc.Download(context.Background(), requester, "test-bucket", "no-such-object")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDownloadWrongBucket(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()

	uploaded, err := fx.svc.Upload(ctx, requester, "notes.pdf", []byte("x"), "application/pdf")
	require.NoError(t, err)

	_, _, err = fx.svc.Download(ctx, requester, "other-bucket", uploaded.BucketFileID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRenamePreservesExtension(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	fx.repo.files = []types.File{{ID: "f1", OwnerID: "u1", Name: "notes.pdf", Extension: "pdf"}}

	file, err := fx.svc.Rename(ctx, requester, "f1", "lecture-notes")
	require.NoError(t, err)
	assert.Equal(t, "lecture-notes.pdf", file.Name)
}

func TestShare(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	fx.repo.files = []types.File{{ID: "f1", OwnerID: "u1", Name: "notes.pdf"}}

	file, err := fx.svc.Share(ctx, requester, "f1", []string{"peer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"peer@example.com"}, file.SharedWith)
}

func TestDeleteRemovesRowAndObject(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	fx.objects.objects["obj-1"] = []byte("x")
	fx.repo.files = []types.File{{ID: "f1", OwnerID: "u1", Name: "notes.pdf", BucketFileID: "obj-1"}}

	require.NoError(t, fx.svc.Delete(ctx, requester, "f1"))
	assert.Empty(t, fx.repo.files)
	assert.NotContains(t, fx.objects.objects, "obj-1")
}

func TestTotalSpace(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	latest := time.Now()
	fx.repo.summarizeMap = map[string]types.TypeSummary{
		types.FileTypeDocument: {Size: 100, LatestDate: &latest},
		types.FileTypeImage:    {Size: 50},
		types.FileTypeOther:    {Size: 25},
	}

	summary, err := fx.svc.TotalSpace(ctx, requester)
	require.NoError(t, err)
	assert.Equal(t, int64(100), summary.Document.Size)
	assert.Equal(t, int64(50), summary.Image.Size)
	assert.Equal(t, int64(25), summary.Other.Size)
	assert.Equal(t, int64(175), summary.Used)
	assert.Equal(t, int64(types.TotalSpaceBudget), summary.All)
}

func TestFileOperationsFailClosedWithoutRequester(t *testing.T) {
	ctx := context.Background()
	fx := newFileFixture()
	anonymous := types.User{}

	_, err := fx.svc.Upload(ctx, anonymous, "notes.pdf", []byte("x"), "application/pdf")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, _, err = fx.svc.Download(ctx, anonymous, "test-bucket", "obj")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = fx.svc.Rename(ctx, anonymous, "f1", "new")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = fx.svc.Share(ctx, anonymous, "f1", nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.ErrorIs(t, fx.svc.Delete(ctx, anonymous, "f1"), ErrUnauthenticated)

	_, err = fx.svc.TotalSpace(ctx, anonymous)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
