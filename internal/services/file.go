package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/classvault/apiserver/internal/policy"
	"github.com/classvault/apiserver/internal/storage"
	"github.com/classvault/apiserver/internal/store"
	"github.com/classvault/apiserver/types"
	"github.com/google/uuid"
)

// FileRepository defines persistence operations for file metadata.
type FileRepository interface {
	List(ctx context.Context, q types.FileQuery, keyword *string) ([]types.File, error)
	Get(ctx context.Context, id string) (types.File, error)
	GetByBucketFileID(ctx context.Context, bucketFileID string) (types.File, error)
	GetByOwnerAndName(ctx context.Context, ownerID, name string) (types.File, error)
	Create(ctx context.Context, file types.File) (types.File, error)
	Rename(ctx context.Context, id, name string) (types.File, error)
	SetSharedWith(ctx context.Context, id string, emails []string) (types.File, error)
	Delete(ctx context.Context, id string) error
	Summarize(ctx context.Context) (map[string]types.TypeSummary, error)
}

// FileService encapsulates file use-cases. Every read and write takes the
// resolved requester explicitly; an operation without one fails closed.
type FileService struct {
	repo    FileRepository
	objects *storage.Storage
	logger  *slog.Logger
}

func NewFileService(repo FileRepository, objects *storage.Storage, logger *slog.Logger) *FileService {
	return &FileService{
		repo:    repo,
		objects: objects,
		logger:  logger,
	}
}

// List applies the visibility predicate for the requester: the caller's
// type filters and free-text search, ANDed with the requester's keyword
// restriction when one is set. Sort and limit apply after filtering; an
// empty result is not an error.
func (s *FileService) List(ctx context.Context, requester types.User, q types.FileQuery) ([]types.File, error) {
	if requester.AccountID == "" {
		return nil, ErrUnauthenticated
	}
	return s.repo.List(ctx, q, policy.Keyword(requester))
}

// Upload stores the object bytes first and the metadata row second. If the
// row cannot be written the object is deleted again, so storage never holds
// bytes that no listing can reach.
func (s *FileService) Upload(ctx context.Context, requester types.User, name string, data []byte, contentType string) (types.File, error) {
	if requester.AccountID == "" {
		return types.File{}, ErrUnauthenticated
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return types.File{}, errors.New("file name is required")
	}

	if _, err := s.repo.GetByOwnerAndName(ctx, requester.ID, name); err == nil {
		return types.File{}, ErrDuplicateName
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.File{}, err
	}

	bucketFileID := uuid.NewString()
	if err := s.objects.Put(ctx, bucketFileID, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.File{}, err
	}

	extension, fileType := classifyName(name)
	file, err := s.repo.Create(ctx, types.File{
		ID:           uuid.NewString(),
		OwnerID:      requester.ID,
		AccountID:    requester.AccountID,
		Name:         name,
		Extension:    extension,
		Type:         fileType,
		Size:         int64(len(data)),
		URL:          objectURL(s.objects.Bucket(), bucketFileID),
		BucketFileID: bucketFileID,
	})
	if err != nil {
		if delErr := s.objects.Delete(ctx, bucketFileID); delErr != nil {
			s.logger.Error("failed to roll back orphaned object", "bucketFileId", bucketFileID, "error", delErr)
		}
		return types.File{}, err
	}

	s.logger.Info("file uploaded", "fileId", file.ID, "owner", requester.ID, "size", file.Size)
	return file, nil
}

// Download opens the stored object behind a listing URL. The bucket in the
// URL must match the configured one; anything else is treated as not found.
func (s *FileService) Download(ctx context.Context, requester types.User, bucket, bucketFileID string) (types.File, io.ReadCloser, error) {
	if requester.AccountID == "" {
		return types.File{}, nil, ErrUnauthenticated
	}
	if bucket != s.objects.Bucket() {
		return types.File{}, nil, store.ErrNotFound
	}

	file, err := s.repo.GetByBucketFileID(ctx, bucketFileID)
	if err != nil {
		return types.File{}, nil, err
	}

	reader, err := s.objects.Get(ctx, file.BucketFileID)
	if err != nil {
		return types.File{}, nil, err
	}
	return file, reader, nil
}

// Rename changes the base name; the stored extension is preserved.
func (s *FileService) Rename(ctx context.Context, requester types.User, fileID, newName string) (types.File, error) {
	if requester.AccountID == "" {
		return types.File{}, ErrUnauthenticated
	}

	file, err := s.repo.Get(ctx, fileID)
	if err != nil {
		return types.File{}, err
	}

	name := strings.TrimSpace(newName)
	if name == "" {
		return types.File{}, errors.New("file name is required")
	}
	if file.Extension != "" {
		name = name + "." + file.Extension
	}

	return s.repo.Rename(ctx, fileID, name)
}

// Share replaces the list of emails the file is shared with. This is
// presentation-layer data only; it does not widen the visibility predicate.
func (s *FileService) Share(ctx context.Context, requester types.User, fileID string, emails []string) (types.File, error) {
	if requester.AccountID == "" {
		return types.File{}, ErrUnauthenticated
	}
	return s.repo.SetSharedWith(ctx, fileID, emails)
}

// Delete removes the metadata row and then the stored object. A metadata
// delete that succeeds while the object delete fails is logged, not rolled
// back: an orphaned object is invisible and harmless, the reverse is not.
func (s *FileService) Delete(ctx context.Context, requester types.User, fileID string) error {
	if requester.AccountID == "" {
		return ErrUnauthenticated
	}

	file, err := s.repo.Get(ctx, fileID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, fileID); err != nil {
		return err
	}

	if err := s.objects.Delete(ctx, file.BucketFileID); err != nil {
		s.logger.Error("failed to delete stored object", "bucketFileId", file.BucketFileID, "error", err)
	}
	return nil
}

// TotalSpace reports per-category usage against the overall budget.
func (s *FileService) TotalSpace(ctx context.Context, requester types.User) (types.SpaceSummary, error) {
	if requester.AccountID == "" {
		return types.SpaceSummary{}, ErrUnauthenticated
	}

	byType, err := s.repo.Summarize(ctx)
	if err != nil {
		return types.SpaceSummary{}, err
	}

	summary := types.SpaceSummary{All: types.TotalSpaceBudget}
	for fileType, typeSummary := range byType {
		switch fileType {
		case types.FileTypeDocument:
			summary.Document = typeSummary
		case types.FileTypeImage:
			summary.Image = typeSummary
		case types.FileTypeVideo:
			summary.Video = typeSummary
		case types.FileTypeAudio:
			summary.Audio = typeSummary
		default:
			summary.Other.Size += typeSummary.Size
			if typeSummary.LatestDate != nil &&
				(summary.Other.LatestDate == nil || typeSummary.LatestDate.After(*summary.Other.LatestDate)) {
				summary.Other.LatestDate = typeSummary.LatestDate
			}
		}
		summary.Used += typeSummary.Size
	}
	return summary, nil
}

var fileTypesByExtension = map[string]string{
	"pdf": types.FileTypeDocument, "doc": types.FileTypeDocument, "docx": types.FileTypeDocument,
	"txt": types.FileTypeDocument, "xls": types.FileTypeDocument, "xlsx": types.FileTypeDocument,
	"csv": types.FileTypeDocument, "ppt": types.FileTypeDocument, "pptx": types.FileTypeDocument,
	"md": types.FileTypeDocument,
	"jpg": types.FileTypeImage, "jpeg": types.FileTypeImage, "png": types.FileTypeImage,
	"gif": types.FileTypeImage, "webp": types.FileTypeImage, "svg": types.FileTypeImage,
	"mp4": types.FileTypeVideo, "mov": types.FileTypeVideo, "avi": types.FileTypeVideo,
	"mkv": types.FileTypeVideo, "webm": types.FileTypeVideo,
	"mp3": types.FileTypeAudio, "wav": types.FileTypeAudio, "ogg": types.FileTypeAudio,
	"flac": types.FileTypeAudio, "m4a": types.FileTypeAudio,
}

func classifyName(name string) (extension, fileType string) {
	extension = strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if t, ok := fileTypesByExtension[extension]; ok {
		return extension, t
	}
	return extension, types.FileTypeOther
}

func objectURL(bucket, bucketFileID string) string {
	return fmt.Sprintf("/files/objects/%s/%s", bucket, bucketFileID)
}
