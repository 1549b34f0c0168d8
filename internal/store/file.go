package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classvault/apiserver/types"
	"github.com/lib/pq"
)

// FileRepository handles persistence for file metadata.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, owner_id, account_id, name, extension, type, size, url, bucket_file_id, shared_with, created_at, updated_at`

// sortColumns whitelists the caller-selectable sort keys.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"size":      "size",
}

func scanFile(row interface{ Scan(...any) error }) (types.File, error) {
	var file types.File
	var sharedJSON []byte
	err := row.Scan(
		&file.ID,
		&file.OwnerID,
		&file.AccountID,
		&file.Name,
		&file.Extension,
		&file.Type,
		&file.Size,
		&file.URL,
		&file.BucketFileID,
		&sharedJSON,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return types.File{}, err
	}
	_ = json.Unmarshal(sharedJSON, &file.SharedWith)
	return file, nil
}

// List executes the visibility query. The keyword, when present, is an
// additional narrowing constraint on the file name; it is ANDed with the
// caller's filters, never substituted for them. Equal sort keys break by id
// so pagination stays stable.
func (r *FileRepository) List(ctx context.Context, q types.FileQuery, keyword *string) ([]types.File, error) {
	var (
		conds []string
		args  []any
	)

	if len(q.Types) > 0 {
		args = append(args, pq.Array(q.Types))
		conds = append(conds, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if q.SearchText != "" {
		args = append(args, "%"+escapeLike(q.SearchText)+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d ESCAPE '\\'", len(args)))
	}
	if keyword != nil && *keyword != "" {
		// Case-sensitive containment, unlike the free-text search.
		args = append(args, "%"+escapeLike(*keyword)+"%")
		conds = append(conds, fmt.Sprintf("name LIKE $%d ESCAPE '\\'", len(args)))
	}

	query := `SELECT ` + fileColumns + ` FROM files`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	column, ok := sortColumns[q.SortField]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if q.SortAsc {
		direction = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id", column, direction)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]types.File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *FileRepository) Get(ctx context.Context, id string) (types.File, error) {
	const query = `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

// GetByBucketFileID resolves the metadata row for a stored object. It backs
// the download route, whose URLs carry the object key rather than the row id.
func (r *FileRepository) GetByBucketFileID(ctx context.Context, bucketFileID string) (types.File, error) {
	const query = `SELECT ` + fileColumns + ` FROM files WHERE bucket_file_id = $1`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, bucketFileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

// GetByOwnerAndName backs the duplicate-name check at upload time.
func (r *FileRepository) GetByOwnerAndName(ctx context.Context, ownerID, name string) (types.File, error) {
	const query = `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 AND name = $2`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, ownerID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

func (r *FileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	now := time.Now()
	file.CreatedAt = now
	file.UpdatedAt = now
	if file.SharedWith == nil {
		file.SharedWith = []string{}
	}

	sharedJSON, err := json.Marshal(file.SharedWith)
	if err != nil {
		return types.File{}, err
	}

	const query = `
		INSERT INTO files (id, owner_id, account_id, name, extension, type, size, url, bucket_file_id, shared_with, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.OwnerID,
		file.AccountID,
		file.Name,
		file.Extension,
		file.Type,
		file.Size,
		file.URL,
		file.BucketFileID,
		sharedJSON,
		file.CreatedAt,
		file.UpdatedAt,
	); err != nil {
		return types.File{}, err
	}
	return file, nil
}

func (r *FileRepository) Rename(ctx context.Context, id, name string) (types.File, error) {
	const query = `
		UPDATE files
		SET name = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING ` + fileColumns
	file, err := scanFile(r.db.QueryRowContext(ctx, query, name, time.Now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

func (r *FileRepository) SetSharedWith(ctx context.Context, id string, emails []string) (types.File, error) {
	if emails == nil {
		emails = []string{}
	}
	sharedJSON, err := json.Marshal(emails)
	if err != nil {
		return types.File{}, err
	}

	const query = `
		UPDATE files
		SET shared_with = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING ` + fileColumns
	file, err := scanFile(r.db.QueryRowContext(ctx, query, sharedJSON, time.Now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM files WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Summarize aggregates usage per file category.
func (r *FileRepository) Summarize(ctx context.Context) (map[string]types.TypeSummary, error) {
	const query = `
		SELECT type, COALESCE(SUM(size), 0), MAX(updated_at)
		FROM files
		GROUP BY type`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make(map[string]types.TypeSummary)
	for rows.Next() {
		var (
			fileType string
			size     int64
			latest   sql.NullTime
		)
		if err := rows.Scan(&fileType, &size, &latest); err != nil {
			return nil, err
		}
		summary := types.TypeSummary{Size: size}
		if latest.Valid {
			t := latest.Time
			summary.LatestDate = &t
		}
		summaries[fileType] = summary
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
