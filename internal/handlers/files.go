package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/classvault/apiserver/internal/services"
	"github.com/classvault/apiserver/internal/store"
	"github.com/classvault/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 50 << 20

// FileHandler provides the file listing and management endpoints. Every
// route requires a resolved session; listing is available to any signed-in
// account regardless of dashboard approval.
type FileHandler struct {
	fileService *services.FileService
}

func NewFileHandler(fileService *services.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// FileRouter registers file routes on the given router.
func FileRouter(r chi.Router, fileService *services.FileService, requireUser func(http.Handler) http.Handler) {
	handler := NewFileHandler(fileService)

	r.Use(requireUser)
	r.Get("/", handler.List)
	r.Post("/", handler.Upload)
	r.Get("/total-space", handler.TotalSpace)
	r.Get("/objects/{bucket}/{fileID}", handler.Download)
	r.Route("/{fileID}", func(r chi.Router) {
		r.Patch("/rename", handler.Rename)
		r.Patch("/share", handler.Share)
		r.Delete("/", handler.Delete)
	})
}

// List returns the files visible to the requester under the submitted
// filters. Query parameters: types (comma separated), search, sort
// (field-asc|field-desc), limit.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query, err := parseFileQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	files, err := h.fileService.List(r.Context(), user, query)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, FileListResponse{Items: files, Total: len(files)})
}

// Upload accepts a multipart form with a single "file" part.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	file, err := h.fileService.Upload(r.Context(), user, header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateName):
			writeError(w, http.StatusConflict, "a file with the same name already exists")
		case errors.Is(err, services.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			writeError(w, http.StatusInternalServerError, "failed to upload file")
		}
		return
	}

	writeJSON(w, http.StatusCreated, file)
}

// Download streams the stored object behind the url field of a listing
// entry. The object key in the path is resolved back to its metadata row
// for the name and content type.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	file, reader, err := h.fileService.Download(r.Context(), user, chi.URLParam(r, "bucket"), chi.URLParam(r, "fileID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension("." + file.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Name))
	_, _ = io.Copy(w, reader)
}

type RenameRequest struct {
	Name string `json:"name"`
}

func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RenameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	file, err := h.fileService.Rename(r.Context(), user, chi.URLParam(r, "fileID"), req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to rename file")
		return
	}

	writeJSON(w, http.StatusOK, file)
}

type ShareRequest struct {
	Emails []string `json:"emails"`
}

func (h *FileHandler) Share(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	file, err := h.fileService.Share(r.Context(), user, chi.URLParam(r, "fileID"), req.Emails)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to share file")
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.fileService.Delete(r.Context(), user, chi.URLParam(r, "fileID")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) TotalSpace(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.fileService.TotalSpace(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute space usage")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type FileListResponse struct {
	Items []types.File `json:"items"`
	Total int          `json:"total"`
}

func parseFileQuery(r *http.Request) (types.FileQuery, error) {
	q := types.FileQuery{
		SearchText: strings.TrimSpace(r.URL.Query().Get("search")),
		SortField:  "createdAt",
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Types = append(q.Types, t)
			}
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("sort")); raw != "" {
		field, direction, found := strings.Cut(raw, "-")
		if !found || (direction != "asc" && direction != "desc") {
			return types.FileQuery{}, errors.New("sort must look like field-asc or field-desc")
		}
		q.SortField = field
		q.SortAsc = direction == "asc"
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return types.FileQuery{}, errors.New("limit must be a positive integer")
		}
		q.Limit = limit
	}

	return q, nil
}
