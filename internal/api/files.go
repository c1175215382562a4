package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropit/dropit/internal/auth"
	"github.com/dropit/dropit/internal/logging"
	"github.com/dropit/dropit/internal/metadata/postgres"
	"github.com/dropit/dropit/internal/metrics"
	"github.com/dropit/dropit/internal/thumbnail"
)

// objectKey builds the storage key for a new upload. Keys are always scoped
// under the owner's prefix so a credential or registration for one user can
// never touch another's objects.
func objectKey(userID string, parentID *string, storedName string) string {
	if parentID != nil {
		return fmt.Sprintf("dropit/%s/folder/%s/%s", userID, *parentID, storedName)
	}
	return fmt.Sprintf("dropit/%s/%s", userID, storedName)
}

func userKeyPrefix(userID string) string {
	return fmt.Sprintf("dropit/%s/", userID)
}

// handleUpload handles POST /api/v1/files/upload (multipart: file, userId,
// parentId?). Bytes are proxied to the storage provider; the metadata row is
// inserted only after the upload succeeds.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		metrics.RecordUpload(0, false)
		s.sendError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	if formUserID := r.FormValue("userId"); formUserID != claims.UserID {
		s.sendError(w, http.StatusUnauthorized, "user id does not match authenticated user")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.RecordUpload(0, false)
		s.sendError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	// Resolve the parent before any provider call. Uploads without a
	// parentId land at the root, same as folder creation.
	var parentID *string
	if v := r.FormValue("parentId"); v != "" {
		if _, err := s.metadata.GetFolder(r.Context(), v, claims.UserID); err != nil {
			if err == postgres.ErrNotFound {
				s.sendError(w, http.StatusNotFound, "parent folder not found")
				return
			}
			logging.WithContext(r.Context()).Error("parent folder lookup failed", zap.Error(err))
			s.sendError(w, http.StatusInternalServerError, "failed to upload file")
			return
		}
		parentID = &v
	}

	declaredMime := header.Header.Get("Content-Type")
	ext, vErr := validateUpload(header.Filename, declaredMime)
	if vErr != nil {
		metrics.RecordUploadRejection(vErr.reason)
		s.sendError(w, http.StatusUnsupportedMediaType, vErr.message)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		metrics.RecordUpload(0, false)
		s.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	size := int64(len(content))

	if limit := s.config.MaxStoragePerUser; limit > 0 {
		used, err := s.metadata.StorageUsed(r.Context(), claims.UserID)
		if err == nil && used+size > limit {
			metrics.RecordUpload(0, false)
			s.sendError(w, http.StatusRequestEntityTooLarge, "storage quota exceeded")
			return
		}
	}

	contentType := declaredMime
	if !mimeProvided(contentType) {
		contentType = mime.TypeByExtension("." + ext)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	// Globally-unique stored name, independent of the display name, so
	// provider keys never collide.
	storedName := uuid.NewString() + "." + ext
	key := objectKey(claims.UserID, parentID, storedName)

	fileURL, err := s.provider.Upload(r.Context(), key, bytes.NewReader(content), size, contentType)
	if err != nil {
		metrics.RecordUpload(size, false)
		logging.WithContext(r.Context()).Error("provider upload failed",
			zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "storage provider error")
		return
	}

	// Thumbnails are best effort: a format the decoder rejects (SVG, broken
	// image) just means no thumbnail.
	var thumbURL *string
	if ext != "pdf" {
		if thumb, err := thumbnail.Generate(bytes.NewReader(content)); err == nil {
			thumbKey := thumbnail.Key(key)
			if u, err := s.provider.Upload(r.Context(), thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err == nil {
				thumbURL = &u
			}
		}
	}

	record := &postgres.FileRow{
		ID:           uuid.NewString(),
		Name:         header.Filename,
		Path:         "/" + key,
		Size:         size,
		Type:         contentType,
		FileURL:      fileURL,
		ThumbnailURL: thumbURL,
		UserID:       claims.UserID,
		ParentID:     parentID,
		IsFolder:     false,
	}

	if err := s.metadata.Insert(r.Context(), record); err != nil {
		// The uploaded object is now orphaned; no compensation is attempted.
		metrics.RecordUpload(size, false)
		logging.WithContext(r.Context()).Error("file insert failed",
			zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to save file metadata")
		return
	}

	metrics.RecordUpload(size, true)
	metrics.RecordRecordCreated("file")
	logging.WithContext(r.Context()).Info("file uploaded",
		zap.String("id", record.ID),
		zap.String("name", record.Name),
		zap.Int64("size", size))

	s.sendJSON(w, http.StatusOK, FileResponse{File: toRecord(record)})
}

// handleToggleStar handles PATCH /api/v1/files/{fileID}/star. The flip is a
// single atomic update scoped by (id, owner); concurrent toggles resolve to
// last write wins.
func (s *Server) handleToggleStar(w http.ResponseWriter, r *http.Request) {
	s.toggleFlag(w, r, s.metadata.ToggleStar, "failed to star file")
}

// handleToggleTrash handles PATCH /api/v1/files/{fileID}/trash. Trashing
// flips a flag; nothing is physically deleted.
func (s *Server) handleToggleTrash(w http.ResponseWriter, r *http.Request) {
	s.toggleFlag(w, r, s.metadata.ToggleTrash, "failed to trash file")
}

func (s *Server) toggleFlag(
	w http.ResponseWriter,
	r *http.Request,
	toggle func(ctx context.Context, id, userID string) (*postgres.FileRow, error),
	failMsg string,
) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	fileID := r.PathValue("fileID")
	if fileID == "" {
		s.sendError(w, http.StatusBadRequest, "file id required")
		return
	}

	record, err := toggle(r.Context(), fileID, claims.UserID)
	if err != nil {
		if err == postgres.ErrNotFound {
			s.sendError(w, http.StatusNotFound, "file not found")
			return
		}
		logging.WithContext(r.Context()).Error(failMsg, zap.String("id", fileID), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, failMsg)
		return
	}

	s.sendJSON(w, http.StatusOK, FileResponse{File: toRecord(record)})
}

// handleRename handles PATCH /api/v1/files/{fileID}/rename.
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	fileID := r.PathValue("fileID")
	if fileID == "" {
		s.sendError(w, http.StatusBadRequest, "file id required")
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.sendError(w, http.StatusBadRequest, "invalid name")
		return
	}

	record, err := s.metadata.Rename(r.Context(), fileID, claims.UserID, name)
	if err != nil {
		if err == postgres.ErrNotFound {
			s.sendError(w, http.StatusNotFound, "file not found")
			return
		}
		logging.WithContext(r.Context()).Error("rename failed", zap.String("id", fileID), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to rename file")
		return
	}

	s.sendJSON(w, http.StatusOK, FileResponse{File: toRecord(record)})
}

// handleList handles GET /api/v1/files?parent={id}.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var parentID *string
	if v := strings.TrimSpace(r.URL.Query().Get("parent")); v != "" {
		parentID = &v
	}

	rows, err := s.metadata.ListChildren(r.Context(), claims.UserID, parentID)
	if err != nil {
		logging.WithContext(r.Context()).Error("list failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Files: toRecords(rows)})
}

// handleListStarred handles GET /api/v1/files/starred.
func (s *Server) handleListStarred(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rows, err := s.metadata.ListStarred(r.Context(), claims.UserID)
	if err != nil {
		logging.WithContext(r.Context()).Error("list starred failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to list starred files")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Files: toRecords(rows)})
}

// handleListTrash handles GET /api/v1/files/trash.
func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rows, err := s.metadata.ListTrash(r.Context(), claims.UserID)
	if err != nil {
		logging.WithContext(r.Context()).Error("list trash failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to list trash")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Files: toRecords(rows)})
}
