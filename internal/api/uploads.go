package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropit/dropit/internal/auth"
	"github.com/dropit/dropit/internal/logging"
	"github.com/dropit/dropit/internal/metadata/postgres"
	"github.com/dropit/dropit/internal/metrics"
	"github.com/dropit/dropit/internal/storage"
)

// handleUploadCredential handles GET /api/v1/uploads/credential.
//
// Returns a short-lived signed PUT credential for one object under the
// caller's key prefix. The client supplies fileName so the stored key keeps
// the extension; the key itself is server-generated and collision-free.
func (s *Server) handleUploadCredential(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		s.sendError(w, http.StatusBadRequest, "fileName query parameter required")
		return
	}

	declaredMime := r.URL.Query().Get("contentType")
	ext, vErr := validateUpload(fileName, declaredMime)
	if vErr != nil {
		metrics.RecordUploadRejection(vErr.reason)
		s.sendError(w, http.StatusUnsupportedMediaType, vErr.message)
		return
	}

	contentType := declaredMime
	if !mimeProvided(contentType) {
		contentType = mime.TypeByExtension("." + ext)
	}

	key := objectKey(claims.UserID, nil, uuid.NewString()+"."+ext)

	cred, err := s.provider.PresignUpload(r.Context(), key, contentType, s.config.PresignTTL)
	if err != nil {
		logging.WithContext(r.Context()).Error("presign failed", zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "storage provider error")
		return
	}

	metrics.RecordCredentialIssued()
	logging.WithContext(r.Context()).Info("upload credential issued",
		zap.String("key", key),
		zap.String("user_id", claims.UserID))

	s.sendJSON(w, http.StatusOK, cred)
}

// handleCompleteUpload handles POST /api/v1/uploads/complete.
//
// Registers an object the client uploaded with a signed credential. The
// client claims only the key; the server requires the key to lie under the
// caller's prefix and reads size and content type from the provider itself,
// so a forged registration cannot attach arbitrary metadata or another
// user's object.
func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := strings.TrimPrefix(req.Key, "/")
	if key == "" {
		s.sendError(w, http.StatusBadRequest, "key required")
		return
	}
	if !strings.HasPrefix(key, userKeyPrefix(claims.UserID)) || strings.Contains(key, "..") {
		s.sendError(w, http.StatusUnauthorized, "key is outside the caller's namespace")
		return
	}

	ext := fileExtension(key)
	if ext == "" || !allowedExtensions[ext] {
		metrics.RecordUploadRejection("extension_not_allowed")
		s.sendError(w, http.StatusUnsupportedMediaType, "file extension not allowed")
		return
	}

	var parentID *string
	if req.ParentID != nil {
		if _, err := s.metadata.GetFolder(r.Context(), *req.ParentID, claims.UserID); err != nil {
			if err == postgres.ErrNotFound {
				s.sendError(w, http.StatusNotFound, "parent folder not found")
				return
			}
			logging.WithContext(r.Context()).Error("parent folder lookup failed", zap.Error(err))
			s.sendError(w, http.StatusInternalServerError, "failed to register upload")
			return
		}
		parentID = req.ParentID
	}

	// Verify the claimed upload against the provider before trusting it.
	info, err := s.provider.Stat(r.Context(), key)
	if err != nil {
		if err == storage.ErrObjectNotFound {
			s.sendError(w, http.StatusNotFound, "uploaded object not found")
			return
		}
		logging.WithContext(r.Context()).Error("object verification failed",
			zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "storage provider error")
		return
	}

	contentType := info.ContentType
	if !mimeProvided(contentType) {
		contentType = mime.TypeByExtension("." + ext)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = path.Base(key)
	}

	record := &postgres.FileRow{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     "/" + key,
		Size:     info.Size,
		Type:     contentType,
		FileURL:  s.provider.PublicURL(key),
		UserID:   claims.UserID,
		ParentID: parentID,
		IsFolder: false,
	}

	if err := s.metadata.Insert(r.Context(), record); err != nil {
		logging.WithContext(r.Context()).Error("file insert failed",
			zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to save file metadata")
		return
	}

	metrics.RecordRecordCreated("file")
	logging.WithContext(r.Context()).Info("external upload registered",
		zap.String("id", record.ID),
		zap.String("key", key),
		zap.Int64("size", info.Size))

	s.sendJSON(w, http.StatusOK, FileResponse{File: toRecord(record)})
}
