package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropit/dropit/internal/auth"
	"github.com/dropit/dropit/internal/logging"
	"github.com/dropit/dropit/internal/metadata/postgres"
	"github.com/dropit/dropit/internal/metrics"
)

// handleCreateFolder handles POST /api/v1/folders/create.
//
// A folder is a metadata-only record: zero size, empty file URL, a synthetic
// path outside the storage provider's namespace. An omitted parentId creates
// the folder at the root.
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The body's userId must match the verified identity; the client-supplied
	// value is never authoritative on its own.
	if req.UserID != claims.UserID {
		s.sendError(w, http.StatusUnauthorized, "user id does not match authenticated user")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.sendError(w, http.StatusBadRequest, "invalid folder name")
		return
	}

	if req.ParentID != nil {
		if _, err := s.metadata.GetFolder(r.Context(), *req.ParentID, claims.UserID); err != nil {
			if err == postgres.ErrNotFound {
				s.sendError(w, http.StatusNotFound, "parent folder not found")
				return
			}
			logging.WithContext(r.Context()).Error("parent folder lookup failed", zap.Error(err))
			s.sendError(w, http.StatusInternalServerError, "failed to create folder")
			return
		}
	}

	folder := &postgres.FileRow{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     fmt.Sprintf("/folders/%s/%s", claims.UserID, uuid.NewString()),
		Size:     0,
		Type:     "folder",
		FileURL:  "",
		UserID:   claims.UserID,
		ParentID: req.ParentID,
		IsFolder: true,
	}

	if err := s.metadata.Insert(r.Context(), folder); err != nil {
		logging.WithContext(r.Context()).Error("folder insert failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to create folder")
		return
	}

	metrics.RecordRecordCreated("folder")
	logging.WithContext(r.Context()).Info("folder created",
		zap.String("id", folder.ID),
		zap.String("user_id", claims.UserID))

	s.sendJSON(w, http.StatusOK, FolderResponse{Folder: toRecord(folder)})
}
