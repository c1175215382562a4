// Package api provides the HTTP server and handlers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dropit/dropit/internal/auth"
	"github.com/dropit/dropit/internal/config"
	"github.com/dropit/dropit/internal/logging"
	"github.com/dropit/dropit/internal/metadata/postgres"
	"github.com/dropit/dropit/internal/metrics"
	"github.com/dropit/dropit/internal/storage"
)

// MetadataStore is the subset of the postgres store the handlers need.
// Tests substitute an in-memory implementation.
type MetadataStore interface {
	Insert(ctx context.Context, f *postgres.FileRow) error
	Get(ctx context.Context, id, userID string) (*postgres.FileRow, error)
	GetFolder(ctx context.Context, id, userID string) (*postgres.FileRow, error)
	ToggleStar(ctx context.Context, id, userID string) (*postgres.FileRow, error)
	ToggleTrash(ctx context.Context, id, userID string) (*postgres.FileRow, error)
	Rename(ctx context.Context, id, userID, name string) (*postgres.FileRow, error)
	ListChildren(ctx context.Context, userID string, parentID *string) ([]*postgres.FileRow, error)
	ListStarred(ctx context.Context, userID string) ([]*postgres.FileRow, error)
	ListTrash(ctx context.Context, userID string) ([]*postgres.FileRow, error)
	StorageUsed(ctx context.Context, userID string) (int64, error)
}

// Server is the HTTP server.
type Server struct {
	metadata MetadataStore
	provider storage.Provider
	auth     *auth.Auth
	config   *config.Config
}

// NewServer creates a new server.
func NewServer(metadata MetadataStore, provider storage.Provider, authHandler *auth.Auth, cfg *config.Config) *Server {
	return &Server{
		metadata: metadata,
		provider: provider,
		auth:     authHandler,
		config:   cfg,
	}
}

// Handler returns the HTTP handler with auth, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", s.handleHealth)

	// Protected endpoints
	protected := http.NewServeMux()

	protected.HandleFunc("POST /api/v1/folders/create", s.handleCreateFolder)

	protected.HandleFunc("POST /api/v1/files/upload", s.handleUpload)
	protected.HandleFunc("GET /api/v1/files", s.handleList)
	protected.HandleFunc("GET /api/v1/files/starred", s.handleListStarred)
	protected.HandleFunc("GET /api/v1/files/trash", s.handleListTrash)
	protected.HandleFunc("PATCH /api/v1/files/{fileID}/star", s.handleToggleStar)
	protected.HandleFunc("PATCH /api/v1/files/{fileID}/trash", s.handleToggleTrash)
	protected.HandleFunc("PATCH /api/v1/files/{fileID}/rename", s.handleRename)

	protected.HandleFunc("GET /api/v1/uploads/credential", s.handleUploadCredential)
	protected.HandleFunc("POST /api/v1/uploads/complete", s.handleCompleteUpload)

	protected.HandleFunc("GET /api/v1/usage", s.handleUsage)

	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(s.recoverMiddleware(mux)))
}

// recoverMiddleware converts panics into generic 500 responses. Unexpected
// faults never leak internal detail to the client.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.WithContext(r.Context()).Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				s.sendError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	used, err := s.metadata.StorageUsed(r.Context(), claims.UserID)
	if err != nil {
		logging.WithContext(r.Context()).Error("usage query failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to compute usage")
		return
	}

	s.sendJSON(w, http.StatusOK, UsageResponse{
		Used:  used,
		Limit: s.config.MaxStoragePerUser,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}
