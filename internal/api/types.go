package api

import (
	"time"

	"github.com/dropit/dropit/internal/metadata/postgres"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// FileRecord is the wire representation of a file or folder.
type FileRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	FileURL      string    `json:"fileUrl"`
	ThumbnailURL *string   `json:"thumbnailUrl,omitempty"`
	UserID       string    `json:"userId"`
	ParentID     *string   `json:"parentId,omitempty"`
	IsFolder     bool      `json:"isFolder"`
	IsStarred    bool      `json:"isStarred"`
	IsTrashed    bool      `json:"isTrashed"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toRecord(f *postgres.FileRow) *FileRecord {
	return &FileRecord{
		ID:           f.ID,
		Name:         f.Name,
		Path:         f.Path,
		Size:         f.Size,
		Type:         f.Type,
		FileURL:      f.FileURL,
		ThumbnailURL: f.ThumbnailURL,
		UserID:       f.UserID,
		ParentID:     f.ParentID,
		IsFolder:     f.IsFolder,
		IsStarred:    f.IsStarred,
		IsTrashed:    f.IsTrashed,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func toRecords(rows []*postgres.FileRow) []*FileRecord {
	out := make([]*FileRecord, 0, len(rows))
	for _, f := range rows {
		out = append(out, toRecord(f))
	}
	return out
}

// CreateFolderRequest is the body of POST /api/v1/folders/create.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	UserID   string  `json:"userId"`
	ParentID *string `json:"parentId,omitempty"`
}

// RenameRequest is the body of PATCH /api/v1/files/{fileID}/rename.
type RenameRequest struct {
	Name string `json:"name"`
}

// CompleteUploadRequest is the body of POST /api/v1/uploads/complete.
// The client claims only the object key it uploaded with a signed
// credential; everything else is verified against the storage provider.
type CompleteUploadRequest struct {
	Key      string  `json:"key"`
	Name     string  `json:"name,omitempty"`
	ParentID *string `json:"parentId,omitempty"`
}

// FileResponse wraps a single file record.
type FileResponse struct {
	File *FileRecord `json:"file"`
}

// FolderResponse wraps a single folder record.
type FolderResponse struct {
	Folder *FileRecord `json:"folder"`
}

// ListResponse wraps a record listing.
type ListResponse struct {
	Files []*FileRecord `json:"files"`
}

// UsageResponse reports a user's storage consumption.
type UsageResponse struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"` // 0 = unlimited
}
