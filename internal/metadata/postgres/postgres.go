// Package postgres provides the PostgreSQL-backed file metadata store.
//
// Files and folders live in one table; a folder is a row with is_folder TRUE,
// zero size, an empty file URL and type "folder". Every query filters by
// user_id together with the record id, so records of other owners behave as
// if they do not exist.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dropit/dropit/internal/logging"
	"github.com/dropit/dropit/internal/metrics"
)

// ErrNotFound is returned when no record matches (id, owner) — including
// records that exist but belong to a different owner.
var ErrNotFound = errors.New("record not found")

// Store is a PostgreSQL metadata store.
type Store struct {
	db *sql.DB
}

// FileRow maps to the files table.
type FileRow struct {
	ID           string
	Name         string
	Path         string
	Size         int64
	Type         string
	FileURL      string
	ThumbnailURL *string
	UserID       string
	ParentID     *string
	IsFolder     bool
	IsStarred    bool
	IsTrashed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const fileColumns = `id, name, path, size, type, file_url, thumbnail_url,
	user_id, parent_id, is_folder, is_starred, is_trashed, created_at, updated_at`

// New creates a new PostgreSQL metadata store.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(s.db.Stats().OpenConnections)
}

// Migrate runs SQL migration files.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFileRow(sc rowScanner) (*FileRow, error) {
	var f FileRow
	var thumbnailURL, parentID sql.NullString
	err := sc.Scan(&f.ID, &f.Name, &f.Path, &f.Size, &f.Type, &f.FileURL,
		&thumbnailURL, &f.UserID, &parentID, &f.IsFolder, &f.IsStarred,
		&f.IsTrashed, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if thumbnailURL.Valid {
		f.ThumbnailURL = &thumbnailURL.String
	}
	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	return &f, nil
}

// Insert creates a new file or folder record. Timestamps are assigned by the
// database and written back into f.
func (s *Store) Insert(ctx context.Context, f *FileRow) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_file", time.Since(start)) }()

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO files (id, name, path, size, type, file_url, thumbnail_url,
		                    user_id, parent_id, is_folder, is_starred, is_trashed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		f.ID, f.Name, f.Path, f.Size, f.Type, f.FileURL, f.ThumbnailURL,
		f.UserID, f.ParentID, f.IsFolder, f.IsStarred, f.IsTrashed,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	logging.Debug("inserted record",
		zap.String("id", f.ID),
		zap.String("name", f.Name),
		zap.Bool("is_folder", f.IsFolder))
	return nil
}

// Get returns the record with the given id owned by userID.
func (s *Store) Get(ctx context.Context, id, userID string) (*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_file", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 AND user_id = $2`,
		id, userID)
	f, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// GetFolder returns the folder with the given id owned by userID.
// A file with that id, or a folder of another owner, yields ErrNotFound.
func (s *Store) GetFolder(ctx context.Context, id, userID string) (*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_folder", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE id = $1 AND user_id = $2 AND is_folder = TRUE`,
		id, userID)
	f, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return f, nil
}

// ToggleStar flips is_starred in a single atomic update scoped by (id, owner)
// and returns the updated record.
func (s *Store) ToggleStar(ctx context.Context, id, userID string) (*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("toggle_star", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`UPDATE files SET is_starred = NOT is_starred, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+fileColumns,
		id, userID)
	f, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle star: %w", err)
	}

	logging.Debug("toggled star",
		zap.String("id", id),
		zap.Bool("is_starred", f.IsStarred))
	return f, nil
}

// ToggleTrash flips is_trashed in a single atomic update scoped by (id, owner)
// and returns the updated record. Trash is a flag, not a delete.
func (s *Store) ToggleTrash(ctx context.Context, id, userID string) (*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("toggle_trash", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`UPDATE files SET is_trashed = NOT is_trashed, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+fileColumns,
		id, userID)
	f, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle trash: %w", err)
	}

	logging.Debug("toggled trash",
		zap.String("id", id),
		zap.Bool("is_trashed", f.IsTrashed))
	return f, nil
}

// Rename updates the display name of a record scoped by (id, owner).
// The storage path is untouched; only the user-visible name changes.
func (s *Store) Rename(ctx context.Context, id, userID, name string) (*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("rename_file", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`UPDATE files SET name = $3, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+fileColumns,
		id, userID, name)
	f, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rename file: %w", err)
	}
	return f, nil
}

// ListChildren returns the non-trashed records of a user under parentID.
// A nil parentID lists the root.
func (s *Store) ListChildren(ctx context.Context, userID string, parentID *string) ([]*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_children", time.Since(start)) }()

	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+fileColumns+` FROM files
			 WHERE user_id = $1 AND parent_id IS NULL AND is_trashed = FALSE
			 ORDER BY is_folder DESC, name`,
			userID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+fileColumns+` FROM files
			 WHERE user_id = $1 AND parent_id = $2 AND is_trashed = FALSE
			 ORDER BY is_folder DESC, name`,
			userID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// ListStarred returns the user's starred, non-trashed records.
func (s *Store) ListStarred(ctx context.Context, userID string) ([]*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_starred", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE user_id = $1 AND is_starred = TRUE AND is_trashed = FALSE
		 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list starred: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// ListTrash returns the user's trashed records.
func (s *Store) ListTrash(ctx context.Context, userID string) ([]*FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_trash", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE user_id = $1 AND is_trashed = TRUE
		 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// StorageUsed returns the sum of the user's non-trashed file sizes.
func (s *Store) StorageUsed(ctx context.Context, userID string) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("storage_used", time.Since(start)) }()

	var used int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM files
		 WHERE user_id = $1 AND is_folder = FALSE AND is_trashed = FALSE`,
		userID).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("storage used: %w", err)
	}
	return used, nil
}

func collectRows(rows *sql.Rows) ([]*FileRow, error) {
	var out []*FileRow
	for rows.Next() {
		f, err := scanFileRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
