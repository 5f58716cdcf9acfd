// Package database provides PostgreSQL persistence for users, files and
// annotations.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
)

// Repository defines the data operations the handlers depend on. File and
// annotation reads are always owner-scoped: a file owned by someone else is
// models.ErrNotFound, never the data.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)

	// Files
	CreateFile(ctx context.Context, f *models.File) (*models.File, error)
	FileByID(ctx context.Context, id, userID string) (*models.File, error)
	FilesByUser(ctx context.Context, userID string) ([]models.File, error)
	UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, pageCount int) error
	DeleteFile(ctx context.Context, id, userID string) (*models.File, error)

	// Annotations
	AnnotationsByFile(ctx context.Context, fileID string) ([]models.Annotation, error)
	ReplaceAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error

	// Close closes the database connection.
	Close()
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(cfg *config.Config, logger *zap.Logger) (Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresRepository{pool: pool, logger: logger}

	if err := repo.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Connected to PostgreSQL database")
	return repo, nil
}

// migrate creates the necessary database tables if they don't exist.
func (r *PostgresRepository) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			email VARCHAR(256) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS files (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(512) NOT NULL,
			original_name VARCHAR(512) NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			size BIGINT NOT NULL DEFAULT 0,
			mime VARCHAR(128) NOT NULL DEFAULT 'application/pdf',
			page_count INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL DEFAULT 'processing',
			storage_key TEXT NOT NULL DEFAULT '',
			upload_date TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_files_user_id ON files(user_id);

		CREATE TABLE IF NOT EXISTS annotations (
			id UUID PRIMARY KEY,
			file_id UUID NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			type VARCHAR(16) NOT NULL,
			page INTEGER NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			width DOUBLE PRECISION,
			height DOUBLE PRECISION,
			color VARCHAR(32) NOT NULL,
			content TEXT,
			font_size DOUBLE PRECISION,
			font_family VARCHAR(64),
			opacity DOUBLE PRECISION,
			stroke_width DOUBLE PRECISION,
			points JSONB,
			image_url TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_annotations_file_id ON annotations(file_id);
		CREATE INDEX IF NOT EXISTS idx_annotations_created_at ON annotations(created_at);
	`

	_, err := r.pool.Exec(ctx, query)
	return err
}

// CreateUser inserts a new account. A duplicate email is models.ErrEmailTaken.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrEmailTaken
	}

	r.logger.Info("Created user", zap.String("id", user.ID))
	return user, nil
}

// UserByEmail retrieves an account by email.
func (r *PostgresRepository) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

// UserByID retrieves an account by id.
func (r *PostgresRepository) UserByID(ctx context.Context, id string) (*models.User, error) {
	return r.scanUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// CreateFile inserts a file record with status processing.
func (r *PostgresRepository) CreateFile(ctx context.Context, f *models.File) (*models.File, error) {
	now := time.Now().UTC()
	f.ID = uuid.New().String()
	f.UploadDate = now
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = models.StatusProcessing
	}

	query := `
		INSERT INTO files (id, user_id, name, original_name, url, size, mime,
			page_count, status, storage_key, upload_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		f.ID, f.UserID, f.Name, f.OriginalName, f.URL, f.Size, f.MIME,
		f.PageCount, f.Status, f.StorageKey, f.UploadDate, f.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create file", zap.Error(err))
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	r.logger.Info("Created file", zap.String("id", f.ID), zap.String("user_id", f.UserID))
	return f, nil
}

const fileColumns = `id, user_id, name, original_name, url, size, mime,
	page_count, status, storage_key, upload_date, updated_at`

// FileByID retrieves a file owned by userID.
func (r *PostgresRepository) FileByID(ctx context.Context, id, userID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND user_id = $2`

	var f models.File
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&f.ID, &f.UserID, &f.Name, &f.OriginalName, &f.URL, &f.Size, &f.MIME,
		&f.PageCount, &f.Status, &f.StorageKey, &f.UploadDate, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get file", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &f, nil
}

// FilesByUser retrieves the caller's files, newest first.
func (r *PostgresRepository) FilesByUser(ctx context.Context, userID string) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 ORDER BY upload_date DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list files", zap.Error(err))
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		var f models.File
		if err := rows.Scan(
			&f.ID, &f.UserID, &f.Name, &f.OriginalName, &f.URL, &f.Size, &f.MIME,
			&f.PageCount, &f.Status, &f.StorageKey, &f.UploadDate, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UpdateFileStatus moves a file between processing/ready/error and records
// the page count once known.
func (r *PostgresRepository) UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, pageCount int) error {
	query := `UPDATE files SET status = $2, page_count = $3, updated_at = $4 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status, pageCount, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update file status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteFile removes an owned file; annotations cascade via the foreign
// key. The deleted record is returned so the caller can remove the blob.
func (r *PostgresRepository) DeleteFile(ctx context.Context, id, userID string) (*models.File, error) {
	f, err := r.FileByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		r.logger.Error("Failed to delete file", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to delete file: %w", err)
	}

	r.logger.Info("Deleted file", zap.String("id", id))
	return f, nil
}

// AnnotationsByFile retrieves a file's annotations ordered by creation
// time ascending.
func (r *PostgresRepository) AnnotationsByFile(ctx context.Context, fileID string) ([]models.Annotation, error) {
	query := `
		SELECT id, file_id, type, page, x, y, width, height, color, content,
			font_size, font_family, opacity, stroke_width, points, image_url,
			created_at, updated_at
		FROM annotations
		WHERE file_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, fileID)
	if err != nil {
		r.logger.Error("Failed to get annotations", zap.Error(err))
		return nil, fmt.Errorf("failed to get annotations: %w", err)
	}
	defer rows.Close()

	annotations := []models.Annotation{}
	for rows.Next() {
		var a models.Annotation
		var width, height, fontSize, opacity, strokeWidth *float64
		var content, fontFamily, imageURL *string
		var points []models.Point

		if err := rows.Scan(
			&a.ID, &a.FileID, &a.Type, &a.Page, &a.X, &a.Y, &width, &height,
			&a.Color, &content, &fontSize, &fontFamily, &opacity, &strokeWidth,
			&points, &imageURL, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}

		a.Width = deref(width)
		a.Height = deref(height)
		a.FontSize = deref(fontSize)
		a.Opacity = deref(opacity)
		a.StrokeWidth = deref(strokeWidth)
		a.Content = derefStr(content)
		a.FontFamily = derefStr(fontFamily)
		a.ImageURL = derefStr(imageURL)
		a.Points = points
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// ReplaceAnnotations deletes the file's stored set and inserts the given
// one in a single transaction, so two racing full-replace saves serialize
// instead of interleaving. Records arriving without an id get one;
// client-assigned ids are preserved.
func (r *PostgresRepository) ReplaceAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM annotations WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("failed to clear annotations: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO annotations (id, file_id, type, page, x, y, width, height,
			color, content, font_size, font_family, opacity, stroke_width,
			points, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	for i := range annotations {
		a := annotations[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}

		if _, err := tx.Exec(ctx, query,
			a.ID, fileID, a.Type, a.Page, a.X, a.Y,
			nullable(a.Width), nullable(a.Height), a.Color, nullableStr(a.Content),
			nullable(a.FontSize), nullableStr(a.FontFamily), nullable(a.Opacity),
			nullable(a.StrokeWidth), a.Points, nullableStr(a.ImageURL),
			a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert annotation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit annotations: %w", err)
	}

	r.logger.Info("Replaced annotations",
		zap.String("file_id", fileID),
		zap.Int("count", len(annotations)),
	)
	return nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
	r.logger.Info("Closed database connection")
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nullable(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullableStr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
