package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"elapsed_tracker/internal/domain/photo"
)

// SQLitePhotoRepository implements photo.Repository using SQLite.
// Timestamps are stored as RFC3339Nano text in UTC.
type SQLitePhotoRepository struct {
	db *sql.DB
}

// NewSQLitePhotoRepository opens or creates the database at path and migrates it.
func NewSQLitePhotoRepository(path string) (*SQLitePhotoRepository, error) {
	db, err := NewSQLiteConnection(path)
	if err != nil {
		return nil, err
	}
	r := &SQLitePhotoRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLitePhotoRepository) Close() error {
	return r.db.Close()
}

func (r *SQLitePhotoRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id           TEXT PRIMARY KEY,
		image_base64 TEXT NOT NULL,
		uploaded_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_photos_uploaded ON photos(uploaded_at DESC);

	CREATE TABLE IF NOT EXISTS main_photo (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		image_base64 TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relationship (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		start_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLitePhotoRepository) CreatePhoto(ctx context.Context, p *photo.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO photos (id, image_base64, uploaded_at) VALUES (?, ?, ?)`,
		p.ID, p.ImageBase64, formatTime(p.UploadedAt))
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

func (r *SQLitePhotoRepository) GetPhoto(ctx context.Context, id string) (*photo.Photo, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, image_base64, uploaded_at FROM photos WHERE id = ?`, id)
	p, err := scanPhoto(row)
	if err == sql.ErrNoRows {
		return nil, photo.ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (r *SQLitePhotoRepository) ListPhotos(ctx context.Context) ([]*photo.Photo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, image_base64, uploaded_at FROM photos ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := make([]*photo.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *SQLitePhotoRepository) DeletePhoto(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if n == 0 {
		return photo.ErrPhotoNotFound
	}
	return nil
}

func (r *SQLitePhotoRepository) GetMainPhoto(ctx context.Context) (string, error) {
	var image string
	err := r.db.QueryRowContext(ctx, `SELECT image_base64 FROM main_photo WHERE id = 1`).Scan(&image)
	if err == sql.ErrNoRows {
		return "", photo.ErrMainPhotoNotSet
	}
	if err != nil {
		return "", fmt.Errorf("get main photo: %w", err)
	}
	return image, nil
}

func (r *SQLitePhotoRepository) SetMainPhoto(ctx context.Context, image string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO main_photo (id, image_base64, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET image_base64 = excluded.image_base64, updated_at = excluded.updated_at`,
		image, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set main photo: %w", err)
	}
	return nil
}

func (r *SQLitePhotoRepository) GetStartDate(ctx context.Context) (string, error) {
	var startDate string
	err := r.db.QueryRowContext(ctx, `SELECT start_date FROM relationship WHERE id = 1`).Scan(&startDate)
	if err == sql.ErrNoRows {
		return "", photo.ErrStartDateNotSet
	}
	if err != nil {
		return "", fmt.Errorf("get start date: %w", err)
	}
	return startDate, nil
}

func (r *SQLitePhotoRepository) SetStartDate(ctx context.Context, startDate string, createdAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO relationship (id, start_date, created_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET start_date = excluded.start_date, created_at = excluded.created_at`,
		startDate, formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("set start date: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(s rowScanner) (*photo.Photo, error) {
	var p photo.Photo
	var uploadedAt string
	if err := s.Scan(&p.ID, &p.ImageBase64, &uploadedAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded_at %q: %w", uploadedAt, err)
	}
	p.UploadedAt = t
	return &p, nil
}

// Fixed-width so lexical order matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
