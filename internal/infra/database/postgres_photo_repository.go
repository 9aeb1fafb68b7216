// internal/infra/database/postgres_photo_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"elapsed_tracker/internal/domain/photo"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS photos (
	id           TEXT PRIMARY KEY,
	image_base64 TEXT NOT NULL,
	uploaded_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_photos_uploaded ON photos(uploaded_at DESC);

CREATE TABLE IF NOT EXISTS main_photo (
	id           SMALLINT PRIMARY KEY CHECK (id = 1),
	image_base64 TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS relationship (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	start_date TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresPhotoRepository struct {
	db *sql.DB
}

func NewPostgresPhotoRepository(db *sql.DB) *PostgresPhotoRepository {
	return &PostgresPhotoRepository{db: db}
}

// Migrate creates the tables when missing.
func (r *PostgresPhotoRepository) Migrate() error {
	_, err := r.db.Exec(postgresSchema)
	return err
}

func (r *PostgresPhotoRepository) CreatePhoto(ctx context.Context, p *photo.Photo) error {
	query := `INSERT INTO photos (id, image_base64, uploaded_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.ImageBase64, p.UploadedAt); err != nil {
		return fmt.Errorf("error creating photo: %w", err)
	}
	return nil
}

func (r *PostgresPhotoRepository) GetPhoto(ctx context.Context, id string) (*photo.Photo, error) {
	query := `SELECT id, image_base64, uploaded_at FROM photos WHERE id = $1`
	p := &photo.Photo{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.ImageBase64, &p.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, photo.ErrPhotoNotFound
		}
		return nil, fmt.Errorf("error getting photo by ID: %w", err)
	}
	p.UploadedAt = p.UploadedAt.UTC()
	return p, nil
}

func (r *PostgresPhotoRepository) ListPhotos(ctx context.Context) ([]*photo.Photo, error) {
	query := `SELECT id, image_base64, uploaded_at FROM photos ORDER BY uploaded_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing photos: %w", err)
	}
	defer rows.Close()

	photos := make([]*photo.Photo, 0)
	for rows.Next() {
		p := &photo.Photo{}
		if err := rows.Scan(&p.ID, &p.ImageBase64, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("error scanning photo: %w", err)
		}
		p.UploadedAt = p.UploadedAt.UTC()
		photos = append(photos, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

func (r *PostgresPhotoRepository) DeletePhoto(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting photo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading deleted rows: %w", err)
	}
	if n == 0 {
		return photo.ErrPhotoNotFound
	}
	return nil
}

func (r *PostgresPhotoRepository) GetMainPhoto(ctx context.Context) (string, error) {
	var image string
	err := r.db.QueryRowContext(ctx, `SELECT image_base64 FROM main_photo WHERE id = 1`).Scan(&image)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", photo.ErrMainPhotoNotSet
		}
		return "", fmt.Errorf("error getting main photo: %w", err)
	}
	return image, nil
}

func (r *PostgresPhotoRepository) SetMainPhoto(ctx context.Context, image string) error {
	query := `INSERT INTO main_photo (id, image_base64, updated_at) VALUES (1, $1, NOW())
               ON CONFLICT (id) DO UPDATE SET image_base64 = EXCLUDED.image_base64, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, image); err != nil {
		return fmt.Errorf("error setting main photo: %w", err)
	}
	return nil
}

func (r *PostgresPhotoRepository) GetStartDate(ctx context.Context) (string, error) {
	var startDate string
	err := r.db.QueryRowContext(ctx, `SELECT start_date FROM relationship WHERE id = 1`).Scan(&startDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", photo.ErrStartDateNotSet
		}
		return "", fmt.Errorf("error getting start date: %w", err)
	}
	return startDate, nil
}

func (r *PostgresPhotoRepository) SetStartDate(ctx context.Context, startDate string, createdAt time.Time) error {
	query := `INSERT INTO relationship (id, start_date, created_at) VALUES (1, $1, $2)
               ON CONFLICT (id) DO UPDATE SET start_date = EXCLUDED.start_date, created_at = EXCLUDED.created_at`
	if _, err := r.db.ExecContext(ctx, query, startDate, createdAt); err != nil {
		return fmt.Errorf("error setting start date: %w", err)
	}
	return nil
}
