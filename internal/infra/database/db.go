package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"elapsed_tracker/internal/domain/photo"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// IsPostgresURL reports whether the database URL points at PostgreSQL.
func IsPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

// OpenPhotoRepository opens the repository matching the database URL: a
// postgres:// URL uses PostgreSQL, anything else is a SQLite file path.
// The returned close function releases the connection.
func OpenPhotoRepository(databaseURL string) (photo.Repository, func() error, error) {
	if IsPostgresURL(databaseURL) {
		db, err := NewPostgresConnection(databaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := NewPostgresPhotoRepository(db)
		if err := repo.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
		return repo, db.Close, nil
	}

	repo, err := NewSQLitePhotoRepository(strings.TrimPrefix(databaseURL, "sqlite://"))
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewSQLiteConnection opens or creates a SQLite database file.
func NewSQLiteConnection(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the tracker and the API.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
