package photo

import (
	"context"
	"fmt"
	"time"
)

var ErrPhotoNotFound = fmt.Errorf("photo not found")
var ErrMainPhotoNotSet = fmt.Errorf("main photo not set")
var ErrStartDateNotSet = fmt.Errorf("start date not set")

// Repository persists photos, the main photo slot and the start date.
type Repository interface {
	CreatePhoto(ctx context.Context, p *Photo) error
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	ListPhotos(ctx context.Context) ([]*Photo, error) // Newest first
	DeletePhoto(ctx context.Context, id string) error

	GetMainPhoto(ctx context.Context) (string, error)
	SetMainPhoto(ctx context.Context, image string) error

	GetStartDate(ctx context.Context) (string, error)
	SetStartDate(ctx context.Context, startDate string, createdAt time.Time) error
}

// Backend is the photo surface consumed by the gallery. It is served either
// in-process by the photo service or remotely over HTTP.
type Backend interface {
	ListPhotos(ctx context.Context) ([]*Photo, error)
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	CreatePhoto(ctx context.Context, image string) (*Photo, error)
	DeletePhoto(ctx context.Context, id string) error
	GetMainPhoto(ctx context.Context) (string, error)
	SetMainPhoto(ctx context.Context, image string) error
}

// Change names the part of the gallery a mutation touched.
type Change int

const (
	PhotosChanged Change = iota
	MainPhotoChanged
)
