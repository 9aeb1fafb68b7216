package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"elapsed_tracker/internal/domain/photo"
)

// Gallery is the client-side view of the photo backend. It caches the photo
// list and main photo, and after every mutation it drops the cache and
// refetches from the backend instead of merging locally. Mutations made by
// other writers reach it through Invalidate.
type Gallery struct {
	backend photo.Backend
	logger  *logrus.Entry

	// Set without holding mu, so backend change hooks may fire while a
	// gallery mutation holds the lock.
	photosStale atomic.Bool
	mainStale   atomic.Bool

	mu         sync.Mutex
	photos     []*photo.Photo
	photosOK   bool
	mainPhoto  string
	mainLoaded bool
}

func NewGallery(backend photo.Backend, logger *logrus.Entry) *Gallery {
	return &Gallery{backend: backend, logger: logger}
}

// Invalidate marks a cache stale after a mutation made outside the gallery.
// The next read refetches it.
func (g *Gallery) Invalidate(c photo.Change) {
	switch c {
	case photo.PhotosChanged:
		g.photosStale.Store(true)
	case photo.MainPhotoChanged:
		g.mainStale.Store(true)
	}
}

func (g *Gallery) dropStaleLocked() {
	if g.photosStale.Swap(false) {
		g.photosOK = false
	}
	if g.mainStale.Swap(false) {
		g.mainLoaded = false
	}
}

// Photos returns the cached list, fetching it when the cache is empty.
func (g *Gallery) Photos(ctx context.Context) ([]*photo.Photo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropStaleLocked()
	if !g.photosOK {
		if err := g.refetchPhotosLocked(ctx); err != nil {
			return nil, err
		}
	}
	return g.photos, nil
}

// Photo fetches a single photo straight from the backend.
func (g *Gallery) Photo(ctx context.Context, id string) (*photo.Photo, error) {
	return g.backend.GetPhoto(ctx, id)
}

// MainPhoto returns the main photo data URI; empty when none is set.
func (g *Gallery) MainPhoto(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropStaleLocked()
	if !g.mainLoaded {
		if err := g.refetchMainLocked(ctx); err != nil {
			return "", err
		}
	}
	return g.mainPhoto, nil
}

// Refresh drops both caches and refetches them.
func (g *Gallery) Refresh(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.photosStale.Store(false)
	g.mainStale.Store(false)
	g.photosOK, g.mainLoaded = false, false
	if err := g.refetchPhotosLocked(ctx); err != nil {
		return err
	}
	return g.refetchMainLocked(ctx)
}

// Upload creates a photo and refetches the list.
func (g *Gallery) Upload(ctx context.Context, image string) (*photo.Photo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	created, err := g.backend.CreatePhoto(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("upload photo: %w", err)
	}
	g.dropStaleLocked()
	g.photosOK = false
	g.refetchAfterMutation(ctx, g.refetchPhotosLocked)
	return created, nil
}

// Delete removes a photo and refetches the list.
func (g *Gallery) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.backend.DeletePhoto(ctx, id); err != nil {
		return fmt.Errorf("delete photo %s: %w", id, err)
	}
	g.dropStaleLocked()
	g.photosOK = false
	g.refetchAfterMutation(ctx, g.refetchPhotosLocked)
	return nil
}

// ChangeMainPhoto replaces the main photo and refetches it.
func (g *Gallery) ChangeMainPhoto(ctx context.Context, image string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.backend.SetMainPhoto(ctx, image); err != nil {
		return fmt.Errorf("set main photo: %w", err)
	}
	g.dropStaleLocked()
	g.mainLoaded = false
	g.refetchAfterMutation(ctx, g.refetchMainLocked)
	return nil
}

// The mutation already succeeded, so a failed refetch only leaves the cache
// invalid for the next read.
func (g *Gallery) refetchAfterMutation(ctx context.Context, refetch func(context.Context) error) {
	if err := refetch(ctx); err != nil {
		g.logger.WithError(err).Warn("Refetch after gallery mutation failed")
	}
}

func (g *Gallery) refetchPhotosLocked(ctx context.Context) error {
	galleryRefetchCounter.WithLabelValues("photos").Inc()
	photos, err := g.backend.ListPhotos(ctx)
	if err != nil {
		return fmt.Errorf("fetch photos: %w", err)
	}
	g.photos = photos
	g.photosOK = true
	return nil
}

func (g *Gallery) refetchMainLocked(ctx context.Context) error {
	galleryRefetchCounter.WithLabelValues("main_photo").Inc()
	image, err := g.backend.GetMainPhoto(ctx)
	if err != nil && !errors.Is(err, photo.ErrMainPhotoNotSet) {
		return fmt.Errorf("fetch main photo: %w", err)
	}
	g.mainPhoto = image
	g.mainLoaded = true
	return nil
}
