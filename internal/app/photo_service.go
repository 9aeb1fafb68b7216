// internal/app/photo_service.go
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/domain/photo"
)

var ErrInvalidImage = fmt.Errorf("payload is not a base64 encoded image")
var ErrInvalidStartDate = fmt.Errorf("start date must be RFC3339 with an offset")

// PhotoService implements the photo backend on top of a repository. It also
// owns the persisted start date.
type PhotoService struct {
	repo             photo.Repository
	clock            elapsed.Clock
	defaultStartDate string
	logger           *logrus.Entry

	mu      sync.Mutex
	entropy *rand.Rand

	listenersMu sync.RWMutex
	listeners   []func(photo.Change)
}

func NewPhotoService(repo photo.Repository, clock elapsed.Clock, defaultStartDate string, logger *logrus.Entry) *PhotoService {
	return &PhotoService{
		repo:             repo,
		clock:            clock,
		defaultStartDate: defaultStartDate,
		logger:           logger,
		entropy:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnChange registers fn to run after every successful photo or main photo
// mutation, whichever caller made it.
func (s *PhotoService) OnChange(fn func(photo.Change)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *PhotoService) notifyChange(c photo.Change) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.listeners {
		fn(c)
	}
}

func (s *PhotoService) newID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

// CreatePhoto validates the payload and stores it as a new gallery entry.
func (s *PhotoService) CreatePhoto(ctx context.Context, image string) (*photo.Photo, error) {
	dataURI, err := NormalizeImage(image)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	p := &photo.Photo{
		ID:          s.newID(now),
		ImageBase64: dataURI,
		UploadedAt:  now,
	}
	if err := s.repo.CreatePhoto(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}
	s.logger.WithField("photo_id", p.ID).Info("Photo uploaded")
	s.notifyChange(photo.PhotosChanged)
	return p, nil
}

func (s *PhotoService) ListPhotos(ctx context.Context) ([]*photo.Photo, error) {
	photos, err := s.repo.ListPhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

func (s *PhotoService) GetPhoto(ctx context.Context, id string) (*photo.Photo, error) {
	p, err := s.repo.GetPhoto(ctx, id)
	if err != nil {
		if errors.Is(err, photo.ErrPhotoNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photo %s: %w", id, err)
	}
	return p, nil
}

func (s *PhotoService) DeletePhoto(ctx context.Context, id string) error {
	if err := s.repo.DeletePhoto(ctx, id); err != nil {
		if errors.Is(err, photo.ErrPhotoNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete photo %s: %w", id, err)
	}
	s.logger.WithField("photo_id", id).Info("Photo deleted")
	s.notifyChange(photo.PhotosChanged)
	return nil
}

// GetMainPhoto returns the main photo data URI, or photo.ErrMainPhotoNotSet.
func (s *PhotoService) GetMainPhoto(ctx context.Context) (string, error) {
	image, err := s.repo.GetMainPhoto(ctx)
	if err != nil {
		if errors.Is(err, photo.ErrMainPhotoNotSet) {
			return "", err
		}
		return "", fmt.Errorf("failed to get main photo: %w", err)
	}
	return image, nil
}

func (s *PhotoService) SetMainPhoto(ctx context.Context, image string) error {
	dataURI, err := NormalizeImage(image)
	if err != nil {
		return err
	}
	if err := s.repo.SetMainPhoto(ctx, dataURI); err != nil {
		return fmt.Errorf("failed to set main photo: %w", err)
	}
	s.logger.Info("Main photo updated")
	s.notifyChange(photo.MainPhotoChanged)
	return nil
}

// StartDate returns the stored start date, seeding the default on first use.
func (s *PhotoService) StartDate(ctx context.Context) (string, error) {
	startDate, err := s.repo.GetStartDate(ctx)
	if err == nil {
		return startDate, nil
	}
	if !errors.Is(err, photo.ErrStartDateNotSet) {
		return "", fmt.Errorf("failed to get start date: %w", err)
	}

	s.logger.WithField("start_date", s.defaultStartDate).Info("No start date stored, seeding default")
	if err := s.repo.SetStartDate(ctx, s.defaultStartDate, s.clock.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to seed start date: %w", err)
	}
	return s.defaultStartDate, nil
}

// SetStartDate replaces the stored start date. Running trackers keep their
// epoch until the next start.
func (s *PhotoService) SetStartDate(ctx context.Context, startDate string) error {
	if _, err := elapsed.ParseEpoch(startDate); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStartDate, err)
	}
	if err := s.repo.SetStartDate(ctx, startDate, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set start date: %w", err)
	}
	s.logger.WithField("start_date", startDate).Info("Start date updated")
	return nil
}

// Epoch resolves the stored start date into the tracker epoch.
func (s *PhotoService) Epoch(ctx context.Context) (time.Time, error) {
	startDate, err := s.StartDate(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return elapsed.ParseEpoch(startDate)
}

// NormalizeImage accepts either a data URI or bare base64 and returns a data
// URI whose payload sniffs as an image.
func NormalizeImage(image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", ErrInvalidImage
	}

	payload := image
	isDataURI := strings.HasPrefix(image, "data:")
	if isDataURI {
		header, data, found := strings.Cut(image, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return "", ErrInvalidImage
		}
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}

	mtype := mimetype.Detect(raw)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrInvalidImage, mtype.String())
	}
	if isDataURI {
		return image, nil
	}
	return "data:" + mtype.String() + ";base64," + payload, nil
}
