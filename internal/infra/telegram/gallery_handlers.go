package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"elapsed_tracker/internal/app"
	"elapsed_tracker/internal/domain/photo"
)

const (
	maxUploadBytes  = 10 << 20
	photoListLimit  = 10
	mainPhotoMarker = "main"
)

// Gallery is the photo view the bot works against.
type Gallery interface {
	Photos(ctx context.Context) ([]*photo.Photo, error)
	Photo(ctx context.Context, id string) (*photo.Photo, error)
	MainPhoto(ctx context.Context) (string, error)
	Upload(ctx context.Context, image string) (*photo.Photo, error)
	Delete(ctx context.Context, id string) error
	ChangeMainPhoto(ctx context.Context, image string) error
}

type galleryHandlers struct {
	ctx         context.Context
	gallery     Gallery
	ownerChatID int64
	logger      *logrus.Entry
	download    func(*telebot.File) (io.ReadCloser, error)
}

// RegisterGalleryHandlers registers the photo commands and the photo upload handler.
// Only the owner chat may use them.
func RegisterGalleryHandlers(ctx context.Context, b *telebot.Bot, gallery Gallery, ownerChatID int64, baseLogger *logrus.Entry) {
	h := &galleryHandlers{
		ctx:         ctx,
		gallery:     gallery,
		ownerChatID: ownerChatID,
		logger:      baseLogger,
		download:    b.File,
	}
	b.Handle("/photos", h.ownerOnly("/photos", h.listPhotos))
	b.Handle("/photo", h.ownerOnly("/photo", h.showPhoto))
	b.Handle("/delete_photo", h.ownerOnly("/delete_photo", h.deletePhoto))
	b.Handle("/mainphoto", h.ownerOnly("/mainphoto", h.mainPhoto))
	b.Handle(telebot.OnPhoto, h.ownerOnly("photo_upload", h.uploadPhoto))
}

func (h *galleryHandlers) ownerOnly(handler string, next func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := h.logger.WithFields(logrus.Fields{
			"handler": handler,
			"chat_id": c.Chat().ID,
		})
		handlerLogger.Info("Command received")
		if c.Chat().ID != h.ownerChatID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Sorry, this gallery is private.")
		}
		return next(c, handlerLogger)
	}
}

func (h *galleryHandlers) listPhotos(c telebot.Context, log *logrus.Entry) error {
	photos, err := h.gallery.Photos(h.ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list photos")
		return c.Send("Could not load the gallery right now.")
	}
	return c.Send(formatPhotoList(photos, time.Now()))
}

func (h *galleryHandlers) showPhoto(c telebot.Context, log *logrus.Entry) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /photo <id>")
	}
	p, err := h.gallery.Photo(h.ctx, args[0])
	if err != nil {
		if errors.Is(err, photo.ErrPhotoNotFound) {
			return c.Send(fmt.Sprintf("No photo with ID %s.", args[0]))
		}
		log.WithError(err).Error("Failed to get photo")
		return c.Send("Could not load that photo right now.")
	}
	return sendImage(c, p.ImageBase64, fmt.Sprintf("%s, uploaded %s", p.ID, humanize.Time(p.UploadedAt)))
}

func (h *galleryHandlers) deletePhoto(c telebot.Context, log *logrus.Entry) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /delete_photo <id>")
	}
	if err := h.gallery.Delete(h.ctx, args[0]); err != nil {
		if errors.Is(err, photo.ErrPhotoNotFound) {
			return c.Send(fmt.Sprintf("No photo with ID %s.", args[0]))
		}
		log.WithError(err).Error("Failed to delete photo")
		return c.Send("Could not delete that photo right now.")
	}
	log.WithField("photo_id", args[0]).Info("Photo deleted")
	return c.Send(fmt.Sprintf("Deleted photo %s.", args[0]))
}

func (h *galleryHandlers) mainPhoto(c telebot.Context, log *logrus.Entry) error {
	image, err := h.gallery.MainPhoto(h.ctx)
	if err != nil {
		log.WithError(err).Error("Failed to get main photo")
		return c.Send("Could not load the main photo right now.")
	}
	if image == "" {
		return c.Send("No main photo yet. Send a photo captioned \"main\" to set one.")
	}
	return sendImage(c, image, "")
}

func (h *galleryHandlers) uploadPhoto(c telebot.Context, log *logrus.Entry) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return c.Send("Send the photo as an image message.")
	}
	rc, err := h.download(&msg.Photo.File)
	if err != nil {
		log.WithError(err).Error("Failed to download photo")
		return c.Send("Could not download that photo.")
	}
	defer rc.Close()

	encoded, err := encodeUpload(rc)
	if err != nil {
		log.WithError(err).Warn("Rejected upload")
		return c.Send(err.Error())
	}

	p, err := h.gallery.Upload(h.ctx, encoded)
	if err != nil {
		log.WithError(err).Error("Failed to upload photo")
		return c.Send("Could not save that photo.")
	}
	log = log.WithField("photo_id", p.ID)
	log.Info("Photo uploaded")

	if isMainCaption(msg.Caption) {
		if err := h.gallery.ChangeMainPhoto(h.ctx, p.ImageBase64); err != nil {
			log.WithError(err).Error("Failed to set main photo")
			return c.Send(fmt.Sprintf("Saved photo %s, but could not make it the main photo.", p.ID))
		}
		return c.Send(fmt.Sprintf("Saved photo %s and made it the main photo.", p.ID))
	}
	return c.Send(fmt.Sprintf("Saved photo %s.", p.ID))
}

func sendImage(c telebot.Context, image, caption string) error {
	raw, err := decodeImage(image)
	if err != nil {
		return c.Send("That photo could not be decoded.")
	}
	return c.Send(&telebot.Photo{File: telebot.FromReader(bytes.NewReader(raw)), Caption: caption})
}

// encodeUpload reads an uploaded file and returns it as bare base64.
func encodeUpload(r io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("could not read the photo: %w", err)
	}
	if len(raw) > maxUploadBytes {
		return "", fmt.Errorf("photo is larger than %s", humanize.IBytes(maxUploadBytes))
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("photo is empty")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// decodeImage accepts a data URI or bare base64 and returns the raw bytes.
func decodeImage(image string) ([]byte, error) {
	if strings.HasPrefix(image, "data:") {
		comma := strings.IndexByte(image, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		image = image[comma+1:]
	}
	return base64.StdEncoding.DecodeString(image)
}

func isMainCaption(caption string) bool {
	return strings.EqualFold(strings.TrimSpace(caption), mainPhotoMarker)
}

func formatPhotoList(photos []*photo.Photo, now time.Time) string {
	if len(photos) == 0 {
		return "The gallery is empty. Send a photo to add one."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d photos in the gallery", len(photos))
	if len(photos) > photoListLimit {
		fmt.Fprintf(&sb, " (showing the latest %d)", photoListLimit)
	}
	sb.WriteString(":\n")
	for i, p := range photos {
		if i == photoListLimit {
			break
		}
		fmt.Fprintf(&sb, "\n%s, %s", p.ID, humanize.RelTime(p.UploadedAt, now, "ago", "from now"))
	}
	return sb.String()
}

var _ Gallery = (*app.Gallery)(nil)
