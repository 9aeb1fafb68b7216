// internal/domain/photo/photo.go
package photo

import "time"

// Photo is one gallery entry. ImageBase64 holds a data URI
// ("data:image/jpeg;base64,...").
type Photo struct {
	ID          string    `json:"id"`
	ImageBase64 string    `json:"image_base64"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
