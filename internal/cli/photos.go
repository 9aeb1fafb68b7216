package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"elapsed_tracker/internal/domain/photo"
	"elapsed_tracker/internal/infra/config"
	"elapsed_tracker/internal/infra/database"
)

func init() {
	cmd := &cobra.Command{
		Use:   "photos",
		Short: "List the photos in storage",
		Run:   runPhotos,
	}

	cmd.Flags().StringP("db", "d", "", "Database URL or sqlite path (default: $DATABASE_URL)")

	RootCmd.AddCommand(cmd)
}

func runPhotos(cmd *cobra.Command, args []string) {
	dbURL, _ := cmd.Flags().GetString("db")
	if dbURL == "" {
		cfg, err := config.Load()
		if err != nil {
			exitErr("load config", err)
		}
		dbURL = cfg.DatabaseURL
	}

	repo, closeRepo, err := database.OpenPhotoRepository(dbURL)
	if err != nil {
		exitErr("open storage", err)
	}
	defer closeRepo()

	photos, err := repo.ListPhotos(cmd.Context())
	if err != nil {
		exitErr("list photos", err)
	}

	if err := writePhotos(cmd.OutOrStdout(), photos, formatFlag, time.Now()); err != nil {
		exitErr("write photos", err)
	}
}

func writePhotos(w io.Writer, photos []*photo.Photo, format string, now time.Time) error {
	switch format {
	case "json":
		type listed struct {
			ID         string    `json:"id"`
			UploadedAt time.Time `json:"uploaded_at"`
			Bytes      uint64    `json:"bytes"`
		}
		out := make([]listed, 0, len(photos))
		for _, p := range photos {
			out = append(out, listed{ID: p.ID, UploadedAt: p.UploadedAt, Bytes: imageSize(p)})
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "text":
		_, err := io.WriteString(w, formatPhotoTable(photos, now))
		return err
	default:
		return fmt.Errorf("unknown format %q: use json or text", format)
	}
}

func formatPhotoTable(photos []*photo.Photo, now time.Time) string {
	if len(photos) == 0 {
		return "no photos\n"
	}
	var sb strings.Builder
	for _, p := range photos {
		fmt.Fprintf(&sb, "%s\t%s\t%s\n", p.ID, humanize.RelTime(p.UploadedAt, now, "ago", "from now"), humanize.Bytes(imageSize(p)))
	}
	return sb.String()
}

// imageSize estimates the decoded size of the base64 payload.
func imageSize(p *photo.Photo) uint64 {
	payload := p.ImageBase64
	if _, data, found := strings.Cut(payload, ","); found {
		payload = data
	}
	payload = strings.TrimRight(payload, "=")
	return uint64(len(payload)) * 3 / 4
}
