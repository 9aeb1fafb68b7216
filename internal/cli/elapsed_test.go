package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/domain/photo"
)

func TestRenderElapsed_Text(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	at := epoch.AddDate(1, 2, 3).Add(4*time.Hour + 5*time.Minute + 6*time.Second)

	var buf bytes.Buffer
	require.NoError(t, renderElapsed(&buf, epoch, at, "text"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1y 2mo 3d 4h 5m 6s", lines[0])
	assert.Equal(t, "1 years, 4 hours, 5 minutes", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "since 2025-01-25T20:30:00+03:00"))
}

func TestRenderElapsed_JSON(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)

	var buf bytes.Buffer
	require.NoError(t, renderElapsed(&buf, epoch, epoch.Add(90*time.Minute), "json"))

	var out elapsedOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, elapsed.Breakdown{Hours: 1, Minutes: 30}, out.Breakdown)
	assert.Equal(t, int64(1), out.HourBucket)
	assert.Equal(t, "0 months, 1 hours, 30 minutes", out.Summary)
}

func TestRenderElapsed_BeforeEpochIsZero(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)

	var buf bytes.Buffer
	require.NoError(t, renderElapsed(&buf, epoch, epoch.Add(-time.Hour), "text"))
	assert.True(t, strings.HasPrefix(buf.String(), "0y 0mo 0d 0h 0m 0s\n"))
}

func TestRenderElapsed_UnknownFormat(t *testing.T) {
	err := renderElapsed(&bytes.Buffer{}, time.Now(), time.Now(), "yaml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestElapsedCommand(t *testing.T) {
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs([]string{"elapsed",
		"--epoch", "2025-01-31T00:00:00Z",
		"--at", "2025-03-01T00:00:00Z",
		"--format", "text",
	})
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetArgs(nil)
	})

	require.NoError(t, RootCmd.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "0y 0mo 29d 0h 0m 0s\n"), buf.String())
}

func TestFormatPhotoTable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "no photos\n", formatPhotoTable(nil, now))

	photos := []*photo.Photo{{
		ID:          "01A",
		ImageBase64: "data:image/jpeg;base64," + strings.Repeat("A", 4000),
		UploadedAt:  now.Add(-3 * time.Hour),
	}}
	assert.Equal(t, "01A\t3 hours ago\t3.0 kB\n", formatPhotoTable(photos, now))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWritePhotos(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	photos := []*photo.Photo{{ID: "01A", ImageBase64: "data:image/jpeg;base64,AAAA", UploadedAt: now}}

	var buf bytes.Buffer
	require.NoError(t, writePhotos(&buf, photos, "json", now))
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "01A", listed[0]["id"])
	assert.Equal(t, float64(3), listed[0]["bytes"])

	assert.ErrorContains(t, writePhotos(&bytes.Buffer{}, photos, "yaml", now), "unknown format")
}

func TestWritePhotos_ReportsWriteErrors(t *testing.T) {
	photos := []*photo.Photo{{ID: "01A", UploadedAt: time.Now()}}
	assert.Error(t, writePhotos(failingWriter{}, photos, "json", time.Now()))
	assert.Error(t, writePhotos(failingWriter{}, photos, "text", time.Now()))
}
