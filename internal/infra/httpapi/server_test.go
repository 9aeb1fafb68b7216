package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elapsed_tracker/internal/app"
	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/domain/photo"
	"elapsed_tracker/internal/infra/database"
)

// 1x1 JPEG.
const tinyJPEG = "/9j/4AAQSkZJRgABAQEAYABgAAD/2wBDAAEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQH/2wBDAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQH/wAARCAABAAEDASIAAhEBAxEB/8QAFQABAQAAAAAAAAAAAAAAAAAAAAv/xAAUEAEAAAAAAAAAAAAAAAAAAAAA/8QAFQEBAQAAAAAAAAAAAAAAAAAAAAX/xAAUEQEAAAAAAAAAAAAAAAAAAAAA/9oADAMBAAIRAxEAPwA/8A8A"

type fixedReader app.Reading

func (r fixedReader) Read() app.Reading {
	return app.Reading(r)
}

func testLogger() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := database.NewSQLitePhotoRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	epoch, err := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	require.NoError(t, err)
	now := epoch.Add(26*time.Hour + 5*time.Minute)
	photos := app.NewPhotoService(repo, elapsed.FixedClock(now), elapsed.DefaultEpoch, testLogger())
	reader := fixedReader{
		Epoch:      epoch,
		At:         now,
		Breakdown:  elapsed.Decompose(epoch, now),
		HourBucket: elapsed.HourBucket(epoch, now),
	}

	reg := prometheus.NewRegistry()
	return NewServer(photos, reader, testLogger(), WithRegistry(reg, reg))
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandleRoot(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.handleRoot(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Elapsed Tracker API"}`, rec.Body.String())
}

func TestPhotosLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/photos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/photos", `{"image_base64":"`+tinyJPEG+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[photo.Photo](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "data:image/jpeg;base64,"+tinyJPEG, created.ImageBase64)

	rec = do(t, s, http.MethodGet, "/api/photos/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[photo.Photo](t, rec).ID)

	list := decode[[]photo.Photo](t, do(t, s, http.MethodGet, "/api/photos", ""))
	require.Len(t, list, 1)

	rec = do(t, s, http.MethodDelete, "/api/photos/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Photo deleted successfully"}`, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/photos/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Photo not found"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/photos/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePhoto_RejectsNonImage(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/photos", `{"image_base64":"aGVsbG8gd29ybGQ="}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/photos", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/photos", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMainPhoto(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/main-photo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"main_photo":""}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/main-photo", `{"image_base64":"`+tinyJPEG+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	want := "data:image/jpeg;base64," + tinyJPEG
	assert.Equal(t, want, decode[mainPhotoResponse](t, rec).MainPhoto)

	rec = do(t, s, http.MethodGet, "/api/main-photo", "")
	assert.Equal(t, want, decode[mainPhotoResponse](t, rec).MainPhoto)
}

func TestStartDate(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/start-date", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"start_date":"2025-01-25T20:30:00+03:00"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/start-date", `{"start_date":"2025-01-26T15:45:00+03:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"start_date":"2025-01-26T15:45:00+03:00"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/start-date", "")
	assert.JSONEq(t, `{"start_date":"2025-01-26T15:45:00+03:00"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/start-date", `{"start_date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestElapsed(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/elapsed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ElapsedResponse](t, rec)
	assert.Equal(t, elapsed.Breakdown{Days: 1, Hours: 2, Minutes: 5}, got.Breakdown)
	assert.Equal(t, int64(26), got.HourBucket)
	assert.Equal(t, "0 months, 2 hours, 5 minutes", got.Summary)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/_health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	do(t, s, http.MethodGet, "/api/photos", "")
	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracker_requests_total")
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/photos", nil)
	req.Header.Set(echo.HeaderOrigin, "https://example.org")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPMutationsReachGallery(t *testing.T) {
	repo, err := database.NewSQLitePhotoRepository(filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	photos := app.NewPhotoService(repo, elapsed.SystemClock{}, elapsed.DefaultEpoch, testLogger())
	gallery := app.NewGallery(photos, testLogger())
	photos.OnChange(gallery.Invalidate)
	reg := prometheus.NewRegistry()
	s := NewServer(photos, fixedReader{}, testLogger(), WithRegistry(reg, reg))

	ctx := context.Background()
	require.NoError(t, gallery.Refresh(ctx))

	rec := do(t, s, http.MethodPost, "/api/photos", `{"image_base64":"`+tinyJPEG+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[photo.Photo](t, rec)

	cached, err := gallery.Photos(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, created.ID, cached[0].ID)

	rec = do(t, s, http.MethodPost, "/api/main-photo", `{"image_base64":"`+tinyJPEG+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	main, err := gallery.MainPhoto(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ImageBase64, main)

	rec = do(t, s, http.MethodDelete, "/api/photos/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cached, err = gallery.Photos(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)
}
