// Package photoapi is an HTTP client for a remote photo API. It implements
// photo.Backend so the gallery can run against a separate backend.
package photoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"elapsed_tracker/internal/domain/photo"
)

var ErrUnexpectedStatus = fmt.Errorf("unexpected response status")

// LeveledLogrus adapts a logrus entry to retryablehttp.LeveledLogger.
type LeveledLogrus struct {
	inner *logrus.Entry
}

// re-writes ERROR to WARN level because of retries
func (l LeveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(fields(keysAndValues)).Warn(msg)
}

func (l LeveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(fields(keysAndValues)).Warn(msg)
}

func (l LeveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(fields(keysAndValues)).Info(msg)
}

func (l LeveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(fields(keysAndValues)).Debug(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}

type Option func(*retryablehttp.Client)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

// WithRetryWait sets the minimum and maximum wait between retries.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
		client.RetryWaitMax = waitMax
	}
}

// WithLogger sets the logger used for retry attempts.
func WithLogger(logger *logrus.Entry) Option {
	return func(client *retryablehttp.Client) {
		client.Logger = retryablehttp.LeveledLogger(LeveledLogrus{inner: logger})
	}
}

// Client talks to the /api photo endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient retries on connection errors and 5xx responses (except 501).
// 4xx responses are returned as-is.
func NewClient(baseURL string, options ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledLogrus{inner: logrus.NewEntry(logrus.StandardLogger())})

	for _, option := range options {
		option(retryClient)
	}

	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second
	return &Client{baseURL: baseURL, http: client}
}

type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type mainPhotoResponse struct {
	MainPhoto string `json:"main_photo"`
}

func (c *Client) ListPhotos(ctx context.Context) ([]*photo.Photo, error) {
	var photos []*photo.Photo
	if err := c.do(ctx, http.MethodGet, "/api/photos", nil, &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

func (c *Client) GetPhoto(ctx context.Context, id string) (*photo.Photo, error) {
	var p photo.Photo
	if err := c.do(ctx, http.MethodGet, "/api/photos/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreatePhoto(ctx context.Context, image string) (*photo.Photo, error) {
	var p photo.Photo
	if err := c.do(ctx, http.MethodPost, "/api/photos", imageRequest{ImageBase64: image}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePhoto(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/photos/"+url.PathEscape(id), nil, nil)
}

// GetMainPhoto returns photo.ErrMainPhotoNotSet when the API reports an empty slot.
func (c *Client) GetMainPhoto(ctx context.Context) (string, error) {
	var resp mainPhotoResponse
	if err := c.do(ctx, http.MethodGet, "/api/main-photo", nil, &resp); err != nil {
		return "", err
	}
	if resp.MainPhoto == "" {
		return "", photo.ErrMainPhotoNotSet
	}
	return resp.MainPhoto, nil
}

func (c *Client) SetMainPhoto(ctx context.Context, image string) error {
	return c.do(ctx, http.MethodPost, "/api/main-photo", imageRequest{ImageBase64: image}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return photo.ErrPhotoNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
