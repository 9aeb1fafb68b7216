package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"elapsed_tracker/internal/app"
	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/domain/photo"
)

type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type startDateBody struct {
	StartDate string `json:"start_date"`
}

type mainPhotoResponse struct {
	MainPhoto string `json:"main_photo"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// ElapsedResponse is the body of GET /api/elapsed.
type ElapsedResponse struct {
	Epoch      time.Time         `json:"epoch"`
	At         time.Time         `json:"at"`
	Breakdown  elapsed.Breakdown `json:"breakdown"`
	HourBucket int64             `json:"hour_bucket"`
	Summary    string            `json:"summary"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: "Elapsed Tracker API"})
}

func (s *Server) handleListPhotos(c echo.Context) error {
	photos, err := s.photos.ListPhotos(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, photos)
}

func (s *Server) handleCreatePhoto(c echo.Context) error {
	var req imageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := s.photos.CreatePhoto(c.Request().Context(), req.ImageBase64)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleGetPhoto(c echo.Context) error {
	p, err := s.photos.GetPhoto(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePhoto(c echo.Context) error {
	if err := s.photos.DeletePhoto(c.Request().Context(), c.Param("id")); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Photo deleted successfully"})
}

func (s *Server) handleGetMainPhoto(c echo.Context) error {
	image, err := s.photos.GetMainPhoto(c.Request().Context())
	if err != nil && !errors.Is(err, photo.ErrMainPhotoNotSet) {
		return err
	}
	return c.JSON(http.StatusOK, mainPhotoResponse{MainPhoto: image})
}

func (s *Server) handleSetMainPhoto(c echo.Context) error {
	var req imageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	if err := s.photos.SetMainPhoto(ctx, req.ImageBase64); err != nil {
		return mapError(err)
	}
	image, err := s.photos.GetMainPhoto(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mainPhotoResponse{MainPhoto: image})
}

func (s *Server) handleGetStartDate(c echo.Context) error {
	startDate, err := s.photos.StartDate(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, startDateBody{StartDate: startDate})
}

func (s *Server) handleSetStartDate(c echo.Context) error {
	var req startDateBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.photos.SetStartDate(c.Request().Context(), req.StartDate); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (s *Server) handleElapsed(c echo.Context) error {
	r := s.tracker.Read()
	return c.JSON(http.StatusOK, ElapsedResponse{
		Epoch:      r.Epoch,
		At:         r.At,
		Breakdown:  r.Breakdown,
		HourBucket: r.HourBucket,
		Summary:    r.Breakdown.Widget(),
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, photo.ErrPhotoNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Photo not found")
	case errors.Is(err, app.ErrInvalidImage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidStartDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
