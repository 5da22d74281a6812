package analysis

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eleven-am/civic311/internal/dto"
	"github.com/eleven-am/civic311/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/upload", h.Upload)
	g.POST("/analyze", h.Analyze)
	g.GET("/analyze/status", h.Status)
}

// Analyze godoc
// @Summary      Analyze a dataset image
// @Description  Sends a stored image to the generative model and returns its itemised description
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        request  body      dto.AnalyzeRequest  true  "Image to analyze"
// @Success      200      {object}  dto.AnalyzeResponse
// @Failure      400      {object}  dto.ErrorResponse
// @Failure      404      {object}  dto.ErrorResponse
// @Failure      500      {object}  dto.ErrorResponse
// @Router       /analyze [post]
func (h *Handler) Analyze(c echo.Context) error {
	var req dto.AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "Invalid request body")
	}

	req.ImagePath = strings.TrimSpace(req.ImagePath)
	if req.ImagePath == "" {
		return shared.BadRequest("missing_image_path", "Image path is required. Please provide imagePath in the request body.")
	}

	result, err := h.service.AnalyzeFile(c.Request().Context(), req.ImagePath, req.Prompt)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("image_not_found", "Image not found: "+req.ImagePath)
		}
		h.logger.Error("error analyzing image", "error", err, "image_path", req.ImagePath)
		return shared.NewAPIError("analysis_failed", "Failed to analyze image").
			WithDetails(err.Error()).
			ToHTTP(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, dto.AnalyzeResponse{
		Success:   true,
		Analysis:  result.Analysis,
		ImagePath: req.ImagePath,
		Cached:    result.Cached,
	})
}

// Upload godoc
// @Summary      Upload an image
// @Description  Stores an image in the dataset directory so it can be analyzed by name
// @Tags         analysis
// @Accept       multipart/form-data
// @Produce      json
// @Param        image  formData  file  true  "Image file"
// @Success      200    {object}  dto.UploadResponse
// @Failure      400    {object}  dto.ErrorResponse
// @Failure      413    {object}  dto.ErrorResponse
// @Failure      500    {object}  dto.ErrorResponse
// @Router       /upload [post]
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return shared.BadRequest("no_file", "No file uploaded")
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("failed to open upload", "error", err)
		return shared.InternalError("upload_failed", "Failed to read upload")
	}
	defer f.Close()

	name, err := h.service.Dataset().Save(fh.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidInput):
			return shared.BadRequest("invalid_filename", "Invalid file name")
		case errors.Is(err, ErrNotImage):
			return shared.BadRequest("not_an_image", "Only image uploads are allowed")
		case errors.Is(err, ErrTooLarge):
			return shared.NewAPIError("file_too_large", "File too large").ToHTTP(http.StatusRequestEntityTooLarge)
		}
		h.logger.Error("failed to save upload", "error", err, "filename", fh.Filename)
		return shared.InternalError("upload_failed", "Failed to save upload")
	}

	h.logger.Info("image uploaded", "filename", name, "size", fh.Size)
	return c.JSON(http.StatusOK, dto.UploadResponse{Filename: name})
}

// Status godoc
// @Summary      Check the analysis model
// @Description  Sends a trivial prompt to the generative model to confirm it is reachable
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  dto.ModelStatusResponse
// @Failure      500  {object}  dto.ModelStatusResponse
// @Router       /analyze/status [get]
func (h *Handler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return c.JSON(http.StatusInternalServerError, dto.ModelStatusResponse{
				Status:  "error",
				Message: "Gemini API key not configured",
			})
		}
		h.logger.Error("error checking model status", "error", err)
		return c.JSON(http.StatusInternalServerError, dto.ModelStatusResponse{
			Status:  "error",
			Message: "Failed to connect to Gemini AI",
			Details: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, dto.ModelStatusResponse{
		Status:  "ok",
		Message: "Gemini AI model is working correctly",
		Model:   h.service.Model(),
	})
}
