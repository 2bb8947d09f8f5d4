package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
)

// Handler wires the HTTP transport to the forecast service.
type Handler struct {
	forecastSvc forecast.Service
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(forecastSvc forecast.Service, logger *slog.Logger) *Handler {
	return &Handler{
		forecastSvc: forecastSvc,
		logger:      logger.With("component", "http.handler"),
	}
}

// Forecast returns a multi-day forecast for a region.
func (h *Handler) Forecast(c *gin.Context) {
	var req forecast.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, forecast.CodeInvalidInput, errMessage(err), err))
		return
	}

	resp, err := h.forecastSvc.Forecast(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Regions lists the forecastable locations.
func (h *Handler) Regions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"regions": h.forecastSvc.Regions()})
}

// Status reports whether a region's recurrent model is ready.
func (h *Handler) Status(c *gin.Context) {
	resp, err := h.forecastSvc.Status(c.Request.Context(), c.Param("code"))
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Train retrains a region model and returns the loss history.
func (h *Handler) Train(c *gin.Context) {
	resp, err := h.forecastSvc.Train(c.Request.Context(), forecast.TrainRequest{Region: c.Param("code")})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	h.logger.Info("explicit training finished", "region", resp.Region, "outcome", resp.Outcome, "epochs", resp.Stats.Epochs)
	c.JSON(http.StatusOK, resp)
}

// Runs lists recently produced forecasts for a region.
func (h *Handler) Runs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, fromDomainError(apperrors.Newf(forecast.CodeInvalidInput, "limit must be a non-negative integer")))
			return
		}
		limit = parsed
	}
	runs, err := h.forecastSvc.Runs(c.Request.Context(), c.Param("code"), limit)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
