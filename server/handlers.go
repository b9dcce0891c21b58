package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/services"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// ModelSource hands out the model used to answer predictions.
type ModelSource interface {
	LoadOnce(ctx context.Context, location string) (*services.Handle, error)
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// PredictHandler serves rent estimates from the artifact at location.
type PredictHandler struct {
	models   ModelSource
	location string
	logger   *utils.Logger
}

func NewPredictHandler(src ModelSource, location string, logger *utils.Logger) *PredictHandler {
	return &PredictHandler{models: src, location: location, logger: logger}
}

type predictResponse struct {
	Rent     float64                         `json:"rent"`
	Degraded bool                            `json:"degraded"`
	Warnings []models.UnknownCategoryWarning `json:"warnings"`
	ModelID  string                          `json:"model_id"`
}

// Predict handles POST /api/v1/predict with a JSON object keyed by column name.
func (h *PredictHandler) Predict(c *gin.Context) {
	var fields map[string]interface{}
	dec := jsonDecoder(c.Request.Body)
	if err := dec.Decode(&fields); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}

	rec, err := services.ParseRecord(fields)
	if err != nil {
		var missing *models.MissingFieldError
		var typed *models.FieldTypeError
		var dup *models.DuplicateFieldError
		switch {
		case errors.As(err, &missing):
			respondFieldError(c, "missing_field", missing.Field, err)
		case errors.As(err, &typed):
			respondFieldError(c, "invalid_field", typed.Field, err)
		case errors.As(err, &dup):
			respondFieldError(c, "duplicate_field", dup.Field, err)
		default:
			respondError(c, http.StatusBadRequest, "invalid_record", err)
		}
		return
	}

	handle, err := h.models.LoadOnce(c.Request.Context(), h.location)
	if err != nil {
		h.logger.Error("[server] Model unavailable: %v", err)
		respondError(c, http.StatusServiceUnavailable, "model_not_loaded", models.ErrModelNotLoaded)
		return
	}

	est, err := handle.Estimate(&rec)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrModelNotLoaded) {
			status = http.StatusServiceUnavailable
		}
		respondError(c, status, "prediction_failed", err)
		return
	}

	warnings := est.Warnings
	if warnings == nil {
		warnings = []models.UnknownCategoryWarning{}
	}
	respondOK(c, predictResponse{
		Rent:     est.Rent,
		Degraded: est.Degraded(),
		Warnings: warnings,
		ModelID:  handle.Fingerprint(),
	})
}

// MetricsHandler exposes the evaluation metrics of the last training run.
type MetricsHandler struct {
	path string
}

func NewMetricsHandler(path string) *MetricsHandler {
	return &MetricsHandler{path: path}
}

func (h *MetricsHandler) Metrics(c *gin.Context) {
	m, err := services.ReadJSON(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			respondError(c, http.StatusNotFound, "metrics_not_found", errors.New("no training run has been recorded"))
			return
		}
		respondError(c, http.StatusInternalServerError, "metrics_unreadable", err)
		return
	}
	respondOK(c, m)
}
