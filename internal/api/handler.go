package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/volforecast/internal/domain/dto"
	"github.com/guttosm/volforecast/internal/middleware"
	"github.com/guttosm/volforecast/internal/service"
)

// Handler maps the fit and predict endpoints onto the model service.
//
// Only the JSON shape is checked here. Range checks (n_observations, p, q,
// n_days) belong to the model, which reports them as success=false with a
// 200 status, like every other model failure.
type Handler struct {
	svc service.ModelService
}

func NewHandler(svc service.ModelService) *Handler {
	return &Handler{svc: svc}
}

// Fit godoc
// @Summary      Fit and persist a volatility model
// @Description  Optionally refreshes price history, fits GARCH(p, q) on the most recent n_observations closes and saves the model
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        request  body      dto.FitRequest     true  "Fit parameters"
// @Success      200      {object}  dto.FitResponse    "Outcome (check success)"
// @Failure      400      {object}  dto.ErrorResponse  "Malformed body"
// @Router       /fit [post]
func (h *Handler) Fit(c *gin.Context) {
	var req dto.FitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Fit(c.Request.Context(), req))
}

// Predict godoc
// @Summary      Forecast volatility
// @Description  Loads the latest saved model for the ticker and forecasts daily volatility for the next n_days business days
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        request  body      dto.PredictRequest   true  "Forecast parameters"
// @Success      200      {object}  dto.PredictResponse  "Outcome (check success)"
// @Failure      400      {object}  dto.ErrorResponse    "Malformed body"
// @Router       /predict [post]
func (h *Handler) Predict(c *gin.Context) {
	var req dto.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Predict(c.Request.Context(), req))
}
