package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptc-energia/backend/internal/api/middleware"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/services"
	"github.com/uptc-energia/backend/internal/utils"
)

// EvaluateRequest represents a rule evaluation run body
type EvaluateRequest struct {
	SedeID    string `json:"sede_id,omitempty"`
	Sector    string `json:"sector,omitempty"`
	HoursBack int    `json:"hours_back,omitempty"`
}

// AnalyticsController exposes the analytics operations: rule evaluation,
// anomaly detection, baseline recalculation and forecasting.
type AnalyticsController struct {
	ruleEngine  *services.RuleEngineService
	anomaly     *services.AnomalyService
	baseline    *services.BaselineService
	forecast    *services.ForecastService
	ingestion   *services.IngestionService
	readingRepo repository.ReadingRepository
	logger      *utils.Logger
}

// NewAnalyticsController creates a new analytics controller
func NewAnalyticsController(
	ruleEngine *services.RuleEngineService,
	anomaly *services.AnomalyService,
	baseline *services.BaselineService,
	forecast *services.ForecastService,
	ingestion *services.IngestionService,
	readingRepo repository.ReadingRepository,
	logger *utils.Logger,
) *AnalyticsController {
	return &AnalyticsController{
		ruleEngine:  ruleEngine,
		anomaly:     anomaly,
		baseline:    baseline,
		forecast:    forecast,
		ingestion:   ingestion,
		readingRepo: readingRepo,
		logger:      logger.Named("analytics_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (ac *AnalyticsController) RegisterRoutes(router *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	analytics := router.Group("/analytics")
	analytics.Use(auth.RequireAuth())
	{
		analytics.POST("/evaluate", ac.Evaluate)
		analytics.POST("/anomalies", ac.DetectAnomalies)
		analytics.POST("/baselines/recalculate", ac.RecalculateBaselines)
		analytics.POST("/forecast", ac.Forecast)
		analytics.POST("/ingest", auth.RequireAdmin(), ac.Ingest)
	}
}

// Evaluate runs the enabled rules over recently stored readings
// @Summary Evaluate rules
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body EvaluateRequest false "Evaluation window"
// @Success 200 {object} services.EvaluationResult "Evaluation summary"
// @Security BearerAuth
// @Router /analytics/evaluate [post]
func (ac *AnalyticsController) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	hoursBack := req.HoursBack
	if hoursBack <= 0 {
		hoursBack = 24
	}

	to := time.Now().UTC()
	readings, err := ac.readingRepo.List(repository.ReadingFilter{
		SedeID: req.SedeID,
		Sector: req.Sector,
		From:   to.Add(-time.Duration(hoursBack) * time.Hour),
		To:     to,
		Order:  "asc",
	})
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	result, err := ac.ruleEngine.Evaluate(c.Request.Context(), readings, services.EvaluationFilter{
		SedeID: req.SedeID,
		Sector: req.Sector,
	})
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DetectAnomalies runs a z-score sweep and raises alerts for severe ones
// @Summary Detect anomalies
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body services.AnomalyRequest false "Detection parameters"
// @Success 200 {object} services.AnomalyResponse "Anomalies"
// @Security BearerAuth
// @Router /analytics/anomalies [post]
func (ac *AnalyticsController) DetectAnomalies(c *gin.Context) {
	var req services.AnomalyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	response, alertsCreated, err := ac.anomaly.DetectWithAlerts(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"anomalies":      response.Anomalies,
		"total_readings": response.TotalReadings,
		"threshold":      response.Threshold,
		"from":           response.From,
		"to":             response.To,
		"alerts_created": alertsCreated,
	})
}

// RecalculateBaselines rebuilds the per-bucket expected values
// @Summary Recalculate baselines
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body services.BaselineRequest false "Recalculation parameters"
// @Success 200 {object} services.BaselineResponse "Recalculation summary"
// @Security BearerAuth
// @Router /analytics/baselines/recalculate [post]
func (ac *AnalyticsController) RecalculateBaselines(c *gin.Context) {
	var req services.BaselineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	response, err := ac.baseline.Recalculate(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Forecast predicts the coming hours of consumption
// @Summary Forecast consumption
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body services.ForecastRequest false "Forecast parameters"
// @Success 200 {object} services.ForecastResponse "Forecast"
// @Security BearerAuth
// @Router /analytics/forecast [post]
func (ac *AnalyticsController) Forecast(c *gin.Context) {
	var req services.ForecastRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	response, err := ac.forecast.Forecast(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Ingest pulls recent readings from the Energy API into local storage
// @Summary Ingest readings
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body EvaluateRequest false "Ingestion window"
// @Success 200 {object} services.IngestionResult "Ingestion summary"
// @Security BearerAuth
// @Router /analytics/ingest [post]
func (ac *AnalyticsController) Ingest(c *gin.Context) {
	var req EvaluateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := ac.ingestion.IngestRecent(c.Request.Context(), req.SedeID, req.HoursBack)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, result)
}
