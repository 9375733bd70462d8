package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptc-energia/backend/internal/api/middleware"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/services"
	"github.com/uptc-energia/backend/internal/utils"
)

// AcknowledgeRequest represents the acknowledge body
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" binding:"required"`
}

// EvidenceRequest represents an evidence append body
type EvidenceRequest struct {
	Values       models.JSONMap `json:"values" binding:"required"`
	Baseline     models.JSONMap `json:"baseline" binding:"required"`
	Delta        models.JSONMap `json:"delta" binding:"required"`
	AnomalyScore *float64       `json:"anomaly_score"`
	Forecast     models.JSONMap `json:"forecast"`
}

// AlertController handles alert lifecycle endpoints
type AlertController struct {
	alertService *services.AlertService
	logger       *utils.Logger
}

// NewAlertController creates a new alert controller
func NewAlertController(alertService *services.AlertService, logger *utils.Logger) *AlertController {
	return &AlertController{
		alertService: alertService,
		logger:       logger.Named("alert_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (ac *AlertController) RegisterRoutes(router *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	alerts := router.Group("/alerts")
	alerts.Use(auth.RequireAuth())
	{
		alerts.GET("", ac.List)
		alerts.GET("/:id", ac.Get)
		alerts.POST("/:id/acknowledge", ac.Acknowledge)
		alerts.POST("/:id/resolve", ac.Resolve)
		alerts.GET("/:id/evidence", ac.ListEvidence)
		alerts.POST("/:id/evidence", ac.AddEvidence)
	}
}

// List returns alerts matching the query filters, newest first
// @Summary List alerts
// @Tags alerts
// @Produce json
// @Param status query string false "Filter by status (open, acknowledged, resolved)"
// @Param severity query string false "Filter by severity"
// @Param sede_id query string false "Filter by sede"
// @Param sector query string false "Filter by sector"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} utils.PaginatedResponse "Alerts"
// @Security BearerAuth
// @Router /alerts [get]
func (ac *AlertController) List(c *gin.Context) {
	filter := repository.AlertFilter{
		Status:   models.AlertStatus(c.Query("status")),
		Severity: models.Severity(c.Query("severity")),
		SedeID:   c.Query("sede_id"),
		Sector:   c.Query("sector"),
	}

	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = to
	}

	pagination := utils.GetPaginationFromContext(c)
	offset := (pagination.Page - 1) * pagination.Limit

	alerts, total, err := ac.alertService.List(filter, offset, pagination.Limit)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, utils.PaginatedResponse{
		Data: alerts,
		Pagination: utils.Pagination{
			CurrentPage: pagination.Page,
			TotalPages:  totalPages(total, pagination.Limit),
			TotalItems:  int(total),
			PerPage:     pagination.Limit,
		},
	})
}

// Get returns one alert
// @Summary Get alert
// @Tags alerts
// @Produce json
// @Param id path int true "Alert ID"
// @Success 200 {object} models.Alert "Alert"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /alerts/{id} [get]
func (ac *AlertController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	alert, err := ac.alertService.Get(id)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, alert)
}

// Acknowledge moves an open alert to acknowledged
// @Summary Acknowledge alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path int true "Alert ID"
// @Param acknowledge body AcknowledgeRequest true "Who acknowledges"
// @Success 200 {object} models.Alert "Alert acknowledged"
// @Failure 404 {object} map[string]string "Not found"
// @Failure 422 {object} map[string]string "Illegal status transition"
// @Security BearerAuth
// @Router /alerts/{id}/acknowledge [post]
func (ac *AlertController) Acknowledge(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := ac.alertService.Acknowledge(c.Request.Context(), id, req.AcknowledgedBy)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, alert)
}

// Resolve moves an alert to the terminal resolved state
// @Summary Resolve alert
// @Tags alerts
// @Produce json
// @Param id path int true "Alert ID"
// @Success 200 {object} models.Alert "Alert resolved"
// @Failure 404 {object} map[string]string "Not found"
// @Failure 422 {object} map[string]string "Illegal status transition"
// @Security BearerAuth
// @Router /alerts/{id}/resolve [post]
func (ac *AlertController) Resolve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	alert, err := ac.alertService.Resolve(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, alert)
}

// ListEvidence returns an alert's evidence trail, most recent first
// @Summary List alert evidence
// @Tags alerts
// @Produce json
// @Param id path int true "Alert ID"
// @Success 200 {array} models.Evidence "Evidence"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /alerts/{id}/evidence [get]
func (ac *AlertController) ListEvidence(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	evidence, err := ac.alertService.ListEvidence(id)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusOK, evidence)
}

// AddEvidence appends an evidence record to an alert
// @Summary Add alert evidence
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path int true "Alert ID"
// @Param evidence body EvidenceRequest true "Evidence payload"
// @Success 201 {object} models.Evidence "Evidence added"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /alerts/{id}/evidence [post]
func (ac *AlertController) AddEvidence(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req EvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evidence := &models.Evidence{
		Values:       req.Values,
		Baseline:     req.Baseline,
		Delta:        req.Delta,
		AnomalyScore: req.AnomalyScore,
		Forecast:     req.Forecast,
	}

	if err := ac.alertService.AddEvidence(id, evidence); err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}

	c.JSON(http.StatusCreated, evidence)
}
