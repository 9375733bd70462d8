package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptc-energia/backend/internal/api/middleware"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/utils"
)

// ReadingController exposes the locally stored sensor readings
type ReadingController struct {
	readingRepo repository.ReadingRepository
	logger      *utils.Logger
}

// NewReadingController creates a new reading controller
func NewReadingController(readingRepo repository.ReadingRepository, logger *utils.Logger) *ReadingController {
	return &ReadingController{
		readingRepo: readingRepo,
		logger:      logger.Named("reading_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (rc *ReadingController) RegisterRoutes(router *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	readings := router.Group("/readings")
	readings.Use(auth.RequireAuth())
	{
		readings.GET("", rc.List)
	}
}

// List returns stored readings matching the query filters
// @Summary List readings
// @Tags readings
// @Produce json
// @Param sede_id query string false "Filter by sede"
// @Param sector query string false "Filter by sector"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param order query string false "Sort order by time (asc, desc)"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} models.Reading "Readings"
// @Security BearerAuth
// @Router /readings [get]
func (rc *ReadingController) List(c *gin.Context) {
	filter := repository.ReadingFilter{
		SedeID: c.Query("sede_id"),
		Sector: c.Query("sector"),
		Order:  c.DefaultQuery("order", "desc"),
	}

	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = to
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	readings, err := rc.readingRepo.List(filter)
	if err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}

	c.JSON(http.StatusOK, readings)
}
