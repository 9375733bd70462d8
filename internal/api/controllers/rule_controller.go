package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/uptc-energia/backend/internal/api/middleware"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/services"
	"github.com/uptc-energia/backend/internal/utils"
)

// RuleRequest represents a rule create/update body
type RuleRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Spec        models.RuleSpec `json:"spec" binding:"required"`
	Enabled     *bool           `json:"enabled"`
}

// RuleToggleRequest represents an enable/disable body
type RuleToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// RuleController handles rule management endpoints
type RuleController struct {
	ruleService *services.RuleService
	logger      *utils.Logger
}

// NewRuleController creates a new rule controller
func NewRuleController(ruleService *services.RuleService, logger *utils.Logger) *RuleController {
	return &RuleController{
		ruleService: ruleService,
		logger:      logger.Named("rule_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group.
// Mutations require the admin role.
func (rc *RuleController) RegisterRoutes(router *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	rules := router.Group("/rules")
	rules.Use(auth.RequireAuth())
	{
		rules.GET("", rc.List)
		rules.GET("/:id", rc.Get)
		rules.POST("", auth.RequireAdmin(), rc.Create)
		rules.PUT("/:id", auth.RequireAdmin(), rc.Update)
		rules.PATCH("/:id/enabled", auth.RequireAdmin(), rc.Toggle)
		rules.DELETE("/:id", auth.RequireAdmin(), rc.Delete)
	}
}

// List returns a page of rules
// @Summary List rules
// @Tags rules
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} utils.PaginatedResponse "Rules"
// @Security BearerAuth
// @Router /rules [get]
func (rc *RuleController) List(c *gin.Context) {
	pagination := utils.GetPaginationFromContext(c)
	offset := (pagination.Page - 1) * pagination.Limit

	rules, total, err := rc.ruleService.List(offset, pagination.Limit)
	if err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}

	c.JSON(http.StatusOK, utils.PaginatedResponse{
		Data: rules,
		Pagination: utils.Pagination{
			CurrentPage: pagination.Page,
			TotalPages:  totalPages(total, pagination.Limit),
			TotalItems:  int(total),
			PerPage:     pagination.Limit,
		},
	})
}

// Get returns one rule
// @Summary Get rule
// @Tags rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} models.Rule "Rule"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /rules/{id} [get]
func (rc *RuleController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	rule, err := rc.ruleService.Get(id)
	if err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// Create persists a new rule
// @Summary Create rule
// @Tags rules
// @Accept json
// @Produce json
// @Param rule body RuleRequest true "Rule definition"
// @Success 201 {object} models.Rule "Rule created"
// @Failure 400 {object} map[string]string "Invalid rule spec"
// @Security BearerAuth
// @Router /rules [post]
func (rc *RuleController) Create(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule, err := rc.ruleService.Create(req.Name, req.Description, req.Spec, enabled)
	if err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// Update replaces an existing rule
// @Summary Update rule
// @Tags rules
// @Accept json
// @Produce json
// @Param id path int true "Rule ID"
// @Param rule body RuleRequest true "Rule definition"
// @Success 200 {object} models.Rule "Rule updated"
// @Failure 400 {object} map[string]string "Invalid rule spec"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /rules/{id} [put]
func (rc *RuleController) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule, err := rc.ruleService.Update(id, req.Name, req.Description, req.Spec, enabled)
	if err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// Toggle enables or disables a rule
// @Summary Toggle rule
// @Tags rules
// @Accept json
// @Produce json
// @Param id path int true "Rule ID"
// @Param toggle body RuleToggleRequest true "Enabled flag"
// @Success 200 {object} models.Rule "Rule toggled"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /rules/{id}/enabled [patch]
func (rc *RuleController) Toggle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req RuleToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := rc.ruleService.SetEnabled(id, *req.Enabled)
	if err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// Delete removes a rule
// @Summary Delete rule
// @Tags rules
// @Param id path int true "Rule ID"
// @Success 204 "Rule deleted"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /rules/{id} [delete]
func (rc *RuleController) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := rc.ruleService.Delete(id); err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// pathID parses the :id path parameter, writing the error response itself
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

func totalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := int(total) / perPage
	if int(total)%perPage != 0 {
		pages++
	}
	return pages
}
