package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/uptc-energia/backend/internal/api/controllers"
	"github.com/uptc-energia/backend/internal/api/middleware"
	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db"
	"github.com/uptc-energia/backend/internal/services"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// Router manages the API routes and controllers
type Router struct {
	engine          *gin.Engine
	logger          *utils.Logger
	config          *config.Config
	authMiddleware  *middleware.AuthMiddleware
	serviceProvider *services.ServiceProvider
	db              *db.Database
	upgrader        websocket.Upgrader
}

// NewRouter creates a new Router instance
func NewRouter(
	config *config.Config,
	logger *utils.Logger,
	db *db.Database,
	serviceProvider *services.ServiceProvider,
) *Router {
	if config.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.LoggingMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Origin", middleware.RequestIDHeader}
	engine.Use(cors.New(corsConfig))

	return &Router{
		engine:          engine,
		logger:          logger.Named("router"),
		config:          config,
		authMiddleware:  middleware.NewAuthMiddleware(&config.JWT),
		serviceProvider: serviceProvider,
		db:              db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.health)

	apiV1 := r.engine.Group("/api/v1")

	authController := controllers.NewAuthController(
		r.serviceProvider.User(), &r.config.JWT, r.logger)
	ruleController := controllers.NewRuleController(r.serviceProvider.Rule(), r.logger)
	alertController := controllers.NewAlertController(r.serviceProvider.Alert(), r.logger)
	readingController := controllers.NewReadingController(r.serviceProvider.Readings(), r.logger)
	analyticsController := controllers.NewAnalyticsController(
		r.serviceProvider.RuleEngine(),
		r.serviceProvider.Anomaly(),
		r.serviceProvider.Baseline(),
		r.serviceProvider.Forecast(),
		r.serviceProvider.Ingestion(),
		r.serviceProvider.Readings(),
		r.logger,
	)

	authController.RegisterRoutes(apiV1)
	ruleController.RegisterRoutes(apiV1, r.authMiddleware)
	alertController.RegisterRoutes(apiV1, r.authMiddleware)
	readingController.RegisterRoutes(apiV1, r.authMiddleware)
	analyticsController.RegisterRoutes(apiV1, r.authMiddleware)

	apiV1.GET("/ws/alerts", r.authMiddleware.RequireAuth(), r.alertStream)

	if !r.config.Server.IsProduction() {
		r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.logger.Info("API routes setup completed")
}

// health reports the service and database status
func (r *Router) health(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "up"

	if sqlDB, err := r.db.DB.DB(); err != nil || sqlDB.Ping() != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "down"
	}

	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"database": dbStatus,
	})
}

// alertStream upgrades the connection and attaches it to the alert hub
func (r *Router) alertStream(c *gin.Context) {
	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	userID := c.GetUint("user_id")
	r.serviceProvider.Hub().RegisterClient(conn, userID)
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
