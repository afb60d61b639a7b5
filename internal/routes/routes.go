// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/config"
	"github.com/fallrisk/super-serial/internal/handler"
	"github.com/fallrisk/super-serial/internal/metric"
	"github.com/fallrisk/super-serial/internal/middleware"
	"github.com/fallrisk/super-serial/internal/service"
	"github.com/fallrisk/super-serial/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config   *config.Config
	logger   *zap.Logger
	terminal *service.TerminalService
	eventBus *handler.EventBus
	metrics  *metric.Registry

	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	terminal *service.TerminalService,
	eventBus *handler.EventBus,
	metrics *metric.Registry,
) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		terminal: terminal,
		eventBus: eventBus,
		metrics:  metrics,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// Close releases the WebSocket event subscription
func (r *Router) Close() {
	if r.wsHandler != nil {
		r.wsHandler.Close()
	}
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.terminal, r.config, r.logger)
	linkHandler := handler.NewLinkHandler(r.terminal, r.logger)
	profileHandler := handler.NewProfileHandler(r.terminal, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(r.terminal, r.eventBus, r.config.Server.AllowedOrigins, r.logger)

	healthHandler.RegisterRoutes(router)

	if r.metrics != nil {
		router.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	linkHandler.RegisterRoutes(apiV1)
	profileHandler.RegisterRoutes(apiV1)

	ws := router.Group("/ws")
	{
		ws.GET("/events", r.wsHandler.HandleEventConnection)
	}

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
