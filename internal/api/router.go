package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/auth"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

const requestIDHeader = "X-Request-ID"

//go:embed templates/*.html
var templatesFS embed.FS

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.SetHTMLTemplate(newTemplates(services.Comment))

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())
	router.Use(auth.Middleware(cfg.Auth.JWTSecret, log))

	// Handlers
	timeout := cfg.Server.RequestTimeout
	targetHandler := NewTargetHandler(services, timeout, log)
	commentHandler := NewCommentHandler(services, timeout, log)
	moderatorHandler := NewModeratorHandler(services, log)
	exportHandler := NewExportHandler(services, log)
	importHandler := NewImportHandler(services, cfg.Import.MaxUploadSize, log)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/metrics", metricsHandler(services))

	staff := requireStaff()

	// API v1
	v1 := router.Group("/v1")
	{
		targets := v1.Group("/targets/:content_type/:object_id")
		{
			targets.GET("", targetHandler.Get)
			targets.PUT("", staff, targetHandler.Upsert)
			targets.GET("/:kind", commentHandler.Tree)
			targets.POST("/:kind", commentHandler.Create)
			targets.GET("/:kind/count", commentHandler.Count)
		}

		comments := v1.Group("/comments/:kind/:id")
		{
			comments.GET("", commentHandler.Get)
			comments.POST("/edit", commentHandler.Edit)
			comments.POST("/delete", commentHandler.Delete)
			comments.POST("/approve", staff, commentHandler.Approve)
		}

		v1.GET("/users/:user_id/comments", commentHandler.ForUser)
		v1.GET("/latest/:kind", commentHandler.Latest)

		moderators := v1.Group("/moderators", staff)
		{
			moderators.GET("", moderatorHandler.List)
			moderators.PUT("/:content_type", moderatorHandler.Put)
			moderators.DELETE("/:content_type", moderatorHandler.Delete)
		}

		v1.GET("/exports/comments", staff, exportHandler.StreamExport)
		v1.POST("/imports/comments", staff, importHandler.ImportComments)
	}

	return router
}

// newTemplates parses the embedded HTML views
func newTemplates(comments service.CommentService) *template.Template {
	funcs := template.FuncMap{
		"markup": comments.Render,
		"indent": func(depth int) float64 { return float64(depth) * 1.5 },
		"count":  func(nodes []models.Node) int { return len(nodes) },
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html"))
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "threaded-comments-api",
	})
}

// metricsHandler returns stored object counts
func metricsHandler(services *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		commentsCount, _ := services.Export.GetCount(ctx, "comments")
		targetsCount, _ := services.Export.GetCount(ctx, "targets")

		c.JSON(http.StatusOK, gin.H{
			"database": gin.H{
				"comments": commentsCount,
				"targets":  targetsCount,
			},
			"moderated_content_types": len(services.Moderator.List()),
			"timestamp":               time.Now().Format(time.RFC3339),
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("request_id", c.GetString("request_id")).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// requestIDMiddleware tags each request with an id, reusing the caller's
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
