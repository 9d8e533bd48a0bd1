package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ondrasimku/media-pipeline/internal/auth"
	"github.com/ondrasimku/media-pipeline/internal/http/handler"
	"github.com/ondrasimku/media-pipeline/internal/metrics"
	"github.com/ondrasimku/media-pipeline/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Uploader    handler.Uploader
	Media       handler.MediaFinder
	Attacher    handler.Attacher
	Deleter     handler.Deleter
	Storage     storage.Storage
	DB          handler.Pinger
	MaxFileSize int64
	// Verifier guards mutating routes. Nil leaves them open.
	Verifier *auth.Verifier
}

func NewRouter(deps Dependencies, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Middleware())

	healthHandler := handler.NewHealthHandler(deps.DB)
	uploadHandler := handler.NewUploadHandler(deps.Uploader, deps.Storage, deps.MaxFileSize, logger)
	mediaHandler := handler.NewMediaHandler(deps.Media, deps.Attacher, deps.Deleter, logger)

	router.GET("/healthz", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/files/*path", uploadHandler.GetFile)
	router.GET("/media/:id", mediaHandler.Get)
	router.GET("/owners/:ownerType/:ownerId/media", mediaHandler.ListByOwner)

	guarded := router.Group("")
	guard := func(string) gin.HandlerFunc {
		return func(c *gin.Context) { c.Next() }
	}
	if deps.Verifier != nil {
		guarded.Use(auth.Middleware(deps.Verifier))
		guard = func(permission string) gin.HandlerFunc {
			return auth.RequirePermissions(permission)
		}
	} else {
		logger.Warn("Authentication disabled, mutating routes are open")
	}
	{
		guarded.POST("/media", guard(auth.PermissionUpload), uploadHandler.Upload)
		guarded.DELETE("/media/:id", guard(auth.PermissionDelete), mediaHandler.Delete)
		guarded.POST("/owners/:ownerType/:ownerId/media", guard(auth.PermissionAttach), mediaHandler.Attach)
	}

	return router
}
