package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"medical-files-server/internal/config"
	"medical-files-server/internal/handlers"
	"medical-files-server/internal/logging"
	"medical-files-server/internal/medfiles"
	"medical-files-server/internal/middleware"
	"medical-files-server/internal/storage"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "medical-files"

// multipartSlack covers form fields and part headers on top of file bytes.
const multipartSlack = 1 << 20

// SetupRoutes configures the application routes. local may be nil when files
// are kept in a cloud bucket.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, svc *medfiles.Service, local *storage.Local, logger *logging.Logger) {
	// Initialize handlers
	fileHandler := handlers.NewMedicalFileHandler(svc, local, logger)
	healthHandler := handlers.NewHealthHandler(db, ServiceName)

	uploadLimit := middleware.BodyLimit(cfg.Upload.MaxSizeBytes*int64(cfg.Upload.MaxFilesPerBatch) + multipartSlack)

	api := router.Group("/api/v1")
	{
		fileRoutes := api.Group("/files")
		{
			fileRoutes.POST("/upload", uploadLimit, fileHandler.UploadFile)
			fileRoutes.POST("/batch", uploadLimit, fileHandler.UploadFiles)

			// Listing with server-side patient/category filters plus search and sort
			fileRoutes.GET("", fileHandler.ListFiles)
			fileRoutes.GET("/categories", fileHandler.GetCategories)

			// Token-authorized byte stream for the local backend
			fileRoutes.GET("/download/:token", fileHandler.ServeDownload)

			fileRoutes.GET("/:id", fileHandler.GetFile)
			fileRoutes.GET("/:id/download", fileHandler.DownloadFile)
			fileRoutes.DELETE("/:id", fileHandler.DeleteFile)
		}

		api.GET("/health", healthHandler.Check)
	}

	// Simple health check endpoint
	router.GET("/health", healthHandler.Check)
}
