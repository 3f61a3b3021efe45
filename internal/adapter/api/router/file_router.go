package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
	"supportdesk/internal/adapter/api/middleware"
)

func SetupFileRouter(e *echo.Echo, fileHandler *handler.FileHandler, authMiddleware *middleware.AuthMiddleware) {
	fileGroup := e.Group("/v1/files")
	fileGroup.Use(authMiddleware.Authenticate)

	fileGroup.POST("/upload", fileHandler.UploadFile) // POST /v1/files/upload - message attachment
}
