package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/domain/repository"
	"supportdesk/internal/infrastructure/storage"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/logger"
	"supportdesk/pkg/response"
)

type FileHandler struct {
	storageClient    *storage.CloudStorageClient
	fileMetadataRepo repository.FileMetadataRepository
	maxFileSize      int64
}

func NewFileHandler(storageClient *storage.CloudStorageClient, fileMetadataRepo repository.FileMetadataRepository) *FileHandler {
	return &FileHandler{
		storageClient:    storageClient,
		fileMetadataRepo: fileMetadataRepo,
		maxFileSize:      5 * 1024 * 1024,
	}
}

// UploadFile stores one message attachment and records its metadata. The
// returned URL goes into the attachments array of a subsequent message.
func (h *FileHandler) UploadFile(c echo.Context) error {
	userID := c.Get("uid").(string)

	file, err := c.FormFile("file")
	if err != nil {
		logger.Error("Error getting file from form: %v", err)
		return response.Error(c, errors.BadRequest("Missing or invalid file", err))
	}

	if file.Size > h.maxFileSize {
		logger.Warn("File too large: %d bytes (max: %d)", file.Size, h.maxFileSize)
		return response.Error(c, errors.BadRequest(fmt.Sprintf("File size exceeds maximum allowed (%dMB)", h.maxFileSize/(1024*1024)), nil))
	}

	fileType := file.Header.Get("Content-Type")
	if !isAllowedFileType(fileType) {
		logger.Warn("Invalid file type: %s", fileType)
		return response.Error(c, errors.BadRequest("File type not supported", nil))
	}

	src, err := file.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to read uploaded file", err))
	}
	defer src.Close()

	isPublic := true
	if isPublicStr := c.FormValue("public"); isPublicStr != "" {
		isPublic, _ = strconv.ParseBool(isPublicStr)
	}

	entityType := c.FormValue("entityType")
	entityID := c.FormValue("entityId")

	url, objectName, err := h.storageClient.UploadFile(c.Request().Context(), src, fileType, "attachments", isPublic)
	if err != nil {
		logger.Error("Upload to storage failed: %v", err)
		return response.Error(c, errors.Internal("Failed to store file", err))
	}

	metadata := &entity.FileMetadata{
		URL:        url,
		ObjectName: objectName,
		FileName:   file.Filename,
		MimeType:   fileType,
		Size:       file.Size,
		EntityType: entityType,
		EntityID:   entityID,
		UploadedBy: userID,
		IsPublic:   isPublic,
	}
	if err := h.fileMetadataRepo.Create(c.Request().Context(), metadata); err != nil {
		logger.Warn("Failed to record file metadata for %s: %v", url, err)
	}

	return response.Created(c, metadata)
}

func isAllowedFileType(fileType string) bool {
	switch {
	case strings.HasPrefix(fileType, "image/jpeg"),
		strings.HasPrefix(fileType, "image/jpg"),
		strings.HasPrefix(fileType, "image/png"),
		strings.HasPrefix(fileType, "image/gif"),
		fileType == "application/pdf":
		return true
	}
	return false
}
