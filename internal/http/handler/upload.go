package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/storage"
	"github.com/ondrasimku/media-pipeline/internal/upload"
)

type Uploader interface {
	Upload(ctx context.Context, file upload.File) (*domain.UploadResult, error)
}

type UploadHandler struct {
	uploader Uploader
	storage  storage.Storage
	maxSize  int64
	logger   *slog.Logger
}

func NewUploadHandler(uploader Uploader, storage storage.Storage, maxSize int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploader: uploader,
		storage:  storage,
		maxSize:  maxSize,
		logger:   logger.With("component", "upload_handler"),
	}
}

type UploadResponse struct {
	Data *domain.UploadResult `json:"data"`
}

func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn("Failed to get file from form", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "No file provided",
		})
		return
	}

	if file.Size > h.maxSize {
		h.logger.Warn("File too large", "size", file.Size, "max", h.maxSize)
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "File too large",
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to process file",
		})
		return
	}
	defer src.Close()

	contentType, err := declaredOrSniffed(file.Header.Get("Content-Type"), src)
	if err != nil {
		h.logger.Error("Failed to inspect uploaded file", "filename", file.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to process file",
		})
		return
	}

	result, err := h.uploader.Upload(c.Request.Context(), upload.File{
		Name:     file.Filename,
		MimeType: contentType,
		Reader:   io.LimitReader(src, h.maxSize+1),
	})
	if err != nil {
		respondError(c, h.logger, "upload", err)
		return
	}

	h.logger.Info("File uploaded successfully", "mediaId", result.ID, "path", result.Path, "variants", len(result.Variants))
	c.JSON(http.StatusCreated, UploadResponse{Data: result})
}

// GetFile streams a stored file by its relative path.
func (h *UploadHandler) GetFile(c *gin.Context) {
	relPath := strings.TrimPrefix(c.Param("path"), "/")
	if relPath == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "File path is required",
		})
		return
	}

	file, info, err := h.storage.Open(c.Request.Context(), relPath)
	if err != nil {
		respondError(c, h.logger, "get_file", err)
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		respondError(c, h.logger, "get_file", err)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondError(c, h.logger, "get_file", err)
		return
	}

	c.DataFromReader(http.StatusOK, info.Size, mtype.String(), file, nil)
}

// declaredOrSniffed trusts the client's content type unless it is missing or
// generic, in which case the leading bytes decide. src is rewound afterwards.
func declaredOrSniffed(declared string, src io.ReadSeeker) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, "application/octet-stream") {
		return declared, nil
	}

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}
