package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ondrasimku/media-pipeline/internal/domain"
)

type MediaFinder interface {
	FindWithVariants(ctx context.Context, id uint) (*domain.MediaRecord, error)
	ListByOwner(ctx context.Context, owner domain.Owner) ([]domain.MediaRecord, error)
}

type Attacher interface {
	Attach(ctx context.Context, owner domain.Owner, selections []domain.Selection) error
}

type Deleter interface {
	Delete(ctx context.Context, id uint) (bool, error)
}

type MediaHandler struct {
	finder   MediaFinder
	attacher Attacher
	deleter  Deleter
	logger   *slog.Logger
}

func NewMediaHandler(finder MediaFinder, attacher Attacher, deleter Deleter, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		finder:   finder,
		attacher: attacher,
		deleter:  deleter,
		logger:   logger.With("component", "media_handler"),
	}
}

type AttachRequest struct {
	Selections []domain.Selection `json:"selections" binding:"required"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

func (h *MediaHandler) Get(c *gin.Context) {
	id, ok := h.mediaID(c)
	if !ok {
		return
	}

	record, err := h.finder.FindWithVariants(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get_media", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (h *MediaHandler) Delete(c *gin.Context) {
	id, ok := h.mediaID(c)
	if !ok {
		return
	}

	deleted, err := h.deleter.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "delete_media", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, DeleteResponse{Deleted: false})
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Deleted: true})
}

func (h *MediaHandler) Attach(c *gin.Context) {
	owner := ownerFromPath(c)

	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid attach request", "owner", owner.String(), "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.attacher.Attach(c.Request.Context(), owner, req.Selections); err != nil {
		respondError(c, h.logger, "attach_media", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MediaHandler) ListByOwner(c *gin.Context) {
	owner := ownerFromPath(c)
	if err := owner.Validate(); err != nil {
		respondError(c, h.logger, "list_media", err)
		return
	}

	records, err := h.finder.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		respondError(c, h.logger, "list_media", err)
		return
	}
	if records == nil {
		records = []domain.MediaRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (h *MediaHandler) mediaID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid media id"})
		return 0, false
	}
	return uint(id), true
}

func ownerFromPath(c *gin.Context) domain.Owner {
	return domain.Owner{Type: c.Param("ownerType"), ID: c.Param("ownerId")}
}
