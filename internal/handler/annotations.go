package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/models"
)

// GetAnnotations returns every annotation on an owned file in creation order.
func (h *Handler) GetAnnotations(c *gin.Context) {
	ctx := c.Request.Context()
	fileID := c.Param("id")

	// Ownership check before touching annotation data.
	if _, err := h.repo.FileByID(ctx, fileID, auth.UserID(c)); err != nil {
		h.writeError(c, err, "get annotations")
		return
	}

	if cached, ok, err := h.cache.GetAnnotations(ctx, fileID); err == nil && ok {
		c.JSON(http.StatusOK, models.AnnotationsResponse{Success: true, Annotations: cached})
		return
	}

	annotations, err := h.repo.AnnotationsByFile(ctx, fileID)
	if err != nil {
		h.writeError(c, err, "get annotations")
		return
	}

	_ = h.cache.SetAnnotations(ctx, fileID, annotations)

	c.JSON(http.StatusOK, models.AnnotationsResponse{Success: true, Annotations: annotations})
}

// SaveAnnotations replaces the file's entire annotation set with the
// submitted one. Client ids are kept as given; ids are only generated for
// annotations that arrive without one.
func (h *Handler) SaveAnnotations(c *gin.Context) {
	ctx := c.Request.Context()
	fileID := c.Param("id")
	userID := auth.UserID(c)

	if _, err := h.repo.FileByID(ctx, fileID, userID); err != nil {
		h.writeError(c, err, "save annotations")
		return
	}

	var req models.SaveAnnotationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "invalid request body",
		})
		return
	}

	for i := range req.Annotations {
		if err := req.Annotations[i].Validate(); err != nil {
			h.writeError(c, fmt.Errorf("annotation %d: %w", i, err), "save annotations")
			return
		}
	}

	if err := h.repo.ReplaceAnnotations(ctx, fileID, req.Annotations); err != nil {
		h.writeError(c, err, "save annotations")
		return
	}

	// Drop the cached set rather than re-populating it here; the stored rows
	// carry server-assigned ids and timestamps the request does not.
	_ = h.cache.InvalidateFile(ctx, fileID)

	c.JSON(http.StatusOK, models.SaveResponse{Success: true})
}
