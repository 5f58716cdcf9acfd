package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/models"
	"github.com/pdf-annotator/backend/internal/render"
)

// Upload accepts a multipart form with field "file", stores the blob,
// creates a processing file record, then inspects the PDF for its page
// count to move the record to ready (or error if it does not parse).
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "no file provided",
		})
		return
	}
	if fileHeader.Size > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: fmt.Sprintf("file exceeds maximum size of %d bytes", h.cfg.MaxUploadBytes),
		})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, err, "read upload")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.writeError(c, err, "read upload")
		return
	}

	mime := fileHeader.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/pdf"
	}
	if mime != "application/pdf" {
		h.writeError(c, fmt.Errorf("%w: got %s", models.ErrNotPDF, mime), "upload file")
		return
	}

	ctx := c.Request.Context()
	put, err := h.blobs.Put(ctx, bytes.NewReader(data), mime)
	if err != nil {
		h.writeError(c, err, "store upload")
		return
	}

	file := &models.File{
		UserID:       auth.UserID(c),
		Name:         fileHeader.Filename,
		OriginalName: fileHeader.Filename,
		Size:         put.Size,
		MIME:         mime,
		Status:       models.StatusProcessing,
		StorageKey:   put.StorageKey,
	}
	file, err = h.repo.CreateFile(ctx, file)
	if err != nil {
		h.writeError(c, err, "create file")
		return
	}

	// The url is our own content endpoint, not the raw storage location.
	file.URL = "/api/files/" + file.ID + "/content"

	if doc, err := render.OpenDocumentBytes(data); err != nil {
		h.logger.Warn("Uploaded file is not a parseable PDF",
			zap.String("file_id", file.ID), zap.Error(err))
		file.Status = models.StatusError
		if err := h.repo.UpdateFileStatus(ctx, file.ID, models.StatusError, 0); err != nil {
			h.writeError(c, err, "update file")
			return
		}
	} else {
		file.PageCount = doc.NumPages()
		file.Status = models.StatusReady
		_ = doc.Close()
		if err := h.repo.UpdateFileStatus(ctx, file.ID, models.StatusReady, file.PageCount); err != nil {
			h.writeError(c, err, "update file")
			return
		}
	}

	_ = h.cache.SetFile(ctx, file)

	c.JSON(http.StatusCreated, models.FileResponse{Success: true, File: *file})
}

// ListFiles returns the caller's files, newest first.
func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.repo.FilesByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.writeError(c, err, "list files")
		return
	}
	for i := range files {
		files[i].URL = "/api/files/" + files[i].ID + "/content"
	}
	c.JSON(http.StatusOK, models.FilesResponse{Success: true, Files: files})
}

// GetFile returns one owned file's metadata. A file owned by someone else
// is a 404, never the data.
func (h *Handler) GetFile(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	// Try cache first; the cached record still carries the owner id, so
	// ownership is enforced on hits too.
	if f, err := h.cache.GetFile(ctx, id); err == nil && f != nil && f.UserID == userID {
		c.JSON(http.StatusOK, models.FileResponse{Success: true, File: *f})
		return
	}

	f, err := h.repo.FileByID(ctx, id, userID)
	if err != nil {
		h.writeError(c, err, "get file")
		return
	}
	f.URL = "/api/files/" + f.ID + "/content"

	_ = h.cache.SetFile(ctx, f)

	c.JSON(http.StatusOK, models.FileResponse{Success: true, File: *f})
}

// FileContent streams the stored PDF blob.
func (h *Handler) FileContent(c *gin.Context) {
	ctx := c.Request.Context()

	f, err := h.repo.FileByID(ctx, c.Param("id"), auth.UserID(c))
	if err != nil {
		h.writeError(c, err, "get file")
		return
	}

	rc, size, contentType, err := h.blobs.Get(ctx, f.StorageKey)
	if err != nil {
		h.writeError(c, err, "read file content")
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = f.MIME
	}
	c.Header("Content-Disposition", `inline; filename="`+f.OriginalName+`"`)
	c.DataFromReader(http.StatusOK, size, contentType, rc, nil)
}

// DeleteFile removes an owned file; annotations cascade in the database
// and the blob is removed best effort afterwards.
func (h *Handler) DeleteFile(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	f, err := h.repo.DeleteFile(ctx, id, auth.UserID(c))
	if err != nil {
		h.writeError(c, err, "delete file")
		return
	}

	if err := h.blobs.Delete(ctx, f.StorageKey); err != nil {
		h.logger.Warn("Failed to delete blob",
			zap.String("file_id", id),
			zap.String("key", f.StorageKey),
			zap.Error(err),
		)
	}
	_ = h.cache.InvalidateFile(ctx, id)

	c.JSON(http.StatusOK, models.SaveResponse{Success: true})
}
