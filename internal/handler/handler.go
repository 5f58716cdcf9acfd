// Package handler provides the HTTP handlers for authentication, file
// management and annotation persistence.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/cache"
	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/database"
	"github.com/pdf-annotator/backend/internal/models"
	"github.com/pdf-annotator/backend/internal/storage"
)

// TokenSource issues and validates session tokens.
type TokenSource interface {
	Issue(userID string) (string, auth.Claims, error)
	Parse(raw string) (auth.Claims, error)
	TTL() time.Duration
}

// Handler provides HTTP handlers for the API surface.
type Handler struct {
	repo   database.Repository
	cache  cache.Cache
	blobs  storage.BlobStorage
	tokens TokenSource
	hasher *auth.PasswordHasher
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandler creates a handler with its dependencies.
func NewHandler(
	repo database.Repository,
	c cache.Cache,
	blobs storage.BlobStorage,
	tokens TokenSource,
	hasher *auth.PasswordHasher,
	cfg *config.Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		repo:   repo,
		cache:  c,
		blobs:  blobs,
		tokens: tokens,
		hasher: hasher,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the handler routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.Signup)
	rg.POST("/auth/signin", h.Signin)
	rg.POST("/auth/logout", h.Logout)

	authed := rg.Group("")
	authed.Use(auth.Middleware(h.tokens, h.cache, h.logger))

	authed.GET("/user/me", h.Me)

	authed.POST("/files/upload", h.Upload)
	authed.GET("/files", h.ListFiles)
	authed.GET("/files/:id", h.GetFile)
	authed.GET("/files/:id/content", h.FileContent)
	authed.DELETE("/files/:id", h.DeleteFile)

	authed.GET("/files/:id/annotations", h.GetAnnotations)
	authed.POST("/files/:id/annotations", h.SaveAnnotations)
}

// writeError maps sentinel errors onto status codes; anything unknown is a
// 500 with a generic message.
func (h *Handler) writeError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: action + ": not found",
		})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: action,
		})
	case errors.Is(err, models.ErrInvalidAnnotation), errors.Is(err, models.ErrNotPDF),
		errors.Is(err, models.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	default:
		h.logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to " + action,
		})
	}
}
