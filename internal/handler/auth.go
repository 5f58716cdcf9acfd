package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/models"
)

// Signup creates an account, signs a session token and sets it as an
// httpOnly cookie.
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.writeError(c, err, "create account")
		return
	}

	user, err := h.repo.CreateUser(c.Request.Context(), req.Name, strings.ToLower(req.Email), hash)
	if err != nil {
		h.writeError(c, err, "create account")
		return
	}

	if err := h.issueSession(c, user.ID); err != nil {
		h.writeError(c, err, "create session")
		return
	}
	c.JSON(http.StatusCreated, models.AuthResponse{Success: true, User: *user})
}

// Signin verifies credentials and sets the session cookie. Wrong email and
// wrong password are indistinguishable to the caller.
func (h *Handler) Signin(c *gin.Context) {
	var req models.SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	user, err := h.repo.UserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		h.rejectCredentials(c)
		return
	}

	ok, err := h.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		h.rejectCredentials(c)
		return
	}

	if err := h.issueSession(c, user.ID); err != nil {
		h.writeError(c, err, "create session")
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: *user})
}

// Logout revokes the current token and clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	if raw, err := c.Cookie(auth.CookieName); err == nil && raw != "" {
		if claims, err := h.tokens.Parse(raw); err == nil {
			if err := h.cache.Revoke(c.Request.Context(), claims.JTI, claims.ExpiresAt); err != nil {
				h.logger.Warn("Failed to revoke token", zap.Error(err))
			}
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", !h.cfg.IsDevelopment(), true)
	c.JSON(http.StatusOK, models.SaveResponse{Success: true})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.repo.UserByID(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.writeError(c, err, "load profile")
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: *user})
}

func (h *Handler) issueSession(c *gin.Context, userID string) error {
	token, _, err := h.tokens.Issue(userID)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(h.tokens.TTL().Seconds()), "/", "", !h.cfg.IsDevelopment(), true)
	return nil
}

func (h *Handler) rejectCredentials(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "invalid email or password",
	})
}
