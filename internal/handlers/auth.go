package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caidasapi/internal/apperr"
	"caidasapi/internal/middleware"
	"caidasapi/internal/models"
	"caidasapi/internal/services"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Phone    *string `json:"phone"`
}

type profileResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	RegisteredAt time.Time `json:"registered_at"`
}

func newProfileResponse(u *models.User) profileResponse {
	return profileResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		RegisteredAt: u.RegisteredAt,
	}
}

// Register creates a user account.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	id, err := h.credentials.Create(c.Request.Context(), req.Name, req.Email, req.Password, req.Phone)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user registered", "id": id})
}

// Login checks the credentials and starts a cookie session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	user, err := h.credentials.Verify(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindAuth) {
			h.logger.Info("failed login", zap.String("email", req.Email), zap.String("ip", c.ClientIP()))
		}
		h.respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, user.ID)
	session.Set(middleware.SessionEmail, user.Email)
	if err := session.Save(); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindInternal, "could not save session", err))
		return
	}

	h.logger.Info("user logged in", zap.String("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "user": newProfileResponse(user)})
}

// Logout ends the session and expires its cookie.
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get(middleware.SessionUserID)

	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		h.logger.Error("could not clear session", zap.Any("user_id", userID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GetProfile returns the profile named by ?email=, or the logged-in user's.
func (h *Handler) GetProfile(c *gin.Context) {
	email, err := h.profileEmail(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	u, err := h.credentials.Profile(c.Request.Context(), email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(u))
}

// UpdateProfile changes name, password or phone of the profile named by ?email=.
func (h *Handler) UpdateProfile(c *gin.Context) {
	email, err := h.profileEmail(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(c, bindError(err))
		return
	}

	err = h.credentials.Update(c.Request.Context(), email, services.ProfileUpdate{
		Name:     req.Name,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}

// profileEmail resolves whose profile the request addresses. Behind the login
// guard the session email is set and a user may only address their own profile.
func (h *Handler) profileEmail(c *gin.Context) (string, error) {
	own := c.GetString(middleware.SessionEmail)
	query := strings.TrimSpace(c.Query("email"))

	switch {
	case own == "":
		return query, nil
	case query == "" || strings.EqualFold(query, own):
		return own, nil
	default:
		h.logger.Warn("profile access for another user refused",
			zap.String("user_id", c.GetString(middleware.SessionUserID)),
			zap.String("requested", query),
		)
		return "", apperr.New(apperr.KindAuth, "you can only access your own profile")
	}
}
