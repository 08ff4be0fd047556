package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/relief-hub/internal/auth"
	"github.com/mr1hm/relief-hub/internal/models"
	"github.com/mr1hm/relief-hub/internal/repository"
)

const invalidCredentials = "Invalid credentials"

type registerRequest struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// dummyHash is compared against when the email is unknown so both login
// failures cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hash, err := auth.HashPassword("relief-hub-placeholder")
	if err != nil {
		return ""
	}
	return hash
})

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		badRequest(c, "name: is required")
		return
	}
	email := normalizeEmail(req.Email)

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrWeakPassword) {
		badRequest(c, err.Error())
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash}
	if err := h.store.AddUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			badRequest(c, "User already exists")
			return
		}
		h.writeError(c, err)
		return
	}

	h.logger.Info("user registered", "user", user.ID)
	c.JSON(http.StatusCreated, user.Public())
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), normalizeEmail(req.Email))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		auth.CheckPassword(dummyHash(), req.Password)
		badRequest(c, invalidCredentials)
		return
	case err != nil:
		h.writeError(c, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		badRequest(c, invalidCredentials)
		return
	}

	if err := h.auth.StartSession(c, user.ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.EndSession(c); err != nil {
		// The cookie is already cleared; the token simply outlives its revocation.
		h.logger.Warn("session revoke failed", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) me(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	user, err := h.store.GetUserByID(c.Request.Context(), id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Public())
}
