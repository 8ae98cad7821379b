package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/auth"
	"github.com/suPer8Hu/ai-prime/internal/common"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login issues a token for the single dashboard operator.
func (h *Handler) Login(c *gin.Context) {
	if !h.Cfg.AuthEnabled() {
		common.Fail(c, http.StatusNotFound, "auth is disabled", "")
		return
	}

	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json", "")
		return
	}
	if req.Password == "" {
		common.Fail(c, http.StatusBadRequest, "email and password required", "")
		return
	}

	emailOK := h.Cfg.AdminEmail == "" || strings.EqualFold(strings.TrimSpace(req.Email), h.Cfg.AdminEmail)
	if !emailOK || !auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, "invalid email or password", "")
		return
	}

	token, err := auth.SignJWT(req.Email, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, "failed to sign token", "errors.generic")
		return
	}
	common.OK(c, gin.H{"token": token})
}
