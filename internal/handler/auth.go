package handler

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/flixplay/internal/middleware"
	"github.com/user/flixplay/internal/utils"
)

// loginRequest 登录请求体
type loginRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
}

// Login 登录处理
// 用户不存在与密码错误统一返回 invalid credentials
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "username must be at least 3 characters and password at least 6 characters")
		return
	}

	user, ok := h.Stores.User.Verify(strings.TrimSpace(req.Username), req.Password)
	if !ok {
		utils.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := middleware.GenerateToken(user, h.Config.AppSecret, h.Config.TokenExpiry)
	if err != nil {
		log.Printf("生成 Token 失败: %v", err)
		utils.InternalServerError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      user.Identity(),
		"token":     token,
		"expiresIn": formatExpiry(h.Config.TokenExpiry),
	})
}

// formatExpiry 有效期的对外表示
// 整天数保持既有客户端认识的 "7d" 形式，其余时长按 Go 时长字符串输出
func formatExpiry(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}

// Session 会话回显，Token 有效即返回对应身份
func (h *Handler) Session(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.Unauthorized(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  identity,
		"valid": true,
	})
}
