package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/flixplay/internal/handler"
	"github.com/user/flixplay/internal/middleware"
)

// RegisterRoutes 注册所有路由
// 对外路径与既有客户端保持兼容，不要随意改动
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 认证 ====================
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.GET("/session", middleware.RequireAuth(h.Config.AppSecret, h.Stores.User), h.Session)
	}

	// ==================== 片库（需要登录）====================
	videos := r.Group("/videos")
	videos.Use(middleware.RequireAuth(h.Config.AppSecret, h.Stores.User))
	{
		videos.GET("", h.ListVideos)

		// 变更操作需要管理员
		admin := videos.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.PUT("/:id", h.UpsertVideo)
			admin.DELETE("/:id", h.DeleteVideo)
			admin.POST("/scan", h.ScanVideos)
		}
	}

	// 流媒体单独挂认证：原生播放器带不了自定义头，允许 ?token=
	r.GET("/videos/stream/:filename",
		middleware.RequireStreamAuth(h.Config.AppSecret, h.Stores.User),
		h.StreamVideo)

	// ==================== 上传（管理员）====================
	upload := r.Group("/upload")
	upload.Use(middleware.RequireAuth(h.Config.AppSecret, h.Stores.User))
	upload.Use(middleware.RequireAdmin())
	{
		upload.POST("/video", h.UploadVideo)
		upload.POST("/thumbnail", h.UploadThumbnail)
	}

	// 缩略图公开访问
	r.GET("/thumbnails/:filename", h.Thumbnail)
}
