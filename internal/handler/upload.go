package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/flixplay/internal/service"
	"github.com/user/flixplay/internal/utils"
)

// thumbnailExtensions 缩略图扩展名白名单
var thumbnailExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {},
}

// UploadVideo 上传视频文件（管理员）
func (h *Handler) UploadVideo(c *gin.Context) {
	h.upload(c, "video", h.Config.MediaDir, service.IsVideoExt, func(c *gin.Context, filename, originalName string, size int64) {
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"filename":     filename,
			"originalName": originalName,
			"size":         size,
		})
	})
}

// UploadThumbnail 上传缩略图（管理员）
func (h *Handler) UploadThumbnail(c *gin.Context) {
	h.upload(c, "thumbnail", h.Config.ThumbnailDir, func(ext string) bool {
		_, ok := thumbnailExtensions[ext]
		return ok
	}, func(c *gin.Context, filename, originalName string, size int64) {
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"filename":     filename,
			"originalName": originalName,
			"url":          "/thumbnails/" + filename,
		})
	})
}

// upload 多部分表单上传的公共流程：限制大小、校验扩展名、落盘
// 存储名在原名基础上加毫秒时间戳，避免覆盖同名文件
func (h *Handler) upload(c *gin.Context, field, dir string, extAllowed func(string) bool,
	respond func(c *gin.Context, filename, originalName string, size int64)) {

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Config.MaxUploadBytes)

	file, err := c.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.Error(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		utils.BadRequest(c, fmt.Sprintf("no %s file provided", field))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !extAllowed(ext) {
		utils.BadRequest(c, fmt.Sprintf("unsupported %s format", field))
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("创建上传目录失败 (dir=%s): %v", dir, err)
		utils.InternalServerError(c, "failed to save file")
		return
	}

	base := strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	stored := fmt.Sprintf("%s_%d%s", base, time.Now().UnixMilli(), ext)

	if err := c.SaveUploadedFile(file, filepath.Join(dir, stored)); err != nil {
		log.Printf("保存上传文件失败 (file=%s): %v", stored, err)
		utils.InternalServerError(c, "failed to save file")
		return
	}

	respond(c, stored, filepath.Base(file.Filename), file.Size)
}

// Thumbnail 公共缩略图访问
func (h *Handler) Thumbnail(c *gin.Context) {
	filename := c.Param("filename")

	// 与流媒体路径同样的根目录约束
	clean := filepath.Clean(filename)
	if clean == "" || filepath.IsAbs(clean) || strings.Contains(clean, "..") {
		utils.NotFound(c, "thumbnail not found")
		return
	}

	path := filepath.Join(h.Config.ThumbnailDir, clean)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		utils.NotFound(c, "thumbnail not found")
		return
	}

	c.File(path)
}
