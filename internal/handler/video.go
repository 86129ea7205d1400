package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/flixplay/internal/model"
	"github.com/user/flixplay/internal/store"
	"github.com/user/flixplay/internal/utils"
)

// ListVideos 返回完整片库
// 注意：存储不可用时这里会拿到空列表而不是错误（见 store.NewCatalogStore），
// 客户端无法区分「没有数据」和「存储故障」
func (h *Handler) ListVideos(c *gin.Context) {
	c.JSON(http.StatusOK, h.Stores.Catalog.List())
}

// UpsertVideo 更新或新增视频条目（管理员）
func (h *Handler) UpsertVideo(c *gin.Context) {
	id := c.Param("id")

	var patch model.VideoPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.BadRequest(c, "invalid video payload")
		return
	}

	if err := h.Stores.Catalog.Upsert(id, patch); err != nil {
		if errors.Is(err, store.ErrInvalidEntry) {
			utils.BadRequest(c, "invalid video payload")
			return
		}
		log.Printf("更新片库条目失败 (id=%s): %v", id, err)
		utils.InternalServerError(c, "failed to update video")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteVideo 删除视频条目（管理员）
// id 不存在不算错误，与原有删除语义保持一致
func (h *Handler) DeleteVideo(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.Stores.Catalog.Delete(id); err != nil {
		log.Printf("删除片库条目失败 (id=%s): %v", id, err)
		utils.InternalServerError(c, "failed to delete video")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ScanVideos 扫描媒体目录并补登未入库文件（管理员）
func (h *Handler) ScanVideos(c *gin.Context) {
	result, err := h.Scanner.Scan()
	if err != nil {
		log.Printf("目录扫描失败: %v", err)
		utils.InternalServerError(c, "failed to scan videos directory")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"scanned": result.Scanned,
		"message": fmt.Sprintf("%d video files scanned", result.Scanned),
	})
}
