package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/flixplay/internal/service"
	"github.com/user/flixplay/internal/utils"
)

const (
	// streamChunkSize 分块转发的缓冲大小，整个文件永远不会被整体读进内存
	streamChunkSize = 64 << 10
	// streamWriteTimeout 单个分块的写超时，用于回收被客户端遗弃的连接
	streamWriteTimeout = 2 * time.Minute
)

// StreamVideo 流媒体端点
// 按 Range 头返回 206 部分内容或 200 全量内容
func (h *Handler) StreamVideo(c *gin.Context) {
	filename := c.Param("filename")

	path, info, err := h.Media.Resolve(filename)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPathEscapes):
			// 穿越尝试对外与文件不存在同样表现，细节只进日志
			log.Printf("拒绝越界路径: %q (ip=%s)", filename, c.ClientIP())
			utils.NotFound(c, "video file not found")
		case errors.Is(err, service.ErrNotFound):
			utils.NotFound(c, "video file not found")
		default:
			log.Printf("解析媒体文件失败 (file=%s): %v", filename, err)
			utils.InternalServerError(c, "failed to stream video")
		}
		return
	}

	size := info.Size()
	start, end := int64(0), size-1
	status := http.StatusOK

	if rangeHeader := c.GetHeader("Range"); rangeHeader != "" {
		rs, re, err := service.ParseRange(rangeHeader, size)
		switch {
		case err == nil:
			start, end, status = rs, re, http.StatusPartialContent
		case errors.Is(err, service.ErrRangeNotSatisfiable):
			c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
			c.AbortWithStatus(http.StatusRequestedRangeNotSatisfiable)
			return
		default:
			// 语法非法的 Range 头按 HTTP 语义忽略，回退为全量响应
		}
	}

	length := end - start + 1
	reader, err := h.Media.OpenRange(path, start, length)
	if err != nil {
		log.Printf("打开媒体文件失败 (file=%s): %v", filename, err)
		utils.InternalServerError(c, "failed to stream video")
		return
	}
	defer reader.Close()

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", service.ContentType(filename))
	c.Header("Content-Length", strconv.FormatInt(length, 10))
	c.Header("Cache-Control", "no-cache")
	if status == http.StatusPartialContent {
		c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}
	c.Status(status)

	h.streamCopy(c, reader, filename)
}

// streamCopy 分块拷贝文件内容到响应
// 每块之间检查请求上下文，客户端断开后文件读取立即停止；
// 中途读错误直接断开连接（没有干净的 HTTP 收尾），客户端凭 Range 续传。
func (h *Handler) streamCopy(c *gin.Context, r io.Reader, filename string) {
	ctx := c.Request.Context()
	rc := http.NewResponseController(c.Writer)
	buf := make([]byte, streamChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			// 滚动写超时：客户端长时间不收数据时放弃这条连接
			// （底层 writer 不支持时为空操作）
			_ = rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout))

			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				return
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				log.Printf("流媒体读取中断 (file=%s): %v", filename, readErr)
			}
			return
		}
	}
}
