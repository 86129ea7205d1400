package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/user/flixplay/internal/utils"
)

var (
	// ErrNotFound 文件不存在
	ErrNotFound = errors.New("media file not found")
	// ErrPathEscapes 解析后的路径逃出媒体根目录
	ErrPathEscapes = errors.New("path escapes media root")
	// ErrRangeNotSatisfiable 请求范围越界
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	// ErrRangeInvalid 语法非法的 Range 头（按 HTTP 语义忽略，回退为全量响应）
	ErrRangeInvalid = errors.New("invalid range header")
)

// videoExtensions 纳入扫描和流媒体服务的视频扩展名
var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".webm": {}, ".mov": {}, ".m4v": {},
}

// contentTypes 按扩展名确定响应类型，未知时统一按 mp4 下发
var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
}

// MediaService 媒体文件服务：路径解析与约束、范围解析、文件打开
type MediaService struct {
	root string
	// 已通过约束检查的 文件名 -> 绝对路径 缓存
	resolved *utils.TypedCache[string]
}

// NewMediaService 创建媒体服务，root 会被规范化为绝对路径
func NewMediaService(root string) (*MediaService, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析媒体根目录失败: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("创建媒体根目录失败: %w", err)
	}
	return &MediaService{
		root:     abs,
		resolved: utils.NewTypedCache[string](1024, 10*time.Minute),
	}, nil
}

// Root 媒体根目录绝对路径
func (s *MediaService) Root() string {
	return s.root
}

// Resolve 将文件名解析为媒体根目录内的绝对路径并返回文件信息
// 解析结果必须被约束在根目录内，任何形式的逃逸都被拒绝——
// 这是安全不变量，不是优化
func (s *MediaService) Resolve(filename string) (string, os.FileInfo, error) {
	path, ok := s.resolved.Get(filename)
	if !ok {
		var err error
		path, err = s.confine(filename)
		if err != nil {
			return "", nil, err
		}
		s.resolved.Set(filename, path)
	}

	// stat 每次都做，文件大小可能随上传变化
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, ErrNotFound
		}
		return "", nil, err
	}
	if info.IsDir() {
		return "", nil, ErrNotFound
	}
	return path, info, nil
}

// confine 规范化路径并检查没有逃出根目录
func (s *MediaService) confine(filename string) (string, error) {
	if filename == "" || filepath.IsAbs(filename) {
		return "", ErrPathEscapes
	}

	path := filepath.Join(s.root, filepath.Clean(filename))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", ErrPathEscapes
	}
	// Join 之后仍然残留 .. 说明输入本身带穿越意图
	if strings.Contains(filename, "..") {
		return "", ErrPathEscapes
	}
	return path, nil
}

// OpenRange 打开文件并定位到 start，返回限长 length 的读取器
func (s *MediaService) OpenRange(path string, start, length int64) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &limitedFile{f: f, remaining: length}, nil
}

// limitedFile 限长读取器，读满后返回 EOF
type limitedFile struct {
	f         *os.File
	remaining int64
}

func (l *limitedFile) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.f.Read(p)
	l.remaining -= int64(n)
	return n, err
}

func (l *limitedFile) Close() error {
	return l.f.Close()
}

// ContentType 根据扩展名确定流媒体响应的 Content-Type
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "video/mp4"
}

// IsVideoFile 判断文件名是否在视频扩展名白名单内
func IsVideoFile(filename string) bool {
	return IsVideoExt(filepath.Ext(filename))
}

// IsVideoExt 判断扩展名是否在视频白名单内
func IsVideoExt(ext string) bool {
	_, ok := videoExtensions[strings.ToLower(ext)]
	return ok
}

// ParseRange 解析 bytes=start-end 形式的 Range 头
// 支持 start-end、start-（到文件末尾）与 -n（末尾 n 字节）三种形式；
// 越界返回 ErrRangeNotSatisfiable（对应 416），语法不合法返回 ErrRangeInvalid。
// 多段范围只取第一段，以单段响应服务。
func ParseRange(header string, size int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, ErrRangeInvalid
	}

	if size <= 0 {
		return 0, 0, ErrRangeNotSatisfiable
	}

	spec := strings.TrimPrefix(header, prefix)
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSpace(spec)

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, ErrRangeInvalid
	}

	// -n 形式：末尾 n 字节
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, ErrRangeInvalid
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, ErrRangeInvalid
	}

	if endStr == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, ErrRangeInvalid
		}
		if end > size-1 {
			end = size - 1
		}
	}

	if start >= size {
		return 0, 0, ErrRangeNotSatisfiable
	}
	if start > end {
		return 0, 0, ErrRangeInvalid
	}
	return start, end, nil
}
