package service

import (
	"fmt"
	"log"
	"os"

	"github.com/user/flixplay/internal/store"
	"golang.org/x/sync/singleflight"
)

// ScanResult 一次目录对账的结果
type ScanResult struct {
	Scanned int // 目录中发现的视频文件总数
	Added   int // 本次新登记的条目数
}

// Scanner 媒体目录扫描服务
// 把磁盘上尚未入库的视频文件补登为片库占位条目
type Scanner struct {
	media   *MediaService
	catalog *store.CatalogStore
	sf      singleflight.Group // 并发触发的扫描合并为一次
}

// NewScanner 创建扫描服务
func NewScanner(media *MediaService, catalog *store.CatalogStore) *Scanner {
	return &Scanner{
		media:   media,
		catalog: catalog,
	}
}

// Scan 扫描媒体目录并对账
// 管理端可能并发点击扫描，用 singleflight 保证同一时间只有一次目录遍历
func (s *Scanner) Scan() (ScanResult, error) {
	v, err, _ := s.sf.Do("scan", func() (interface{}, error) {
		return s.scan()
	})
	if err != nil {
		return ScanResult{}, err
	}
	return v.(ScanResult), nil
}

func (s *Scanner) scan() (ScanResult, error) {
	entries, err := os.ReadDir(s.media.Root())
	if err != nil {
		return ScanResult{}, fmt.Errorf("读取媒体目录失败: %w", err)
	}

	var filenames []string
	for _, e := range entries {
		if e.IsDir() || !IsVideoFile(e.Name()) {
			continue
		}
		filenames = append(filenames, e.Name())
	}

	added, err := s.catalog.Reconcile(filenames)
	if err != nil {
		return ScanResult{}, err
	}

	if added > 0 {
		log.Printf("目录扫描完成: 发现 %d 个视频文件, 新登记 %d 条", len(filenames), added)
	}
	return ScanResult{Scanned: len(filenames), Added: added}, nil
}
