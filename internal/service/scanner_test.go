package service

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/user/flixplay/internal/store"
)

func newTestScanner(t *testing.T) (*Scanner, *store.CatalogStore, *MediaService) {
	t.Helper()
	catalog, err := store.NewCatalogStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCatalogStore: %v", err)
	}
	media := newTestMedia(t)
	return NewScanner(media, catalog), catalog, media
}

func TestScannerScan(t *testing.T) {
	scanner, catalog, media := newTestScanner(t)

	writeMediaFile(t, media, "fresh_movie.mp4", []byte("x"))
	writeMediaFile(t, media, "adventure-movie.mp4", []byte("x")) // 已被种子条目引用
	writeMediaFile(t, media, "notes.txt", []byte("x"))           // 非视频，忽略
	if err := os.Mkdir(filepath.Join(media.Root(), "subdir.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := scanner.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Scanned != 2 {
		t.Errorf("expected 2 video files scanned, got %d", result.Scanned)
	}
	if result.Added != 1 {
		t.Errorf("expected 1 new entry, got %d", result.Added)
	}

	before := len(catalog.List())

	// 重复扫描不产生重复条目
	result, err = scanner.Scan()
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if result.Added != 0 {
		t.Errorf("rescan must add nothing, got %d", result.Added)
	}
	if got := len(catalog.List()); got != before {
		t.Errorf("catalog grew on rescan: %d -> %d", before, got)
	}
}

// 并发触发扫描必须收敛到一致的片库
func TestScannerConcurrent(t *testing.T) {
	scanner, catalog, media := newTestScanner(t)
	writeMediaFile(t, media, "only-once.mp4", []byte("x"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := scanner.Scan(); err != nil {
				t.Errorf("Scan: %v", err)
			}
		}()
	}
	wg.Wait()

	count := 0
	for _, v := range catalog.List() {
		if v.Filename == "only-once.mp4" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one entry for only-once.mp4, got %d", count)
	}
}
