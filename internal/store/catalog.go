package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/flixplay/internal/model"
)

// defaultCover 扫描入库条目的占位封面
const defaultCover = "https://images.pexels.com/photos/1040157/pexels-photo-1040157.jpeg"

// ErrInvalidEntry 补丁合并结果违反条目形态约束
var ErrInvalidEntry = errors.New("invalid video entry")

// CatalogStore 片库存储
// 整个片库是单一版本化文档：内存中持有有序切片 + id 索引，
// 所有变更在写锁内完成「改内存 + 整体落盘」，消除整文档读改写竞态。
// 读操作在读锁内做深拷贝快照，不会观察到写了一半的文档。
type CatalogStore struct {
	mu      sync.RWMutex
	path    string
	entries []model.Video
	index   map[string]int // id -> entries 下标
	version uint64
}

// NewCatalogStore 打开（或引导创建）片库文件
// 读取失败时降级为空片库继续运行：调用方需要意识到
// 空结果也可能意味着「存储不可用」，这是沿袭下来的行为缺陷，只记录不掩盖。
func NewCatalogStore(dataDir string) (*CatalogStore, error) {
	s := &CatalogStore{
		path:  filepath.Join(dataDir, "videos.json"),
		index: make(map[string]int),
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.entries = seedCatalog()
		s.reindex()
		if err := s.persist(s.entries); err != nil {
			return nil, fmt.Errorf("写入初始片库失败: %w", err)
		}
		log.Printf("已初始化默认片库文件: %s", s.path)
		return s, nil
	}
	if err != nil {
		log.Printf("读取片库文件失败，降级为空片库: %v", err)
		return s, nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		log.Printf("解析片库文件失败，降级为空片库: %v", err)
		s.entries = nil
		return s, nil
	}
	s.reindex()

	return s, nil
}

// reindex 重建 id 索引，须在持锁状态下调用
func (s *CatalogStore) reindex() {
	s.index = make(map[string]int, len(s.entries))
	for i := range s.entries {
		s.index[s.entries[i].ID] = i
	}
}

// persist 原子落盘给定的文档内容，须在持写锁状态下调用
// 变更操作先落盘、成功后才提交到内存，失败时读侧看不到任何未持久化的状态
func (s *CatalogStore) persist(entries []model.Video) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Version 当前文档版本号（每次成功变更递增）
func (s *CatalogStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// List 返回完整快照，保持插入顺序
func (s *CatalogStore) List() []model.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Video, 0, len(s.entries))
	for i := range s.entries {
		out = append(out, s.entries[i].Clone())
	}
	return out
}

// Find 根据 id 查找单个条目
func (s *CatalogStore) Find(id string) (model.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return model.Video{}, false
	}
	return s.entries[i].Clone(), true
}

// Upsert 合并更新或追加新条目
// 已存在时按补丁语义浅合并（提供的字段覆盖，Episodes 整组替换）；
// 不存在时以补丁构造新条目追加到末尾。
// 合并结果违反 movie/series 形态约束时整体拒绝，返回 ErrInvalidEntry。
// 同一 id 的并发更新在写锁处串行化，以加锁先后顺序 last-write-wins。
func (s *CatalogStore) Upsert(id string, patch model.VideoPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Video, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)

	var merged model.Video
	i, exists := s.index[id]
	if exists {
		merged = s.entries[i].Clone()
	} else {
		merged = model.Video{ID: id}
	}
	patch.Apply(&merged)

	if err := merged.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if exists {
		next[i] = merged
	} else {
		next = append(next, merged)
	}

	if err := s.persist(next); err != nil {
		return fmt.Errorf("片库落盘失败: %w", err)
	}
	s.entries = next
	if !exists {
		s.index[id] = len(s.entries) - 1
	}
	s.version++
	return nil
}

// Delete 删除条目；id 不存在时不算错误，返回是否真的删了
func (s *CatalogStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false, nil
	}

	next := make([]model.Video, 0, len(s.entries)-1)
	next = append(next, s.entries[:i]...)
	next = append(next, s.entries[i+1:]...)

	if err := s.persist(next); err != nil {
		return false, fmt.Errorf("片库落盘失败: %w", err)
	}
	s.entries = next
	s.reindex()
	s.version++
	return true, nil
}

// Reconcile 目录对账：把尚未被任何条目引用的文件名补登为占位条目
// 只增不改：已有条目不会被修改或删除，同一文件名重复对账不会产生重复条目。
// 返回新登记的条目数。
func (s *CatalogStore) Reconcile(filenames []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 收集当前已引用的全部文件名（含剧集）
	known := make(map[string]struct{})
	for i := range s.entries {
		if s.entries[i].Filename != "" {
			known[s.entries[i].Filename] = struct{}{}
		}
		for _, ep := range s.entries[i].Episodes {
			known[ep.Filename] = struct{}{}
		}
	}

	var stubs []model.Video
	for _, name := range filenames {
		if _, ok := known[name]; ok {
			continue
		}
		stubs = append(stubs, model.Video{
			ID:          "scanned_" + uuid.NewString(),
			Title:       titleFromFilename(name),
			Description: "Automatically detected file: " + name,
			Type:        model.TypeMovie,
			Cover:       defaultCover,
			Genre:       "uncategorized",
			Year:        time.Now().Year(),
			Rating:      0,
			Filename:    name,
		})
		known[name] = struct{}{}
	}

	if len(stubs) == 0 {
		return 0, nil
	}

	next := make([]model.Video, 0, len(s.entries)+len(stubs))
	next = append(next, s.entries...)
	next = append(next, stubs...)

	if err := s.persist(next); err != nil {
		return 0, fmt.Errorf("片库落盘失败: %w", err)
	}
	s.entries = next
	s.reindex()
	s.version++
	return len(stubs), nil
}

// titleFromFilename 从文件名推导标题：去扩展名，分隔符换成空格
func titleFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(base)
}

// seedCatalog 首次启动的示例片库
func seedCatalog() []model.Video {
	return []model.Video{
		{
			ID:          "sample_movie_1",
			Title:       "Mountain Adventure",
			Description: "An epic journey across the world's highest mountains, following a group of climbers chasing the tallest summit.",
			Type:        model.TypeMovie,
			Cover:       "https://images.pexels.com/photos/1040157/pexels-photo-1040157.jpeg",
			Genre:       "Adventure",
			Year:        2023,
			Rating:      8.5,
			Filename:    "adventure-movie.mp4",
		},
		{
			ID:          "sample_series_1",
			Title:       "Cosmos: An Odyssey",
			Description: "A fascinating journey through the universe, exploring the mysteries of the cosmos and humanity's greatest scientific discoveries.",
			Type:        model.TypeSeries,
			Cover:       "https://images.pexels.com/photos/1200450/pexels-photo-1200450.jpeg",
			Genre:       "Documentary",
			Year:        2022,
			Rating:      9.2,
			Episodes: []model.Episode{
				{ID: "cosmos_ep1", Name: "The Birth of the Universe", Filename: "cosmos-s01e01.mp4", Description: "How it all began: from the Big Bang to the first stars."},
				{ID: "cosmos_ep2", Name: "Distant Galaxies", Filename: "cosmos-s01e02.mp4", Description: "Exploring the most distant galaxies and their unique features."},
				{ID: "cosmos_ep3", Name: "The Search for Life", Filename: "cosmos-s01e03.mp4", Description: "The hunt for signs of life on other planets."},
			},
		},
		{
			ID:          "sample_movie_2",
			Title:       "Future City",
			Description: "In the near future, technology has completely transformed urban life. This is the story of how humanity adapts to a new world.",
			Type:        model.TypeMovie,
			Cover:       "https://images.pexels.com/photos/1509428/pexels-photo-1509428.jpeg",
			Genre:       "Science Fiction",
			Year:        2024,
			Rating:      7.8,
			Filename:    "future-city.mp4",
		},
		{
			ID:          "sample_series_2",
			Title:       "Urban Mysteries",
			Description: "A string of unexplainable crimes haunts the city. Follow the detectives through their most challenging investigations.",
			Type:        model.TypeSeries,
			Cover:       "https://images.pexels.com/photos/1708936/pexels-photo-1708936.jpeg",
			Genre:       "Mystery",
			Year:        2023,
			Rating:      8.7,
			Episodes: []model.Episode{
				{ID: "mystery_ep1", Name: "The First Case", Filename: "mystery-s01e01.mp4", Description: "A crime that defies all logic opens the series."},
				{ID: "mystery_ep2", Name: "Lost Clues", Filename: "mystery-s01e02.mp4", Description: "The investigation leads to unexpected discoveries."},
			},
		},
	}
}
