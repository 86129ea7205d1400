package store

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/user/flixplay/internal/model"
)

func newTestCatalog(t *testing.T) *CatalogStore {
	t.Helper()
	s, err := NewCatalogStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCatalogStore: %v", err)
	}
	return s
}

func strPtr(s string) *string   { return &s }
func intPtr(i int) *int         { return &i }
func f64Ptr(f float64) *float64 { return &f }

func TestCatalogSeed(t *testing.T) {
	s := newTestCatalog(t)

	list := s.List()
	if len(list) != 4 {
		t.Fatalf("expected 4 seeded entries, got %d", len(list))
	}
	if list[0].ID != "sample_movie_1" {
		t.Errorf("expected sample_movie_1 first, got %s", list[0].ID)
	}
	if _, ok := s.Find("sample_series_1"); !ok {
		t.Error("expected sample_series_1 in seeded catalog")
	}
}

func TestCatalogUpsertRoundTrip(t *testing.T) {
	s := newTestCatalog(t)

	patch := model.VideoPatch{
		Title:       strPtr("Test Movie"),
		Description: strPtr("a test entry"),
		Type:        strPtr(model.TypeMovie),
		Cover:       strPtr("https://example.com/cover.jpg"),
		Genre:       strPtr("Drama"),
		Year:        intPtr(2025),
		Rating:      f64Ptr(7.5),
		Filename:    strPtr("test-movie.mp4"),
	}
	if err := s.Upsert("test_movie", patch); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok := s.Find("test_movie")
	if !ok {
		t.Fatal("inserted entry not found")
	}
	if got.Title != "Test Movie" || got.Filename != "test-movie.mp4" || got.Rating != 7.5 {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	// 新条目追加在末尾，插入顺序保持
	list := s.List()
	if list[len(list)-1].ID != "test_movie" {
		t.Errorf("expected new entry at tail, got %s", list[len(list)-1].ID)
	}
}

func TestCatalogUpsertMerge(t *testing.T) {
	s := newTestCatalog(t)

	t.Run("partial_patch_keeps_other_fields", func(t *testing.T) {
		before, _ := s.Find("sample_movie_1")

		if err := s.Upsert("sample_movie_1", model.VideoPatch{Rating: f64Ptr(9.9)}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		after, _ := s.Find("sample_movie_1")
		if after.Rating != 9.9 {
			t.Errorf("expected rating 9.9, got %v", after.Rating)
		}
		if after.Title != before.Title || after.Filename != before.Filename {
			t.Errorf("untouched fields changed: %+v", after)
		}
	})

	t.Run("episodes_replaced_wholesale", func(t *testing.T) {
		eps := []model.Episode{
			{ID: "new_ep1", Name: "Only Episode", Filename: "only.mp4"},
		}
		if err := s.Upsert("sample_series_1", model.VideoPatch{Episodes: &eps}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		after, _ := s.Find("sample_series_1")
		if len(after.Episodes) != 1 || after.Episodes[0].ID != "new_ep1" {
			t.Errorf("expected wholesale replacement, got %+v", after.Episodes)
		}
	})

	t.Run("explicit_zero_overwrites", func(t *testing.T) {
		if err := s.Upsert("sample_movie_2", model.VideoPatch{Rating: f64Ptr(0)}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		after, _ := s.Find("sample_movie_2")
		if after.Rating != 0 {
			t.Errorf("expected rating reset to 0, got %v", after.Rating)
		}
	})
}

// 合并结果违反 movie/series 形态约束的补丁整体拒绝，条目保持原样
func TestCatalogUpsertValidation(t *testing.T) {
	s := newTestCatalog(t)

	t.Run("movie_with_episodes", func(t *testing.T) {
		eps := []model.Episode{{ID: "ep", Name: "Ep", Filename: "ep.mp4"}}
		err := s.Upsert("sample_movie_1", model.VideoPatch{Episodes: &eps})
		if !errors.Is(err, ErrInvalidEntry) {
			t.Fatalf("expected ErrInvalidEntry, got %v", err)
		}
		after, _ := s.Find("sample_movie_1")
		if len(after.Episodes) != 0 {
			t.Errorf("rejected patch modified the entry: %+v", after)
		}
	})

	t.Run("series_with_filename", func(t *testing.T) {
		err := s.Upsert("sample_series_1", model.VideoPatch{Filename: strPtr("whole-season.mp4")})
		if !errors.Is(err, ErrInvalidEntry) {
			t.Fatalf("expected ErrInvalidEntry, got %v", err)
		}
		after, _ := s.Find("sample_series_1")
		if after.Filename != "" {
			t.Errorf("rejected patch modified the entry: %+v", after)
		}
	})

	t.Run("new_entry_without_type", func(t *testing.T) {
		err := s.Upsert("typeless", model.VideoPatch{Title: strPtr("Typeless")})
		if !errors.Is(err, ErrInvalidEntry) {
			t.Fatalf("expected ErrInvalidEntry, got %v", err)
		}
		if _, ok := s.Find("typeless"); ok {
			t.Error("rejected entry must not be inserted")
		}
	})
}

// 落盘失败的变更不能在内存里留下任何痕迹：
// 条目不可见、文档内容不变、版本号不动
func TestCatalogPersistFailureLeavesNoPartialState(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCatalogStore(dir)
	if err != nil {
		t.Fatalf("NewCatalogStore: %v", err)
	}
	v0 := s.Version()

	// 移除数据目录，之后所有落盘必然失败
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	t.Run("upsert", func(t *testing.T) {
		err := s.Upsert("ghost", model.VideoPatch{
			Title: strPtr("Ghost"),
			Type:  strPtr(model.TypeMovie),
		})
		if err == nil {
			t.Fatal("expected persist error")
		}
		if _, ok := s.Find("ghost"); ok {
			t.Error("failed upsert left entry visible in memory")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := s.Delete("sample_movie_1"); err == nil {
			t.Fatal("expected persist error")
		}
		if _, ok := s.Find("sample_movie_1"); !ok {
			t.Error("failed delete removed entry from memory")
		}
	})

	t.Run("reconcile", func(t *testing.T) {
		if _, err := s.Reconcile([]string{"orphan.mp4"}); err == nil {
			t.Fatal("expected persist error")
		}
		for _, v := range s.List() {
			if v.Filename == "orphan.mp4" {
				t.Error("failed reconcile left stub visible in memory")
			}
		}
	})

	if got := len(s.List()); got != 4 {
		t.Errorf("expected untouched 4 seeded entries, got %d", got)
	}
	if s.Version() != v0 {
		t.Errorf("version bumped although nothing was persisted")
	}
}

func TestCatalogDelete(t *testing.T) {
	s := newTestCatalog(t)

	removed, err := s.Delete("sample_movie_1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Error("expected removal of existing entry")
	}
	if _, ok := s.Find("sample_movie_1"); ok {
		t.Error("entry still present after delete")
	}

	// 不存在的 id 不算错误
	removed, err = s.Delete("no_such_id")
	if err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	if removed {
		t.Error("expected no-op for absent id")
	}

	// 删除后索引仍然一致
	if _, ok := s.Find("sample_series_2"); !ok {
		t.Error("unrelated entry lost after delete")
	}
}

func TestCatalogReconcile(t *testing.T) {
	s := newTestCatalog(t)

	files := []string{
		"adventure-movie.mp4",  // 已被 sample_movie_1 引用
		"cosmos-s01e02.mp4",    // 已被剧集引用
		"new_release-2025.mkv", // 未登记
	}

	added, err := s.Reconcile(files)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 new entry, got %d", added)
	}

	list := s.List()
	stub := list[len(list)-1]
	if stub.Filename != "new_release-2025.mkv" {
		t.Fatalf("expected stub for new file, got %+v", stub)
	}
	if stub.Title != "new release 2025" {
		t.Errorf("title derivation wrong: %q", stub.Title)
	}
	if stub.Genre != "uncategorized" || stub.Rating != 0 || stub.Type != model.TypeMovie {
		t.Errorf("stub defaults wrong: %+v", stub)
	}

	t.Run("idempotent", func(t *testing.T) {
		added, err := s.Reconcile(files)
		if err != nil {
			t.Fatalf("second Reconcile: %v", err)
		}
		if added != 0 {
			t.Errorf("expected idempotent rescan, got %d new entries", added)
		}
		if got := len(s.List()); got != 5 {
			t.Errorf("expected 5 entries after rescan, got %d", got)
		}
	})

	t.Run("never_touches_existing", func(t *testing.T) {
		before, _ := s.Find("sample_movie_1")
		if _, err := s.Reconcile(files); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		after, _ := s.Find("sample_movie_1")
		if before.Title != after.Title || before.Rating != after.Rating {
			t.Errorf("reconcile modified an existing entry: %+v -> %+v", before, after)
		}
	})
}

// 并发 upsert 不同 id，最终每一条都要落下来（整文档读改写会丢更新，这里不允许）
func TestCatalogConcurrentUpserts(t *testing.T) {
	s := newTestCatalog(t)
	const workers = 32

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("concurrent_%d", i)
			patch := model.VideoPatch{
				Title:    strPtr(fmt.Sprintf("Concurrent %d", i)),
				Type:     strPtr(model.TypeMovie),
				Filename: strPtr(fmt.Sprintf("concurrent_%d.mp4", i)),
			}
			if err := s.Upsert(id, patch); err != nil {
				t.Errorf("Upsert %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	list := s.List()
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[v.ID] = true
	}
	for i := 0; i < workers; i++ {
		id := fmt.Sprintf("concurrent_%d", i)
		if !seen[id] {
			t.Errorf("lost write: %s missing from catalog", id)
		}
	}
}

// 并发读写期间，读到的快照必须是完整一致的文档
func TestCatalogSnapshotConsistency(t *testing.T) {
	s := newTestCatalog(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("writer_%d", i)
			_ = s.Upsert(id, model.VideoPatch{Title: strPtr(id), Type: strPtr(model.TypeMovie)})
		}
	}()

	for i := 0; i < 100; i++ {
		for _, v := range s.List() {
			if v.ID == "" {
				t.Fatal("observed half-written entry")
			}
		}
	}
	<-done
}

func TestCatalogPersistenceReload(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewCatalogStore(dir)
	if err != nil {
		t.Fatalf("NewCatalogStore: %v", err)
	}
	if err := s1.Upsert("persisted", model.VideoPatch{
		Title:    strPtr("Persisted"),
		Type:     strPtr(model.TypeMovie),
		Filename: strPtr("persisted.mp4"),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// 重新打开同一目录，视同进程重启
	s2, err := NewCatalogStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := s2.Find("persisted")
	if !ok || got.Title != "Persisted" {
		t.Errorf("entry not survived reload: %+v ok=%v", got, ok)
	}
	if len(s2.List()) != len(s1.List()) {
		t.Errorf("entry count mismatch after reload")
	}
}

func TestCatalogVersionIncrements(t *testing.T) {
	s := newTestCatalog(t)

	v0 := s.Version()
	if err := s.Upsert("x", model.VideoPatch{Title: strPtr("X"), Type: strPtr(model.TypeMovie)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if s.Version() != v0+1 {
		t.Errorf("version not incremented on upsert")
	}

	// 空操作删除不算变更
	if _, err := s.Delete("no_such_id"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Version() != v0+1 {
		t.Errorf("no-op delete must not bump version")
	}
}
