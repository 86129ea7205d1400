package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/flixplay/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// defaultUsers 首次启动时写入的默认账号（明文密码只在引导时存在）
var defaultUsers = []struct {
	id       string
	username string
	password string
	isAdmin  bool
}{
	{"admin", "admin", "admin123", true},
	{"user", "user", "user123", false},
}

// dummyHash 用户不存在时用来空转一次比较的完整 bcrypt 哈希
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// UserStore 用户存储，整体落在一个 JSON 文件上
// 用户在本系统范围内创建后不可变，所以读远多于写
type UserStore struct {
	mu    sync.RWMutex
	path  string
	users []model.User
}

// persistedUser 落盘结构，密码哈希需要序列化（对外 JSON 中被排除）
type persistedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

// NewUserStore 打开（或引导创建）用户文件
func NewUserStore(dataDir string) (*UserStore, error) {
	s := &UserStore{path: filepath.Join(dataDir, "users.json")}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if err := s.bootstrap(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取用户文件失败: %w", err)
	}

	var persisted []persistedUser
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("解析用户文件失败: %w", err)
	}
	for _, p := range persisted {
		s.users = append(s.users, model.User{
			ID:           p.ID,
			Username:     p.Username,
			PasswordHash: p.Password,
			IsAdmin:      p.IsAdmin,
		})
	}

	return s, nil
}

// bootstrap 写入默认账号
func (s *UserStore) bootstrap() error {
	for _, d := range defaultUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		s.users = append(s.users, model.User{
			ID:           d.id,
			Username:     d.username,
			PasswordHash: string(hash),
			IsAdmin:      d.isAdmin,
		})
	}

	if err := s.save(); err != nil {
		return err
	}
	log.Printf("已初始化默认用户文件: %s", s.path)
	return nil
}

// save 原子落盘（临时文件 + rename）
func (s *UserStore) save() error {
	persisted := make([]persistedUser, 0, len(s.users))
	for _, u := range s.users {
		persisted = append(persisted, persistedUser{
			ID:       u.ID,
			Username: u.Username,
			Password: u.PasswordHash,
			IsAdmin:  u.IsAdmin,
		})
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// FindByUsername 根据用户名精确查找
func (s *UserStore) FindByUsername(username string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].Username == username {
			u := s.users[i]
			return &u, true
		}
	}
	return nil, false
}

// FindByID 根据 ID 查找
func (s *UserStore) FindByID(id string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].ID == id {
			u := s.users[i]
			return &u, true
		}
	}
	return nil, false
}

// Verify 校验用户名密码
// 用户不存在与密码错误返回同一个结果，不向调用方泄露区别
func (s *UserStore) Verify(username, password string) (*model.User, bool) {
	user, ok := s.FindByUsername(username)
	if !ok {
		// 仍然执行一次哈希比较，避免用存在性差异做时间侧信道
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, false
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, false
	}
	return user, true
}
