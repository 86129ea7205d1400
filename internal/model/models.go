package model

import "fmt"

// 视频类型
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

// User 用户模型
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"isAdmin"`
}

// Identity 认证通过后注入请求上下文的用户身份
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Identity 从完整用户记录提取身份信息
func (u *User) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
	}
}

// Video 视频条目
// 约束：type 为 movie 时 Filename 必填且无 Episodes；
// type 为 series 时 Episodes 非空且无顶层 Filename。
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Cover       string    `json:"cover"`
	Genre       string    `json:"genre,omitempty"`
	Year        int       `json:"year,omitempty"`
	Rating      float64   `json:"rating"`
	Filename    string    `json:"filename,omitempty"`
	Episodes    []Episode `json:"episodes,omitempty"`
}

// Episode 剧集，仅作为所属 Video 的一部分存在
type Episode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Description string `json:"description,omitempty"`
}

// VideoPatch 视频更新补丁
// 指针字段区分「未提供」与「显式置零」；提供的字段整体覆盖，
// Episodes 为整组替换而非逐条合并。
type VideoPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Type        *string    `json:"type"`
	Cover       *string    `json:"cover"`
	Genre       *string    `json:"genre"`
	Year        *int       `json:"year"`
	Rating      *float64   `json:"rating"`
	Filename    *string    `json:"filename"`
	Episodes    *[]Episode `json:"episodes"`
}

// Validate 校验条目形态约束（见 Video 上的注释）
func (v *Video) Validate() error {
	switch v.Type {
	case TypeMovie:
		if len(v.Episodes) > 0 {
			return fmt.Errorf("movie 类型不应包含 episodes (id=%s)", v.ID)
		}
	case TypeSeries:
		if v.Filename != "" {
			return fmt.Errorf("series 类型不应包含顶层 filename (id=%s)", v.ID)
		}
	default:
		return fmt.Errorf("未知的视频类型 %q (id=%s)", v.Type, v.ID)
	}
	return nil
}

// Apply 将补丁应用到视频条目上
func (p *VideoPatch) Apply(v *Video) {
	if p.Title != nil {
		v.Title = *p.Title
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	if p.Type != nil {
		v.Type = *p.Type
	}
	if p.Cover != nil {
		v.Cover = *p.Cover
	}
	if p.Genre != nil {
		v.Genre = *p.Genre
	}
	if p.Year != nil {
		v.Year = *p.Year
	}
	if p.Rating != nil {
		v.Rating = *p.Rating
	}
	if p.Filename != nil {
		v.Filename = *p.Filename
	}
	if p.Episodes != nil {
		v.Episodes = append([]Episode(nil), (*p.Episodes)...)
	}
}

// Clone 深拷贝，保证快照不共享底层切片
func (v Video) Clone() Video {
	out := v
	if v.Episodes != nil {
		out.Episodes = append([]Episode(nil), v.Episodes...)
	}
	return out
}
