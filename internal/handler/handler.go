package handler

import (
	"github.com/user/flixplay/internal/config"
	"github.com/user/flixplay/internal/service"
	"github.com/user/flixplay/internal/store"
)

// Handler HTTP 处理器
type Handler struct {
	Stores  *store.Stores
	Config  *config.Config
	Media   *service.MediaService
	Scanner *service.Scanner
}

// NewHandler 创建处理器
func NewHandler(stores *store.Stores, cfg *config.Config, media *service.MediaService) *Handler {
	return &Handler{
		Stores:  stores,
		Config:  cfg,
		Media:   media,
		Scanner: service.NewScanner(media, stores.Catalog),
	}
}
